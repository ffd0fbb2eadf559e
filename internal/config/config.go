package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvProduction marks a deployed process. Only the storage fallback decision reads it.
const EnvProduction = "production"

// Config holds application configuration.
type Config struct {
	// Env is "production" for deployed processes, anything else for local runs.
	Env string `toml:"env"`

	// DatabaseURL selects the durable backend: postgres://..., a libpq "host=... dbname=..."
	// string, or sqlite:///path/to.db.
	// Empty, malformed, or internal-host-in-production values fall back to memory.
	DatabaseURL string `toml:"database_url"`

	// DataDir anchors relative sqlite paths. Defaults to ~/.tether.
	DataDir string `toml:"data_dir"`

	// InternalDBHosts extends the built-in loopback/internal host list.
	InternalDBHosts []string `toml:"internal_db_hosts,omitempty"`

	// DBMaxOpenConns bounds the connection pool; callers queue when it is exhausted.
	DBMaxOpenConns int `toml:"db_max_open_conns"`
	DBMaxIdleConns int `toml:"db_max_idle_conns"`

	Bind         string `toml:"bind"`
	Port         int    `toml:"port"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`

	LogFile  string `toml:"log_file"`
	LogLevel string `toml:"log_level"`

	GenAI  GenAIConfig  `toml:"genai"`
	Image  ImageConfig  `toml:"image"`
	Poster PosterConfig `toml:"poster"`

	// DisabledTools lists MCP tool names to skip at registration.
	DisabledTools []string `toml:"disabled_tools,omitempty"`
}

// GenAIConfig configures the text and transcription model.
type GenAIConfig struct {
	Provider       string `toml:"provider"` // googleai, openai, anthropic, ollama
	Model          string `toml:"model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"` // endpoint override for googleai, openai, anthropic
	OllamaHost     string `toml:"ollama_host"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	PromptsFile    string `toml:"prompts_file,omitempty"`
}

// ImageConfig configures the Bedrock image model.
type ImageConfig struct {
	Model           string `toml:"model"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint,omitempty"`
	AccessKeyID     string `toml:"access_key_id,omitempty"`
	SecretAccessKey string `toml:"secret_access_key,omitempty"`
	Width           int    `toml:"width"`
	Height          int    `toml:"height"`
}

// PosterConfig configures where poster images are materialized.
// An empty Bucket keeps posters inline as data URIs.
type PosterConfig struct {
	Bucket        string `toml:"bucket,omitempty"`
	Prefix        string `toml:"prefix"`
	Region        string `toml:"region,omitempty"`
	PublicBaseURL string `toml:"public_base_url,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Env:            "development",
		DBMaxOpenConns: 10,
		DBMaxIdleConns: 5,
		Bind:           "127.0.0.1",
		Port:           8080,
		MaxBodyBytes:   25 << 20,
		LogFile:        "/tmp/tether.log",
		LogLevel:       "INFO",
		GenAI: GenAIConfig{
			Provider:       "googleai",
			Model:          "gemini-2.5-flash",
			OllamaHost:     "http://localhost:11434",
			TimeoutSeconds: 90,
		},
		Image: ImageConfig{
			Model:  "amazon.titan-image-generator-v2:0",
			Region: "us-east-1",
			Width:  1024,
			Height: 1024,
		},
		Poster: PosterConfig{
			Prefix: "posters/",
		},
	}
}

// Load builds configuration from defaults, an optional TOML file, then the environment.
// path may be empty; a non-empty path that cannot be read is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables on cfg.
func applyEnv(cfg *Config) {
	cfg.Env = getEnv("TETHER_ENV", cfg.Env)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.DataDir = getEnv("TETHER_DATA_DIR", cfg.DataDir)
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}
	if hosts := os.Getenv("TETHER_INTERNAL_DB_HOSTS"); hosts != "" {
		cfg.InternalDBHosts = splitList(hosts)
	}
	cfg.DBMaxOpenConns = getEnvInt("TETHER_DB_MAX_OPEN_CONNS", cfg.DBMaxOpenConns)
	cfg.DBMaxIdleConns = getEnvInt("TETHER_DB_MAX_IDLE_CONNS", cfg.DBMaxIdleConns)

	cfg.Bind = getEnv("TETHER_BIND", cfg.Bind)
	cfg.Port = getEnvInt("TETHER_PORT", cfg.Port)
	cfg.MaxBodyBytes = int64(getEnvInt("TETHER_MAX_BODY_BYTES", int(cfg.MaxBodyBytes)))

	cfg.LogFile = getEnv("TETHER_LOG_FILE", cfg.LogFile)
	cfg.LogLevel = getEnv("TETHER_LOG_LEVEL", cfg.LogLevel)

	cfg.GenAI.Provider = getEnv("TETHER_GENAI_PROVIDER", cfg.GenAI.Provider)
	cfg.GenAI.Model = getEnv("TETHER_GENAI_MODEL", cfg.GenAI.Model)
	cfg.GenAI.BaseURL = getEnv("TETHER_GENAI_BASE_URL", cfg.GenAI.BaseURL)
	cfg.GenAI.OllamaHost = getEnv("OLLAMA_HOST", cfg.GenAI.OllamaHost)
	cfg.GenAI.TimeoutSeconds = getEnvInt("TETHER_GENAI_TIMEOUT", cfg.GenAI.TimeoutSeconds)
	cfg.GenAI.PromptsFile = getEnv("TETHER_PROMPTS_FILE", cfg.GenAI.PromptsFile)
	if cfg.GenAI.APIKey == "" {
		switch cfg.GenAI.Provider {
		case "googleai":
			cfg.GenAI.APIKey = os.Getenv("GEMINI_API_KEY")
		case "openai":
			cfg.GenAI.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic":
			cfg.GenAI.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}

	cfg.Image.Model = getEnv("TETHER_IMAGE_MODEL", cfg.Image.Model)
	cfg.Image.Region = getEnv("AWS_REGION", cfg.Image.Region)
	cfg.Image.Endpoint = getEnv("TETHER_BEDROCK_ENDPOINT", cfg.Image.Endpoint)

	cfg.Poster.Bucket = getEnv("TETHER_POSTER_BUCKET", cfg.Poster.Bucket)
	cfg.Poster.Prefix = getEnv("TETHER_POSTER_PREFIX", cfg.Poster.Prefix)
	cfg.Poster.PublicBaseURL = getEnv("TETHER_POSTER_PUBLIC_URL", cfg.Poster.PublicBaseURL)
	if cfg.Poster.Region == "" {
		cfg.Poster.Region = cfg.Image.Region
	}

	if tools := os.Getenv("TETHER_DISABLED_TOOLS"); tools != "" {
		cfg.DisabledTools = splitList(tools)
	}
}

// Validate rejects values the process cannot run with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive")
	}
	if c.DBMaxOpenConns < 0 || c.DBMaxIdleConns < 0 {
		return fmt.Errorf("db pool sizes must not be negative")
	}
	if c.GenAI.TimeoutSeconds <= 0 {
		return fmt.Errorf("genai timeout_seconds must be positive")
	}
	if c.GenAI.BaseURL != "" {
		if strings.EqualFold(c.GenAI.Provider, "ollama") {
			return fmt.Errorf("genai base_url is not used by ollama; set ollama_host instead")
		}
		u, err := url.Parse(c.GenAI.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("genai base_url must be an absolute http(s) URL, got %q", c.GenAI.BaseURL)
		}
	}
	return nil
}

// IsProduction reports whether the process runs in a deployed context.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, EnvProduction)
}

// GenerationTimeout bounds every outbound generation call.
func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.GenAI.TimeoutSeconds) * time.Second
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

// Level returns the configured slog level.
func (c *Config) Level() slog.Level {
	return parseLogLevel(c.LogLevel)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tether"
	}
	return filepath.Join(home, ".tether")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		slog.Warn("ignoring non-integer environment value", "key", key, "value", val)
		return defaultVal
	}
	return n
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// splitList splits a comma-separated value, trimming blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

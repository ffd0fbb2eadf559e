package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"TETHER_ENV", "DATABASE_URL", "TETHER_DATA_DIR", "TETHER_INTERNAL_DB_HOSTS",
	"TETHER_DB_MAX_OPEN_CONNS", "TETHER_DB_MAX_IDLE_CONNS",
	"TETHER_BIND", "TETHER_PORT", "TETHER_MAX_BODY_BYTES",
	"TETHER_LOG_FILE", "TETHER_LOG_LEVEL",
	"TETHER_GENAI_PROVIDER", "TETHER_GENAI_MODEL", "TETHER_GENAI_BASE_URL",
	"OLLAMA_HOST", "TETHER_GENAI_TIMEOUT", "TETHER_PROMPTS_FILE",
	"GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY",
	"TETHER_IMAGE_MODEL", "AWS_REGION", "TETHER_BEDROCK_ENDPOINT",
	"TETHER_POSTER_BUCKET", "TETHER_POSTER_PREFIX", "TETHER_POSTER_PUBLIC_URL",
	"TETHER_DISABLED_TOOLS",
}

// clearEnv blanks every variable Load reads; empty values count as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tether.toml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.MaxBodyBytes != 25<<20 {
		t.Errorf("MaxBodyBytes = %d, want %d", cfg.MaxBodyBytes, 25<<20)
	}
	if cfg.IsProduction() {
		t.Error("IsProduction() = true, want false by default")
	}
	if cfg.GenerationTimeout() != 90*time.Second {
		t.Errorf("GenerationTimeout() = %v, want 90s", cfg.GenerationTimeout())
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
	if cfg.DataDir == "" {
		t.Error("DataDir is empty, want a home-relative default")
	}
	if cfg.Poster.Region != cfg.Image.Region {
		t.Errorf("Poster.Region = %q, want image region %q", cfg.Poster.Region, cfg.Image.Region)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
env = "production"
database_url = "sqlite:///var/lib/tether/tether.db"
port = 9000
disabled_tools = ["connection_poster"]

[genai]
provider = "ollama"
model = "llama3"
timeout_seconds = 30

[poster]
bucket = "posters"
prefix = "p/"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.IsProduction() {
		t.Error("IsProduction() = false, want true")
	}
	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
	if cfg.GenAI.Provider != "ollama" || cfg.GenAI.Model != "llama3" {
		t.Errorf("GenAI = %+v, want ollama/llama3", cfg.GenAI)
	}
	if cfg.GenerationTimeout() != 30*time.Second {
		t.Errorf("GenerationTimeout() = %v, want 30s", cfg.GenerationTimeout())
	}
	if cfg.Poster.Bucket != "posters" || cfg.Poster.Prefix != "p/" {
		t.Errorf("Poster = %+v", cfg.Poster)
	}
	if len(cfg.DisabledTools) != 1 || cfg.DisabledTools[0] != "connection_poster" {
		t.Errorf("DisabledTools = %v, want [connection_poster]", cfg.DisabledTools)
	}
	// Unset keys keep their defaults.
	if cfg.MaxBodyBytes != 25<<20 {
		t.Errorf("MaxBodyBytes = %d, want default", cfg.MaxBodyBytes)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `port = 9000`)

	t.Setenv("TETHER_PORT", "9100")
	t.Setenv("DATABASE_URL", "postgres://db.example.com/tether")
	t.Setenv("TETHER_INTERNAL_DB_HOSTS", "db-1, ,db-2")
	t.Setenv("TETHER_DISABLED_TOOLS", "connection_analyze,connection_poster")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9100 {
		t.Errorf("Port = %d, want 9100", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://db.example.com/tether" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if len(cfg.InternalDBHosts) != 2 || cfg.InternalDBHosts[1] != "db-2" {
		t.Errorf("InternalDBHosts = %v, want [db-1 db-2]", cfg.InternalDBHosts)
	}
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("DisabledTools = %v, want 2 entries", cfg.DisabledTools)
	}
}

func TestLoad_APIKeyFollowsProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("TETHER_GENAI_PROVIDER", "openai")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("OPENAI_API_KEY", "openai-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.GenAI.APIKey != "openai-key" {
		t.Errorf("APIKey = %q, want openai-key", cfg.GenAI.APIKey)
	}
}

func TestLoad_NonIntegerEnvKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("TETHER_PORT", "eighty")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `port = [not toml`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load() expected error, got nil")
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Port = 0 }},
		{"port too high", func(c *Config) { c.Port = 70000 }},
		{"body limit", func(c *Config) { c.MaxBodyBytes = 0 }},
		{"negative pool", func(c *Config) { c.DBMaxOpenConns = -1 }},
		{"timeout", func(c *Config) { c.GenAI.TimeoutSeconds = 0 }},
		{"relative base url", func(c *Config) { c.GenAI.BaseURL = "proxy/gemini" }},
		{"base url scheme", func(c *Config) { c.GenAI.BaseURL = "ftp://proxy" }},
		{"base url with ollama", func(c *Config) {
			c.GenAI.Provider = "ollama"
			c.GenAI.BaseURL = "http://proxy"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() expected error, got nil")
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}

	withProxy := Default()
	withProxy.GenAI.BaseURL = "https://proxy.example.com/gemini"
	if err := withProxy.Validate(); err != nil {
		t.Errorf("Validate() with googleai base_url error = %v", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetupLoggerWithWriters_FansOut(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("connection created", "id", "c1")

	if !strings.Contains(stderr.String(), "connection created") {
		t.Errorf("stderr = %q, want text record", stderr.String())
	}
	if !strings.Contains(file.String(), `"msg":"connection created"`) {
		t.Errorf("file = %q, want JSON record", file.String())
	}
	if strings.Contains(stderr.String(), "hidden") {
		t.Error("debug record leaked at info level")
	}
}

func TestSetupLogger_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tether.log")
	logger, cleanup := SetupLogger(path, slog.LevelInfo)
	logger.Info("hello")
	if err := cleanup(); err != nil {
		t.Fatalf("cleanup() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("log file = %q", data)
	}
}

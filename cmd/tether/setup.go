package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/tether/internal/config"
	"github.com/hpungsan/tether/internal/genai"
	"github.com/hpungsan/tether/internal/pipeline"
	"github.com/hpungsan/tether/internal/poster"
	"github.com/hpungsan/tether/internal/store"
)

// appEnv is the wired process state a command runs against.
// The pipeline is built on first use so read-only commands need no model credentials.
type appEnv struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     store.Store
	selection store.Selection

	newPipeline func(ctx context.Context) (*pipeline.Pipeline, error)
	closers     []func() error
}

// setupFunc builds the environment for one command invocation.
type setupFunc func(c *cli.Context) (*appEnv, error)

func (e *appEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i]()
	}
}

// defaultSetup loads configuration, configures logging and selects the storage backend.
func defaultSetup(c *cli.Context) (*appEnv, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.Level())
	slog.SetDefault(logger)

	st, sel, err := store.Open(c.Context, store.Options{
		DSN:           cfg.DatabaseURL,
		Production:    cfg.IsProduction(),
		InternalHosts: cfg.InternalDBHosts,
		DataDir:       cfg.DataDir,
		Pool: store.PoolOptions{
			MaxOpenConns: cfg.DBMaxOpenConns,
			MaxIdleConns: cfg.DBMaxIdleConns,
		},
		Logger: logger,
	})
	if err != nil {
		_ = closeLog()
		return nil, err
	}

	env := &appEnv{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		selection: sel,
		closers:   []func() error{closeLog, st.Close},
	}
	env.newPipeline = func(ctx context.Context) (*pipeline.Pipeline, error) {
		return buildPipeline(ctx, cfg, st, logger)
	}
	return env, nil
}

// buildPipeline wires the configured model, image generator and poster sink.
func buildPipeline(ctx context.Context, cfg *config.Config, st store.Store, logger *slog.Logger) (*pipeline.Pipeline, error) {
	prompts, err := genai.LoadPrompts(cfg.GenAI.PromptsFile)
	if err != nil {
		return nil, err
	}

	model, err := genai.NewModel(ctx, genai.ModelOptions{
		Provider:   cfg.GenAI.Provider,
		Model:      cfg.GenAI.Model,
		APIKey:     cfg.GenAI.APIKey,
		BaseURL:    cfg.GenAI.BaseURL,
		OllamaHost: cfg.GenAI.OllamaHost,
	}, prompts)
	if err != nil {
		return nil, fmt.Errorf("failed to create text model: %w", err)
	}

	painter, err := genai.NewBedrockPainter(ctx, genai.BedrockOptions{
		Model:           cfg.Image.Model,
		Region:          cfg.Image.Region,
		Endpoint:        cfg.Image.Endpoint,
		AccessKeyID:     cfg.Image.AccessKeyID,
		SecretAccessKey: cfg.Image.SecretAccessKey,
		Width:           cfg.Image.Width,
		Height:          cfg.Image.Height,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create image model: %w", err)
	}

	var sink poster.Sink = poster.DataURISink{}
	if cfg.Poster.Bucket != "" {
		s3Sink, err := poster.NewS3Sink(ctx, poster.S3Options{
			Bucket:        cfg.Poster.Bucket,
			Prefix:        cfg.Poster.Prefix,
			Region:        cfg.Poster.Region,
			PublicBaseURL: cfg.Poster.PublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create poster sink: %w", err)
		}
		sink = s3Sink
	}

	logger.Info("generation configured",
		"provider", cfg.GenAI.Provider,
		"model", model.Model(),
		"image_model", cfg.Image.Model,
		"poster_bucket", cfg.Poster.Bucket,
	)

	return pipeline.New(pipeline.Options{
		Store:       st,
		Transcriber: model,
		Writer:      model,
		Painter:     painter,
		Sink:        sink,
		Prompts:     prompts,
		Timeout:     cfg.GenerationTimeout(),
		Logger:      logger,
	})
}

package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/tether/internal/errors"
	"github.com/hpungsan/tether/internal/mcp"
	"github.com/hpungsan/tether/internal/pipeline"
	"github.com/hpungsan/tether/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(setup setupFunc) *cli.App {
	app := &cli.App{
		Name:    "tether",
		Usage:   "Guided conversation capture and enrichment service",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				EnvVars: []string{"TETHER_CONFIG"},
				Usage:   "Path to a TOML config file",
			},
		},
		Commands: []*cli.Command{
			serveCmd(setup),
			mcpCmd(setup),
			listCmd(setup),
			showCmd(setup),
			analyzeCmd(setup),
			posterCmd(setup),
			followUpCmd(setup),
			storageCmd(setup),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// withEnv runs action against a freshly set-up environment and closes it afterwards.
func withEnv(setup setupFunc, action func(*cli.Context, *appEnv) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		env, err := setup(c)
		if err != nil {
			return outputError(err)
		}
		defer env.Close()
		return action(c, env)
	}
}

// serveCmd creates the serve command.
func serveCmd(setup setupFunc) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Bind address (overrides config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port (overrides config)"},
		},
		Action: withEnv(setup, func(c *cli.Context, env *appEnv) error {
			if bind := c.String("bind"); bind != "" {
				env.cfg.Bind = bind
			}
			if c.IsSet("port") {
				env.cfg.Port = c.Int("port")
			}
			if err := env.cfg.Validate(); err != nil {
				return outputError(errors.NewValidation(err.Error()))
			}

			stages := servePipeline(c.Context, env)
			srv := web.NewServer(web.Deps{
				Store:     env.store,
				Pipeline:  stages,
				Selection: env.selection,
				Logger:    env.logger,
			}, env.cfg)
			return web.Run(c.Context, srv, stages.Drain, env.logger)
		}),
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(setup setupFunc) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the connection tools over MCP stdio",
		Action: withEnv(setup, func(c *cli.Context, env *appEnv) error {
			if unknown := mcp.ValidateDisabledTools(env.cfg.DisabledTools); len(unknown) > 0 {
				env.logger.Warn("ignoring unknown disabled tools", "tools", strings.Join(unknown, ","))
			}

			stages := servePipeline(c.Context, env)
			defer func() { _ = stages.Drain(c.Context) }()

			h := mcp.NewHandlers(env.store, stages, env.selection)
			return mcp.Run(h, env.cfg, Version)
		}),
	}
}

// listCmd creates the list command.
func listCmd(setup setupFunc) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List every connection",
		Action: withEnv(setup, func(c *cli.Context, env *appEnv) error {
			all, err := env.store.GetAll(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, all)
		}),
	}
}

// showCmd creates the show command.
func showCmd(setup setupFunc) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one connection",
		ArgsUsage: "<id>",
		Action: withEnv(setup, func(c *cli.Context, env *appEnv) error {
			id, err := requireID(c)
			if err != nil {
				return outputError(err)
			}
			conn, err := env.store.Get(c.Context, id)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, conn)
		}),
	}
}

// analyzeCmd creates the analyze command.
func analyzeCmd(setup setupFunc) *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Transcribe a connection's audio and derive summary, insights and poster prompt",
		ArgsUsage: "<id>",
		Action: withEnv(setup, func(c *cli.Context, env *appEnv) error {
			id, err := requireID(c)
			if err != nil {
				return outputError(err)
			}
			p, err := env.newPipeline(c.Context)
			if err != nil {
				return outputError(err)
			}
			result, err := p.Analyze(c.Context, id)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, result)
		}),
	}
}

// posterCmd creates the poster command.
func posterCmd(setup setupFunc) *cli.Command {
	return &cli.Command{
		Name:      "poster",
		Usage:     "Generate the poster image from a connection's poster prompt",
		ArgsUsage: "<id>",
		Action: withEnv(setup, func(c *cli.Context, env *appEnv) error {
			id, err := requireID(c)
			if err != nil {
				return outputError(err)
			}
			p, err := env.newPipeline(c.Context)
			if err != nil {
				return outputError(err)
			}
			result, err := p.Poster(c.Context, id)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, result)
		}),
	}
}

// followUpCmd creates the followup command.
func followUpCmd(setup setupFunc) *cli.Command {
	return &cli.Command{
		Name:      "followup",
		Usage:     "Suggest follow-up questions, topics and action items (not stored)",
		ArgsUsage: "<id>",
		Action: withEnv(setup, func(c *cli.Context, env *appEnv) error {
			id, err := requireID(c)
			if err != nil {
				return outputError(err)
			}
			p, err := env.newPipeline(c.Context)
			if err != nil {
				return outputError(err)
			}
			result, err := p.FollowUp(c.Context, id)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, result)
		}),
	}
}

// storageCmd creates the storage command.
func storageCmd(setup setupFunc) *cli.Command {
	return &cli.Command{
		Name:  "storage",
		Usage: "Show which storage backend the current configuration selects",
		Action: withEnv(setup, func(c *cli.Context, env *appEnv) error {
			return outputJSON(c.App.Writer, env.selection)
		}),
	}
}

// Helper functions

// servePipeline builds the pipeline for a long-running surface. Record operations
// stay available when it cannot be built yet; stage calls retry the build.
func servePipeline(ctx context.Context, env *appEnv) *pipeline.Lazy {
	stages := pipeline.NewLazy(env.newPipeline)
	if _, err := stages.Get(ctx, "startup"); err != nil {
		env.logger.Warn("generation unavailable; stage operations will fail until configured", "error", err)
	}
	return stages
}

func requireID(c *cli.Context) (string, error) {
	id := strings.TrimSpace(c.Args().First())
	if id == "" {
		return "", errors.NewValidation("connection id argument is required")
	}
	return id, nil
}

// outputJSON marshals result to w as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var tErr *errors.TetherError
	if stderrors.As(err, &tErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", tErr.Code, tErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/kiln/internal"
	"github.com/starford/kiln/internal/schema"
	pkgconfig "github.com/starford/kiln/pkg/config"
)

var version = "dev"

// loadConfig reads the config file and applies command-line overrides.
// Without an explicit --config, a missing default file means built-in
// defaults.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if cmd.IsSet("config") {
		if err := pkgconfig.Load(configPath, cfg); err != nil {
			return nil, err
		}
	} else if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, err
	}

	overridden := false
	if cmd.IsSet("root") {
		cfg.Content.Root = cmd.String("root")
		overridden = true
	}
	if cmd.IsSet("output") {
		cfg.Content.Output = cmd.String("output")
		overridden = true
	}
	if cmd.IsSet("production") {
		cfg.Build.Production = cmd.Bool("production")
	}
	if cmd.IsSet("policy") {
		cfg.Build.ValidationPolicy = schema.Policy(cmd.String("policy"))
		overridden = true
	}
	if overridden {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}
	return cfg, nil
}

func runMode(mode internal.Mode) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
			internal.WithMode(mode),
			internal.WithVersion(version),
		}

		if err := internal.Run(ctx, opts...); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}

		return nil
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "kiln",
		Usage:   "Compile a content tree of Markdown and annotated scripts into typed, render-ready collections",
		Version: version,
		Action:  runMode(internal.ModeServe),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "root",
				Usage:   "Content root directory (overrides content.root)",
				Sources: cli.EnvVars("KILN_CONTENT_ROOT"),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output directory (overrides content.output)",
				Sources: cli.EnvVars("KILN_OUTPUT"),
			},
			&cli.BoolFlag{
				Name:    "production",
				Usage:   "Leave drafts out of the output",
				Sources: cli.EnvVars("KILN_PRODUCTION"),
			},
			&cli.StringFlag{
				Name:    "policy",
				Usage:   "Validation policy: drop, warn or fail",
				Sources: cli.EnvVars("KILN_VALIDATION_POLICY"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Compile the content tree once and write the output files",
				Action: runMode(internal.ModeBuild),
			},
			{
				Name:   "watch",
				Usage:  "Recompile whenever the content tree changes",
				Action: runMode(internal.ModeWatch),
			},
			{
				Name:   "serve",
				Usage:  "Watch the content tree and serve the JSON API",
				Action: runMode(internal.ModeServe),
			},
			{
				Name:   "mcp",
				Usage:  "Watch the content tree and serve MCP tools over stdio",
				Action: runMode(internal.ModeMCP),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/wintermute/internal"
	pkgconfig "github.com/starford/wintermute/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp server error: %w", err)
	}
	return nil
}

// runConvert converts a story file without loading a config file, so it
// works outside a configured library.
func runConvert(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one story file, got %d arguments", cmd.Args().Len())
	}
	name := cmd.Args().First()

	f, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("open story: %w", err)
	}
	defer f.Close()

	cfg := internal.NewDefaultConfig()
	cfg.Convert.Pretty = cmd.Bool("pretty")
	if depth := cmd.Int("max-prop-depth"); depth > 0 {
		cfg.Convert.MaxPropDepth = int(depth)
	}

	if err := internal.Convert(f, os.Stdout, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("convert %s: %w", name, err)
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "wintermute",
		Usage:  "Convert published Twine stories into JSON story graphs and serve a searchable story library",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "convert",
				Usage:     "Convert a published story HTML file and print its JSON graph",
				ArgsUsage: "<file>",
				Action:    runConvert,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Indent the JSON output",
					},
					&cli.IntFlag{
						Name:  "max-prop-depth",
						Usage: "Nesting limit for metadata blocks",
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio against the configured library",
				Action: runMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

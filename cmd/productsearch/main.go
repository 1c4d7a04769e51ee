package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/shubhsaxena/product-search/internal/config"
	"github.com/shubhsaxena/product-search/internal/observability"
)

func main() {
	app := &cli.Command{
		Name:  "productsearch",
		Usage: "Search, parse and index the product catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path (defaults are used when empty)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			SearchCommand(),
			SuggestCommand(),
			ParseCommand(),
			IndexCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.DefaultConfig()
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}

// newLogger keeps the CLI quiet unless --debug is set. Logs go to stderr.
func newLogger(c *cli.Command) (*zap.Logger, error) {
	level := "warn"
	if c.Bool("debug") {
		level = "debug"
	}
	return observability.NewLogger(level)
}

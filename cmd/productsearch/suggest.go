package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/shubhsaxena/product-search/internal/app"
)

// SuggestCommand prints product name completions for a partial query.
func SuggestCommand() *cli.Command {
	return &cli.Command{
		Name:      "suggest",
		Usage:     "Suggest product names for a partial query",
		ArgsUsage: "<partial>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of suggestions (0 uses the configured default)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print suggestions as JSON",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			partial := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(partial) == "" {
				return fmt.Errorf("a partial query is required")
			}

			cfg, err := loadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logger, err := newLogger(c)
			if err != nil {
				return fmt.Errorf("creating logger: %w", err)
			}
			defer logger.Sync()

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			limit := c.Int("limit")
			if limit <= 0 {
				limit = cfg.Search.SuggestionLimit
			}
			suggestions := a.Service.Suggest(ctx, partial, limit)

			if c.Bool("json") {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{"suggestions": suggestions})
			}
			fmt.Print(renderSuggestions(partial, suggestions))
			return nil
		},
	}
}

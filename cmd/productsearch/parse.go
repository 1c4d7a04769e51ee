package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/shubhsaxena/product-search/internal/ai"
	"github.com/shubhsaxena/product-search/internal/orchestrator"
)

// ParseCommand shows how a query is turned into search options. It needs no
// search backend.
func ParseCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "Show the structured options parsed from a query",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "parser",
				Usage: "Query parser: auto, rules, ai or none",
				Value: "auto",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print options as JSON",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			text := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("a query is required")
			}
			mode, err := parserMode(c.String("parser"))
			if err != nil {
				return err
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

			var opts []orchestrator.Option
			if cfg.AI.Enabled() {
				opts = append(opts, orchestrator.WithAIParser(ai.NewQueryParser(cfg.AI, logger)))
			}
			svc := orchestrator.New(nil, cfg.Search, logger, opts...)

			parsed, source := svc.ParseQuery(ctx, text, mode)
			if c.Bool("json") {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{"options": parsed, "source": source})
			}
			fmt.Print(renderParsed(text, parsed, source))
			return nil
		},
	}
}

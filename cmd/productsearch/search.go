package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/shubhsaxena/product-search/internal/app"
	"github.com/shubhsaxena/product-search/internal/models"
)

// SearchCommand runs a free text search with optional structured overrides.
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search products with a natural language query",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "parser",
				Usage: "Query parser: auto, rules, ai or none",
				Value: "auto",
			},
			&cli.StringSliceFlag{
				Name:  "category",
				Usage: "Restrict to a category. Can be used multiple times",
			},
			&cli.FloatFlag{
				Name:  "min-price",
				Usage: "Minimum price",
			},
			&cli.FloatFlag{
				Name:  "max-price",
				Usage: "Maximum price",
			},
			&cli.BoolFlag{
				Name:  "in-stock",
				Usage: "Only products in stock (use --in-stock=false for out of stock)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of results",
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Number of results to skip",
			},
			&cli.StringFlag{
				Name:  "sort",
				Usage: "Sort as field[:order], e.g. price:desc",
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "User ID recorded in search history",
			},
			&cli.BoolFlag{
				Name:  "fresh",
				Usage: "Bypass the result cache",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the raw result as JSON",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			req, err := searchRequestFromFlags(c)
			if err != nil {
				return err
			}
			return runSearch(ctx, c, req)
		},
	}
}

func searchRequestFromFlags(c *cli.Command) (*models.SearchRequest, error) {
	mode, err := parserMode(c.String("parser"))
	if err != nil {
		return nil, err
	}

	req := &models.SearchRequest{
		Text:       strings.Join(c.Args().Slice(), " "),
		Parser:     mode,
		UserID:     c.String("user"),
		ForceFresh: c.Bool("fresh"),
	}
	opts := &req.Options

	if cats := c.StringSlice("category"); len(cats) == 1 {
		opts.Category = models.SingleCategory(cats[0])
	} else if len(cats) > 1 {
		opts.Category = models.AnyCategory(cats...)
	}
	if c.IsSet("min-price") {
		v := c.Float("min-price")
		opts.MinPrice = &v
	}
	if c.IsSet("max-price") {
		v := c.Float("max-price")
		opts.MaxPrice = &v
	}
	if c.IsSet("in-stock") {
		v := c.Bool("in-stock")
		opts.InStock = &v
	}
	opts.Limit = c.Int("limit")
	opts.Offset = c.Int("offset")

	if s := c.String("sort"); s != "" {
		field, order, _ := strings.Cut(s, ":")
		if !models.ValidSortBy(field) {
			return nil, fmt.Errorf("invalid sort field %q", field)
		}
		if order != "" && !models.ValidSortOrder(order) {
			return nil, fmt.Errorf("invalid sort order %q", order)
		}
		opts.SortBy = field
		opts.SortOrder = order
	}

	if req.Text == "" && opts.Category.Empty() && opts.MinPrice == nil && opts.MaxPrice == nil && opts.InStock == nil {
		return nil, fmt.Errorf("a query or at least one filter is required")
	}
	return req, nil
}

func runSearch(ctx context.Context, c *cli.Command, req *models.SearchRequest) error {
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

	result := a.Service.Search(ctx, req)

	query := req.Text
	if query == "" {
		query = req.Options.Query
	}
	a.Service.LogSearch(ctx, query, req.UserID, result)

	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Print(renderSearchResult(query, result))
	return nil
}

func parserMode(s string) (models.ParserMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return models.ParserAuto, nil
	case "rules":
		return models.ParserRules, nil
	case "ai":
		return models.ParserAI, nil
	case "none":
		return models.ParserNone, nil
	}
	return "", fmt.Errorf("unknown parser %q (want auto, rules, ai or none)", s)
}

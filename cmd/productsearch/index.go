package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/shubhsaxena/product-search/internal/app"
	"github.com/shubhsaxena/product-search/internal/firestore"
	"github.com/shubhsaxena/product-search/internal/models"
)

// IndexCommand loads products into the search index from a JSON file or a
// full scan of the firestore collection.
func IndexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "Index products from a JSON file or from firestore",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "file",
				Usage: "Path to a JSON array of product records",
			},
			&cli.BoolFlag{
				Name:  "from-firestore",
				Usage: "Scan the configured firestore collection",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			file := c.String("file")
			fromFS := c.Bool("from-firestore")
			if (file == "") == !fromFS {
				return fmt.Errorf("exactly one of --file or --from-firestore is required")
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

			var n int
			if file != "" {
				records, err := readProducts(file)
				if err != nil {
					return err
				}
				n, err = a.Indexer.IndexProducts(ctx, records)
				if err != nil {
					return fmt.Errorf("indexed %d of %d products: %w", n, len(records), err)
				}
			} else {
				fs, err := firestore.NewClient(ctx, cfg.Firestore, logger)
				if err != nil {
					return fmt.Errorf("initializing firestore: %w", err)
				}
				defer fs.Close()

				n, err = fs.ScanProducts(ctx, func(event *models.ChangeEvent) error {
					return a.Indexer.HandleEvent(ctx, event)
				})
				if err != nil {
					return fmt.Errorf("scanning firestore after %d products: %w", n, err)
				}
				if err := a.Indexer.Flush(ctx); err != nil {
					return err
				}
			}

			fmt.Println(summaryStyle.Render(fmt.Sprintf("Indexed %d products into %s", n, cfg.Elasticsearch.Index)))
			return nil
		},
	}
}

func readProducts(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.UseNumber()
	var records []map[string]any
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return records, nil
}

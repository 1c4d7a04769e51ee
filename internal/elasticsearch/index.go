package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/product-search/internal/models"
	"github.com/shubhsaxena/product-search/internal/observability"
)

// productMapping mirrors models.Document. category and sku are analyzed for
// the text query and carry a .raw keyword for exact filters and facets.
func productMapping(shards, replicas int, refresh string) map[string]any {
	textWithRaw := map[string]any{
		"type": "text",
		"fields": map[string]any{
			"raw": map[string]any{"type": "keyword", "ignore_above": 256},
		},
	}
	return map[string]any{
		"settings": map[string]any{
			"number_of_shards":   shards,
			"number_of_replicas": replicas,
			"refresh_interval":   refresh,
		},
		"mappings": map[string]any{
			"dynamic": "strict",
			"properties": map[string]any{
				"id":          map[string]any{"type": "keyword"},
				"name":        map[string]any{"type": "text"},
				"description": map[string]any{"type": "text"},
				"price":       map[string]any{"type": "double"},
				"category":    textWithRaw,
				"sku":         textWithRaw,
				"inStock":     map[string]any{"type": "double"},
				"attributes":  map[string]any{"type": "keyword", "index": false},
				"createdAt":   map[string]any{"type": "date"},
				"updatedAt":   map[string]any{"type": "date"},
				"sort_index":  map[string]any{"type": "integer"},
			},
		},
	}
}

// EnsureIndex creates the product index with its mapping if it does not
// already exist. An existing index is left untouched.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists(
		[]string{c.cfg.Index},
		c.es.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("checking index %s: %w", c.cfg.Index, err)
	}
	res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}
	if res.StatusCode != 404 {
		return fmt.Errorf("checking index %s: status=%s", c.cfg.Index, res.Status())
	}

	body, err := json.Marshal(productMapping(c.cfg.NumShards, c.cfg.NumReplicas, c.cfg.RefreshInterval))
	if err != nil {
		return fmt.Errorf("marshaling index mapping: %w", err)
	}

	res, err = c.es.Indices.Create(
		c.cfg.Index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return fmt.Errorf("creating index %s: %w", c.cfg.Index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		if strings.Contains(string(bodyBytes), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("creating index %s: status=%s body=%s", c.cfg.Index, res.Status(), truncate(string(bodyBytes), maxErrorBody))
	}

	c.logger.Info("created product index", zap.String("index", c.cfg.Index))
	return nil
}

// BulkIndex applies index and delete actions in one _bulk request. Actions
// with an empty Index go to the configured product index.
func (c *Client) BulkIndex(ctx context.Context, actions []models.IndexAction) error {
	if len(actions) == 0 {
		return nil
	}

	ctx, span := observability.StartSpan(ctx, "es.bulk_index",
		attribute.Int("batch_size", len(actions)),
	)
	defer span.End()

	var buf bytes.Buffer
	for _, action := range actions {
		index := action.Index
		if index == "" {
			index = c.cfg.Index
		}
		meta := map[string]any{
			action.Action: map[string]any{
				"_index": index,
				"_id":    action.ID,
			},
		}

		metaLine, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshaling bulk meta: %w", err)
		}
		buf.Write(metaLine)
		buf.WriteByte('\n')

		if action.Action != "delete" && action.Body != nil {
			bodyLine, err := json.Marshal(action.Body)
			if err != nil {
				return fmt.Errorf("marshaling bulk body: %w", err)
			}
			buf.Write(bodyLine)
			buf.WriteByte('\n')
		}
	}

	res, err := c.es.Bulk(
		bytes.NewReader(buf.Bytes()),
		c.es.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("executing bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return fmt.Errorf("bulk request error status=%s body=%s", res.Status(), truncate(string(bodyBytes), maxErrorBody))
	}

	var bulkResp bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("decoding bulk response: %w", err)
	}

	if bulkResp.Errors {
		var errMsgs []string
		for _, item := range bulkResp.Items {
			for op, result := range item {
				// deleting an already-missing document is not a failure
				if op == "delete" && result.Status == 404 {
					continue
				}
				if result.Error != nil {
					errMsgs = append(errMsgs, fmt.Sprintf("id=%s: %s", result.ID, result.Error.Reason))
				}
			}
		}
		if len(errMsgs) > 0 {
			return fmt.Errorf("bulk indexing had %d errors: %s", len(errMsgs), strings.Join(errMsgs, "; "))
		}
	}

	return nil
}

type bulkResponse struct {
	Errors bool                         `json:"errors"`
	Items  []map[string]bulkItemResult `json:"items"`
}

type bulkItemResult struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error,omitempty"`
}

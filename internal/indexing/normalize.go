package indexing

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shubhsaxena/product-search/internal/models"
)

// NormalizeProduct converts a raw catalog record into the engine document
// shape. IDs become strings, attributes become a JSON string ("{}" when
// absent) and missing timestamps are set to now. sortIndex is used only when
// the record carries no sort_index of its own.
func NormalizeProduct(raw map[string]any, sortIndex int, now time.Time) (*models.Document, error) {
	id, err := stringID(raw["id"])
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:          id,
		Name:        stringField(raw["name"]),
		Description: stringField(raw["description"]),
		Category:    stringField(raw["category"]),
		SKU:         stringField(raw["sku"]),
		SortIndex:   sortIndex,
	}

	if doc.Price, err = number(raw["price"]); err != nil {
		return nil, fmt.Errorf("product %s price: %w", id, err)
	}
	if doc.InStock, err = stock(raw["inStock"]); err != nil {
		return nil, fmt.Errorf("product %s inStock: %w", id, err)
	}
	if doc.Attributes, err = attributes(raw["attributes"]); err != nil {
		return nil, fmt.Errorf("product %s attributes: %w", id, err)
	}

	if v, ok := raw["sort_index"]; ok && v != nil {
		n, err := number(v)
		if err != nil {
			return nil, fmt.Errorf("product %s sort_index: %w", id, err)
		}
		doc.SortIndex = int(n)
	}

	stamp := now.UTC().Format(time.RFC3339Nano)
	doc.CreatedAt = timestamp(raw["createdAt"], stamp)
	doc.UpdatedAt = timestamp(raw["updatedAt"], stamp)
	return doc, nil
}

func stringID(v any) (string, error) {
	switch id := v.(type) {
	case string:
		if strings.TrimSpace(id) == "" {
			return "", fmt.Errorf("product id is empty")
		}
		return id, nil
	case nil:
		return "", fmt.Errorf("product id missing")
	default:
		n, err := number(v)
		if err != nil {
			return "", fmt.Errorf("product id: %w", err)
		}
		if n == math.Trunc(n) {
			return strconv.FormatInt(int64(n), 10), nil
		}
		return strconv.FormatFloat(n, 'f', -1, 64), nil
	}
}

func stringField(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func number(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		if n == "" {
			return 0, nil
		}
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", v)
	}
}

// stock accepts a quantity or a boolean availability flag.
func stock(v any) (float64, error) {
	if b, ok := v.(bool); ok {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	return number(v)
}

func attributes(v any) (string, error) {
	switch a := v.(type) {
	case nil:
		return "{}", nil
	case string:
		if strings.TrimSpace(a) == "" {
			return "{}", nil
		}
		return a, nil
	default:
		data, err := json.Marshal(a)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

func timestamp(v any, fallback string) string {
	switch t := v.(type) {
	case string:
		if t != "" {
			return t
		}
	case time.Time:
		if !t.IsZero() {
			return t.UTC().Format(time.RFC3339Nano)
		}
	}
	return fallback
}

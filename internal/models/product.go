package models

import "time"

// Document is a product as stored in the search engine. Attributes is a
// JSON-encoded string, not a nested object, and InStock is a stock quantity.
type Document struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	SKU         string  `json:"sku"`
	InStock     float64 `json:"inStock"`
	Attributes  string  `json:"attributes"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
	SortIndex   int     `json:"sort_index"`
}

type ChangeEvent struct {
	Type       string         `json:"type"` // CREATE, UPDATE, DELETE
	DocumentID string         `json:"document_id"`
	Collection string         `json:"collection"`
	Document   map[string]any `json:"document,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Version    int64          `json:"version"`
}

type IndexAction struct {
	Action    string    `json:"action"` // index, delete
	Index     string    `json:"index"`
	ID        string    `json:"id"`
	Body      *Document `json:"body,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

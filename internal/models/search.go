package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	DefaultLimit  = 10
	DefaultOffset = 0
)

// Sort fields accepted on input. Only SortableFields reach the engine.
const (
	SortByPrice     = "price"
	SortByName      = "name"
	SortByCreatedAt = "created_at"
	SortBySortIndex = "sort_index"
	SortByInStock   = "inStock"

	SortAsc  = "asc"
	SortDesc = "desc"
)

var SortableFields = map[string]bool{
	SortByPrice:     true,
	SortBySortIndex: true,
	SortByInStock:   true,
}

// IsSortable reports whether the engine accepts field as an explicit sort key.
func IsSortable(field string) bool {
	return SortableFields[field]
}

// ValidSortBy reports whether field is an accepted sortBy input value.
func ValidSortBy(field string) bool {
	switch field {
	case SortByPrice, SortByName, SortByCreatedAt, SortBySortIndex, SortByInStock:
		return true
	}
	return false
}

func ValidSortOrder(order string) bool {
	return order == SortAsc || order == SortDesc
}

// CategoryFilter holds either a single category (Multi false) or an ordered
// set of categories. It marshals as a JSON string or array respectively.
type CategoryFilter struct {
	Values []string
	Multi  bool
}

func SingleCategory(name string) *CategoryFilter {
	return &CategoryFilter{Values: []string{name}}
}

func AnyCategory(names ...string) *CategoryFilter {
	return &CategoryFilter{Values: names, Multi: true}
}

func (c CategoryFilter) MarshalJSON() ([]byte, error) {
	if c.Multi {
		if c.Values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(c.Values)
	}
	if len(c.Values) == 0 {
		return []byte(`""`), nil
	}
	return json.Marshal(c.Values[0])
}

func (c *CategoryFilter) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty category value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding category: %w", err)
		}
		c.Values = []string{s}
		c.Multi = false
	case '[':
		var vals []string
		if err := json.Unmarshal(data, &vals); err != nil {
			return fmt.Errorf("decoding category list: %w", err)
		}
		c.Values = vals
		c.Multi = true
	default:
		return fmt.Errorf("category must be a string or an array of strings")
	}
	return nil
}

// Empty reports whether the filter selects nothing and should be ignored.
func (c *CategoryFilter) Empty() bool {
	if c == nil {
		return true
	}
	for _, v := range c.Values {
		if v != "" {
			return false
		}
	}
	return true
}

// SearchOptions is the structured form of a product query. Nil pointers and
// zero values mean "not set".
type SearchOptions struct {
	Query     string          `json:"query"`
	Category  *CategoryFilter `json:"category,omitempty"`
	MinPrice  *float64        `json:"minPrice,omitempty"`
	MaxPrice  *float64        `json:"maxPrice,omitempty"`
	InStock   *bool           `json:"inStock,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Offset    int             `json:"offset,omitempty"`
	SortBy    string          `json:"sortBy,omitempty"`
	SortOrder string          `json:"sortOrder,omitempty"`
}

// FillFrom copies every field that is unset on o from parsed. Explicitly set
// fields on o always win.
func (o *SearchOptions) FillFrom(parsed *SearchOptions) {
	if parsed == nil {
		return
	}
	if o.Query == "" {
		o.Query = parsed.Query
	}
	if o.Category.Empty() && !parsed.Category.Empty() {
		o.Category = parsed.Category
	}
	if o.MinPrice == nil {
		o.MinPrice = parsed.MinPrice
	}
	if o.MaxPrice == nil {
		o.MaxPrice = parsed.MaxPrice
	}
	if o.InStock == nil {
		o.InStock = parsed.InStock
	}
	if o.Limit <= 0 {
		o.Limit = parsed.Limit
	}
	if o.Offset <= 0 {
		o.Offset = parsed.Offset
	}
	if o.SortBy == "" {
		o.SortBy = parsed.SortBy
		if o.SortOrder == "" {
			o.SortOrder = parsed.SortOrder
		}
	}
}

// ParserMode selects how free text is turned into SearchOptions.
type ParserMode string

const (
	ParserAuto  ParserMode = ""
	ParserRules ParserMode = "rules"
	ParserAI    ParserMode = "ai"
	ParserNone  ParserMode = "none"
)

// SearchRequest is what callers (HTTP, CLI) hand to the search service.
type SearchRequest struct {
	Text       string        `json:"text,omitempty"`
	Options    SearchOptions `json:"options"`
	Parser     ParserMode    `json:"parser,omitempty"`
	UserID     string        `json:"user_id,omitempty"`
	ForceFresh bool          `json:"force_fresh,omitempty"`
	RequestID  string        `json:"request_id,omitempty"`
}

// ProductResult is an engine document merged with its relevance score.
type ProductResult struct {
	Document
	Score float64 `json:"score"`
}

type Pagination struct {
	Limit       int   `json:"limit"`
	Offset      int   `json:"offset"`
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	TotalPages  int64 `json:"total_pages"`
}

type SearchResult struct {
	Count      int64           `json:"count"`
	Results    []ProductResult `json:"results"`
	Facets     []FacetCount    `json:"facets"`
	Pagination Pagination      `json:"pagination"`
	Error      string          `json:"error,omitempty"`
}

// EmptySearchResult is the canonical result for a failed or empty search.
// Pagination resets to defaults rather than echoing the request.
func EmptySearchResult(errMsg string) *SearchResult {
	return &SearchResult{
		Count:   0,
		Results: []ProductResult{},
		Facets:  []FacetCount{},
		Pagination: Pagination{
			Limit:       DefaultLimit,
			Offset:      DefaultOffset,
			Total:       0,
			CurrentPage: 1,
			TotalPages:  0,
		},
		Error: errMsg,
	}
}

// ResultCount lets history summaries read the hit count without reflection.
func (r *SearchResult) ResultCount() int64 {
	return r.Count
}

package models

import (
	"fmt"
	"strconv"
	"strings"
)

var (
	SearchQueryBy  = []string{"name", "description", "sku"}
	SuggestQueryBy = []string{"name", "category"}
	DefaultFacets  = []string{"category", "inStock"}
)

type FilterOp string

const (
	OpEq  FilterOp = ":="
	OpIn  FilterOp = ":=[]"
	OpGt  FilterOp = ":>"
	OpGte FilterOp = ":>="
	OpLte FilterOp = ":<="
)

// FilterClause is one ANDed condition. Values holds strings for category
// clauses and float64 for numeric ones.
type FilterClause struct {
	Field  string
	Op     FilterOp
	Values []any
}

// String renders the clause in the engine filter_by syntax, e.g.
// category:=['Books','Toys'] or price:>=50.
func (c FilterClause) String() string {
	switch c.Op {
	case OpIn:
		parts := make([]string, len(c.Values))
		for i, v := range c.Values {
			parts[i] = formatFilterValue(v)
		}
		return fmt.Sprintf("%s:=[%s]", c.Field, strings.Join(parts, ","))
	default:
		if len(c.Values) == 0 {
			return c.Field + string(c.Op)
		}
		return c.Field + string(c.Op) + formatFilterValue(c.Values[0])
	}
}

func formatFilterValue(v any) string {
	switch t := v.(type) {
	case string:
		return "'" + t + "'"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprint(t)
	}
}

type SortClause struct {
	Field string
	Order string
}

func (s SortClause) String() string {
	return s.Field + ":" + s.Order
}

// CompiledQuery is the engine-ready form of SearchOptions. It is derived per
// request and never stored.
type CompiledQuery struct {
	Term    string
	QueryBy []string
	Filters []FilterClause
	Sort    *SortClause
	// SuppressedSort names a requested sort field the engine cannot sort on.
	SuppressedSort string
	Page           int
	PerPage        int
	FacetBy        []string
	Prefix         bool
}

// FilterBy joins all clauses with logical AND. Empty means no filter.
func (q *CompiledQuery) FilterBy() string {
	if len(q.Filters) == 0 {
		return ""
	}
	parts := make([]string, len(q.Filters))
	for i, f := range q.Filters {
		parts[i] = f.String()
	}
	return strings.Join(parts, " && ")
}

func (q *CompiledQuery) EngineRequest() *EngineRequest {
	req := &EngineRequest{
		Q:       q.Term,
		QueryBy: q.QueryBy,
		Page:    q.Page,
		PerPage: q.PerPage,
		FacetBy: strings.Join(q.FacetBy, ","),
		Prefix:  q.Prefix,
		Filters: q.Filters,
		Sort:    q.Sort,
	}
	req.FilterBy = q.FilterBy()
	if q.Sort != nil {
		req.SortBy = q.Sort.String()
	}
	return req
}

// EngineRequest is the wire contract with the document search engine.
// Filters and Sort carry the structured form of FilterBy/SortBy for engines
// that do not speak the string syntax.
type EngineRequest struct {
	Q        string         `json:"q"`
	QueryBy  []string       `json:"query_by"`
	FilterBy string         `json:"filter_by,omitempty"`
	SortBy   string         `json:"sort_by,omitempty"`
	Page     int            `json:"page"`
	PerPage  int            `json:"per_page"`
	FacetBy  string         `json:"facet_by,omitempty"`
	Prefix   bool           `json:"prefix,omitempty"`
	Filters  []FilterClause `json:"-"`
	Sort     *SortClause    `json:"-"`
}

type Hit struct {
	Document  *Document `json:"document"`
	TextMatch *float64  `json:"text_match,omitempty"`
}

type FacetValue struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

type FacetCount struct {
	FieldName string       `json:"field_name"`
	Counts    []FacetValue `json:"counts"`
}

type EngineResponse struct {
	Found       int64        `json:"found"`
	Hits        []Hit        `json:"hits"`
	Page        int          `json:"page"`
	FacetCounts []FacetCount `json:"facet_counts,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// DegradedResponse is returned in place of an engine failure.
func DegradedResponse(errMsg string) *EngineResponse {
	return &EngineResponse{
		Found: 0,
		Hits:  []Hit{},
		Page:  1,
		Error: errMsg,
	}
}

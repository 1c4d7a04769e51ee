package elasticsearch

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/shubhsaxena/product-search/internal/models"
	"github.com/shubhsaxena/product-search/internal/resilience"
)

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestBuildSearchBody_MatchAll(t *testing.T) {
	for _, q := range []string{"", "*"} {
		body := BuildSearchBody(&models.EngineRequest{Q: q, Page: 1, PerPage: 10}, 50)
		got := mustJSON(t, body["query"])
		if !strings.Contains(got, `"match_all":{}`) {
			t.Errorf("q=%q: expected match_all, got %s", q, got)
		}
		if _, ok := body["aggs"]; ok {
			t.Errorf("q=%q: expected no aggs without facet_by", q)
		}
	}
}

func TestBuildSearchBody_TextQuery(t *testing.T) {
	body := BuildSearchBody(&models.EngineRequest{
		Q:       "headphones",
		QueryBy: models.SearchQueryBy,
		Page:    1,
		PerPage: 10,
	}, 50)
	got := mustJSON(t, body["query"])
	if !strings.Contains(got, `"fields":["name","description","sku"]`) {
		t.Errorf("expected query_by fields, got %s", got)
	}
	if !strings.Contains(got, `"fuzziness":"AUTO"`) {
		t.Errorf("expected fuzzy best_fields, got %s", got)
	}
}

func TestBuildSearchBody_Prefix(t *testing.T) {
	body := BuildSearchBody(&models.EngineRequest{
		Q:       "sma",
		QueryBy: models.SuggestQueryBy,
		Prefix:  true,
		Page:    1,
		PerPage: 5,
	}, 50)
	got := mustJSON(t, body["query"])
	if !strings.Contains(got, `"type":"bool_prefix"`) {
		t.Errorf("expected bool_prefix, got %s", got)
	}
	if strings.Contains(got, "fuzziness") {
		t.Errorf("prefix queries should not be fuzzy, got %s", got)
	}
}

func TestBuildSearchBody_Filters(t *testing.T) {
	body := BuildSearchBody(&models.EngineRequest{
		Page:    1,
		PerPage: 10,
		Filters: []models.FilterClause{
			{Field: "category", Op: models.OpIn, Values: []any{"Books", "Toys"}},
			{Field: "price", Op: models.OpGte, Values: []any{10.0}},
			{Field: "price", Op: models.OpLte, Values: []any{50.0}},
			{Field: "inStock", Op: models.OpGt, Values: []any{0.0}},
			{Field: "inStock", Op: models.OpEq, Values: []any{0.0}},
		},
	}, 50)
	got := mustJSON(t, body["query"])

	wants := []string{
		`{"terms":{"category.raw":["Books","Toys"]}}`,
		`{"range":{"price":{"gte":10}}}`,
		`{"range":{"price":{"lte":50}}}`,
		`{"range":{"inStock":{"gt":0}}}`,
		`{"term":{"inStock":0}}`,
	}
	for _, w := range wants {
		if !strings.Contains(got, w) {
			t.Errorf("expected %s in %s", w, got)
		}
	}
}

func TestBuildSearchBody_SingleCategoryUsesTerm(t *testing.T) {
	body := BuildSearchBody(&models.EngineRequest{
		Page:    1,
		PerPage: 10,
		Filters: []models.FilterClause{{Field: "category", Op: models.OpEq, Values: []any{"Electronics"}}},
	}, 50)
	if got := mustJSON(t, body["query"]); !strings.Contains(got, `{"term":{"category.raw":"Electronics"}}`) {
		t.Errorf("expected term on keyword field, got %s", got)
	}
}

func TestBuildSearchBody_Paging(t *testing.T) {
	tests := []struct {
		page, perPage, wantFrom int
	}{
		{1, 10, 0},
		{3, 10, 20},
		{0, 10, 0},
		{2, 25, 25},
	}
	for _, tt := range tests {
		body := BuildSearchBody(&models.EngineRequest{Page: tt.page, PerPage: tt.perPage}, 50)
		if body["from"] != tt.wantFrom {
			t.Errorf("page=%d per_page=%d: from=%v, want %d", tt.page, tt.perPage, body["from"], tt.wantFrom)
		}
		if body["size"] != tt.perPage {
			t.Errorf("expected size %d, got %v", tt.perPage, body["size"])
		}
	}
}

func TestBuildSearchBody_Sort(t *testing.T) {
	body := BuildSearchBody(&models.EngineRequest{
		Page: 1, PerPage: 10,
		Sort: &models.SortClause{Field: "price", Order: "desc"},
	}, 50)
	if got := mustJSON(t, body["sort"]); got != `[{"price":{"order":"desc"}},{"_score":{"order":"desc"}}]` {
		t.Errorf("unexpected sort %s", got)
	}
	if body["track_scores"] != true {
		t.Error("expected track_scores with explicit sort")
	}

	body = BuildSearchBody(&models.EngineRequest{Page: 1, PerPage: 10}, 50)
	if got := mustJSON(t, body["sort"]); got != `[{"_score":{"order":"desc"}},{"sort_index":{"order":"asc"}}]` {
		t.Errorf("unexpected default sort %s", got)
	}
}

func TestBuildSearchBody_Facets(t *testing.T) {
	body := BuildSearchBody(&models.EngineRequest{Page: 1, PerPage: 10, FacetBy: "category,inStock"}, 20)
	got := mustJSON(t, body["aggs"])
	if !strings.Contains(got, `"category":{"terms":{"field":"category.raw","size":20}}`) {
		t.Errorf("expected category terms agg, got %s", got)
	}
	if !strings.Contains(got, `"inStock":{"terms":{"field":"inStock","size":20}}`) {
		t.Errorf("expected inStock terms agg, got %s", got)
	}
}

func TestToEngineResponse(t *testing.T) {
	raw := `{
		"took": 3,
		"hits": {
			"total": {"value": 42},
			"hits": [
				{"_id": "7", "_score": 4.5, "_source": {"id": "7", "name": "Smartphone X12", "price": 799.99, "category": "Electronics", "inStock": 12, "sort_index": 7}},
				{"_id": "9", "_score": null, "_source": {"name": "No Id"}}
			]
		},
		"aggregations": {
			"inStock": {"buckets": [{"key": 0.0, "doc_count": 3}, {"key": 12.0, "doc_count": 1}]},
			"category": {"buckets": [{"key": "Electronics", "doc_count": 30}]}
		}
	}`
	var resp esSearchResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	out := toEngineResponse(&resp, 2, []string{"category", "inStock"})
	if out.Found != 42 || out.Page != 2 {
		t.Errorf("unexpected found/page %d/%d", out.Found, out.Page)
	}
	if len(out.Hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(out.Hits))
	}
	if out.Hits[0].Document.Name != "Smartphone X12" || *out.Hits[0].TextMatch != 4.5 {
		t.Errorf("unexpected first hit %+v", out.Hits[0])
	}
	if out.Hits[1].TextMatch != nil {
		t.Error("null score should stay nil")
	}
	if out.Hits[1].Document.ID != "9" {
		t.Errorf("missing source id should fall back to _id, got %q", out.Hits[1].Document.ID)
	}
	if len(out.FacetCounts) != 2 || out.FacetCounts[0].FieldName != "category" {
		t.Fatalf("expected facets in requested order, got %+v", out.FacetCounts)
	}
	if out.FacetCounts[1].Counts[0].Value != "0" || out.FacetCounts[1].Counts[1].Value != "12" {
		t.Errorf("unexpected numeric bucket keys %+v", out.FacetCounts[1].Counts)
	}
}

func TestClassifyResponse(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		want      error
		permanent bool
	}{
		{"unmapped sort", 400, `{"error":{"reason":"No mapping found for [created_at] in order to sort on"}}`, models.ErrSchemaDrift, true},
		{"unknown field", 400, `failed to find field [color]`, models.ErrSchemaDrift, true},
		{"bad request", 400, `{"error":{"type":"parsing_exception"}}`, models.ErrMalformedQuery, true},
		{"missing index", 404, `{"error":{"type":"index_not_found_exception"}}`, models.ErrEngineUnavailable, true},
		{"overloaded", 429, `rejected`, models.ErrEngineUnavailable, false},
		{"server error", 503, `unavailable`, models.ErrEngineUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyResponse(tt.status, tt.body)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if resilience.IsPermanent(err) != tt.permanent {
				t.Errorf("permanent = %v, want %v", resilience.IsPermanent(err), tt.permanent)
			}
		})
	}
}

func TestClassifyResponse_TruncatesBody(t *testing.T) {
	err := classifyResponse(500, strings.Repeat("x", 4096))
	if len(err.Error()) > maxErrorBody+100 {
		t.Errorf("error message not truncated: %d bytes", len(err.Error()))
	}
}

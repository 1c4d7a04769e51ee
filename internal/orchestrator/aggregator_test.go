package orchestrator

import (
	"testing"

	"github.com/shubhsaxena/product-search/internal/models"
)

func TestResultAggregator_TotalPages(t *testing.T) {
	tests := []struct {
		name  string
		found int64
		limit int
		want  int64
	}{
		{"no results", 0, 10, 0},
		{"partial last page", 25, 10, 3},
		{"exact pages", 30, 10, 3},
		{"single", 1, 10, 1},
		{"zero limit coerced", 25, 0, 3},
	}
	agg := NewResultAggregator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := agg.Aggregate(&models.EngineResponse{Found: tt.found, Hits: []models.Hit{}, Page: 1}, tt.limit, 0)
			if r.Pagination.TotalPages != tt.want {
				t.Errorf("total_pages = %d, want %d", r.Pagination.TotalPages, tt.want)
			}
		})
	}
}

func TestResultAggregator_MapsHits(t *testing.T) {
	raw := &models.EngineResponse{
		Found: 2,
		Page:  2,
		Hits: []models.Hit{
			hit("2", "Speaker", "Audio", score(12.5)),
			hit("1", "Headphones", "Audio", nil),
			{Document: nil},
		},
		FacetCounts: []models.FacetCount{{FieldName: "category", Counts: []models.FacetValue{{Value: "Audio", Count: 2}}}},
	}

	r := NewResultAggregator().Aggregate(raw, 10, 10)

	if r.Count != 2 {
		t.Errorf("count = %d, want 2", r.Count)
	}
	if len(r.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(r.Results))
	}
	if r.Results[0].ID != "2" || r.Results[1].ID != "1" {
		t.Error("engine order must be preserved")
	}
	if r.Results[0].Score != 12.5 || r.Results[1].Score != 0 {
		t.Errorf("unexpected scores %v/%v", r.Results[0].Score, r.Results[1].Score)
	}
	if len(r.Facets) != 1 || r.Facets[0].FieldName != "category" {
		t.Errorf("facets should pass through, got %+v", r.Facets)
	}
	want := models.Pagination{Limit: 10, Offset: 10, Total: 2, CurrentPage: 2, TotalPages: 1}
	if r.Pagination != want {
		t.Errorf("pagination = %+v, want %+v", r.Pagination, want)
	}
	if r.Error != "" {
		t.Errorf("unexpected error %q", r.Error)
	}
}

func TestResultAggregator_EmptyPath(t *testing.T) {
	tests := []struct {
		name string
		raw  *models.EngineResponse
		err  string
	}{
		{"error", models.DegradedResponse("engine down"), "engine down"},
		{"missing hits", &models.EngineResponse{Found: 5, Page: 3}, ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResultAggregator().Aggregate(tt.raw, 50, 100)
			want := models.Pagination{Limit: 10, Offset: 0, Total: 0, CurrentPage: 1, TotalPages: 0}
			if r.Pagination != want {
				t.Errorf("empty path must reset pagination, got %+v", r.Pagination)
			}
			if r.Count != 0 || len(r.Results) != 0 || len(r.Facets) != 0 {
				t.Errorf("expected empty result, got %+v", r)
			}
			if r.Error != tt.err {
				t.Errorf("error = %q, want %q", r.Error, tt.err)
			}
		})
	}
}

func TestResultAggregator_NilFacetsBecomeEmpty(t *testing.T) {
	r := NewResultAggregator().Aggregate(&models.EngineResponse{Hits: []models.Hit{}, Page: 1}, 10, 0)
	if r.Facets == nil {
		t.Error("facets should be an empty slice, not nil")
	}
}

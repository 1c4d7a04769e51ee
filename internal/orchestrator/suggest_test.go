package orchestrator

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/shubhsaxena/product-search/internal/models"
)

func newSuggester(engine Engine) *SuggestionExtractor {
	return NewSuggestionExtractor(NewFilterCompiler(), NewSearchExecutor(engine, zap.NewNop()))
}

func TestSuggest_ShortInputSkipsEngine(t *testing.T) {
	engine := &mockEngine{resp: &models.EngineResponse{Hits: []models.Hit{}}}
	s := newSuggester(engine)

	for _, partial := range []string{"", "a", "é"} {
		got := s.Suggest(context.Background(), partial, 5)
		if got == nil || len(got) != 0 {
			t.Errorf("%q: expected empty slice, got %v", partial, got)
		}
	}
	if engine.calls() != 0 {
		t.Errorf("expected no engine calls, got %d", engine.calls())
	}
}

func TestSuggest_NameAndCategory(t *testing.T) {
	engine := &mockEngine{resp: &models.EngineResponse{
		Found: 3,
		Page:  1,
		Hits: []models.Hit{
			hit("1", "Smartphone X12", "Electronics", nil),
			hit("2", "Smart Watch", "", nil),
			hit("3", "Phone Case", "Accessories", nil),
			{Document: nil},
		},
	}}
	s := newSuggester(engine)

	got := s.Suggest(context.Background(), "SMART", 10)
	want := []string{
		"Smartphone X12",
		"Smartphone X12 in Electronics",
		"Smart Watch",
		"Phone Case in Accessories",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Suggest = %v, want %v", got, want)
	}

	req := engine.lastRequest()
	if !req.Prefix || req.PerPage != 10 || req.Q != "SMART" {
		t.Errorf("unexpected suggest request %+v", req)
	}
}

func TestSuggest_DedupAndTruncate(t *testing.T) {
	engine := &mockEngine{resp: &models.EngineResponse{
		Page: 1,
		Hits: []models.Hit{
			hit("1", "Laptop", "Computers", nil),
			hit("2", "Laptop", "Computers", nil),
			hit("3", "Laptop Stand", "Accessories", nil),
		},
	}}

	got := newSuggester(engine).Suggest(context.Background(), "lap", 3)
	want := []string{"Laptop", "Laptop in Computers", "Laptop Stand"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Suggest = %v, want %v", got, want)
	}
}

func TestSuggest_FailureIsEmpty(t *testing.T) {
	for _, engine := range []*mockEngine{
		{err: errors.New("timeout")},
		{resp: &models.EngineResponse{Error: "bad"}},
		{panic: "boom"},
	} {
		got := newSuggester(engine).Suggest(context.Background(), "phone", 5)
		if got == nil || len(got) != 0 {
			t.Errorf("expected empty suggestions on failure, got %v", got)
		}
	}
}

func TestSuggest_DefaultLimit(t *testing.T) {
	engine := &mockEngine{resp: &models.EngineResponse{Hits: []models.Hit{}}}
	newSuggester(engine).Suggest(context.Background(), "ph", 0)
	if engine.lastRequest().PerPage != DefaultSuggestionLimit {
		t.Errorf("expected per_page %d, got %d", DefaultSuggestionLimit, engine.lastRequest().PerPage)
	}
}

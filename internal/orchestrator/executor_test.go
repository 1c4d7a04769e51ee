package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/shubhsaxena/product-search/internal/models"
)

func TestSearchExecutor_Success(t *testing.T) {
	engine := &mockEngine{resp: &models.EngineResponse{Found: 1, Hits: []models.Hit{hit("1", "Lamp", "Home", nil)}, Page: 0}}
	ex := NewSearchExecutor(engine, zap.NewNop())

	resp := ex.Execute(context.Background(), NewFilterCompiler().Compile(&models.SearchOptions{Query: "lamp"}))
	if resp.Found != 1 || len(resp.Hits) != 1 {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Page != 1 {
		t.Errorf("page should default to 1, got %d", resp.Page)
	}
	if engine.lastRequest().Q != "lamp" {
		t.Errorf("unexpected request %+v", engine.lastRequest())
	}
}

func TestSearchExecutor_Failures(t *testing.T) {
	tests := []struct {
		name    string
		engine  *mockEngine
		wantErr string
	}{
		{"transport error", &mockEngine{err: errors.New("connection refused")}, "connection refused"},
		{"engine error field", &mockEngine{resp: &models.EngineResponse{Error: "bad filter"}}, "bad filter"},
		{"nil response", &mockEngine{}, "search engine returned no hits array"},
		{"panic", &mockEngine{panic: "boom"}, "search engine panic: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := NewSearchExecutor(tt.engine, zap.NewNop())
			resp := ex.Execute(context.Background(), NewFilterCompiler().Compile(nil))

			if resp.Found != 0 || resp.Page != 1 {
				t.Errorf("expected degraded response, got %+v", resp)
			}
			if resp.Hits == nil || len(resp.Hits) != 0 {
				t.Error("expected empty non-nil hits")
			}
			if resp.Error != tt.wantErr {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantErr)
			}
		})
	}
}

func TestSearchExecutor_NilEngine(t *testing.T) {
	resp := NewSearchExecutor(nil, zap.NewNop()).Execute(context.Background(), NewFilterCompiler().Compile(nil))
	if resp.Error == "" {
		t.Error("expected degraded response without an engine")
	}
}

func TestSearchExecutor_LogsSchemaDriftDistinctly(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	drift := &mockEngine{err: fmt.Errorf("%w: No mapping found for [colour]", models.ErrSchemaDrift)}
	NewSearchExecutor(drift, logger).Execute(context.Background(), NewFilterCompiler().Compile(nil))

	generic := &mockEngine{err: fmt.Errorf("%w: connection reset", models.ErrEngineUnavailable)}
	NewSearchExecutor(generic, logger).Execute(context.Background(), NewFilterCompiler().Compile(nil))

	if n := logs.FilterMessage("engine schema drift").Len(); n != 1 {
		t.Errorf("expected 1 schema drift log, got %d", n)
	}
	if n := logs.FilterMessage("engine search failed").Len(); n != 1 {
		t.Errorf("expected 1 generic failure log, got %d", n)
	}
}

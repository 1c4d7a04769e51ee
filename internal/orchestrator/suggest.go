package orchestrator

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/shubhsaxena/product-search/internal/models"
)

const (
	DefaultSuggestionLimit = 5
	minSuggestLength       = 2
)

// SuggestionExtractor derives autocomplete strings from a prefix search.
type SuggestionExtractor struct {
	compiler *FilterCompiler
	executor *SearchExecutor
}

func NewSuggestionExtractor(compiler *FilterCompiler, executor *SearchExecutor) *SuggestionExtractor {
	return &SuggestionExtractor{compiler: compiler, executor: executor}
}

// Suggest returns at most limit distinct suggestions in first-seen order.
// Inputs shorter than two characters return immediately without a search.
// Failures yield an empty slice.
func (s *SuggestionExtractor) Suggest(ctx context.Context, partial string, limit int) []string {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	if utf8.RuneCountInString(partial) < minSuggestLength {
		return []string{}
	}

	raw := s.executor.Execute(ctx, s.compiler.CompileSuggest(partial, limit))
	if raw.Error != "" || raw.Hits == nil {
		return []string{}
	}
	return extractSuggestions(raw.Hits, partial, limit)
}

func extractSuggestions(hits []models.Hit, partial string, limit int) []string {
	needle := strings.ToLower(partial)
	seen := make(map[string]bool)
	out := make([]string, 0, limit)

	add := func(term string) {
		if !seen[term] {
			seen[term] = true
			out = append(out, term)
		}
	}

	for _, h := range hits {
		doc := h.Document
		if doc == nil {
			continue
		}
		if doc.Name != "" && strings.Contains(strings.ToLower(doc.Name), needle) {
			add(doc.Name)
		}
		if doc.Name != "" && doc.Category != "" {
			add(doc.Name + " in " + doc.Category)
		}
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

package orchestrator

import (
	"github.com/shubhsaxena/product-search/internal/models"
)

// ResultAggregator shapes a raw engine response into a SearchResult.
type ResultAggregator struct{}

func NewResultAggregator() *ResultAggregator {
	return &ResultAggregator{}
}

// Aggregate returns the canonical empty result when raw carries an error or
// no hits. Otherwise hits keep engine order and gain a score (0 when absent).
func (a *ResultAggregator) Aggregate(raw *models.EngineResponse, limit, offset int) *models.SearchResult {
	if raw == nil || raw.Error != "" || raw.Hits == nil {
		msg := ""
		if raw != nil {
			msg = raw.Error
		}
		return models.EmptySearchResult(msg)
	}

	limit, offset = normalizePaging(limit, offset)

	results := make([]models.ProductResult, 0, len(raw.Hits))
	for _, h := range raw.Hits {
		if h.Document == nil {
			continue
		}
		score := 0.0
		if h.TextMatch != nil {
			score = *h.TextMatch
		}
		results = append(results, models.ProductResult{Document: *h.Document, Score: score})
	}

	facets := raw.FacetCounts
	if facets == nil {
		facets = []models.FacetCount{}
	}

	page := raw.Page
	if page < 1 {
		page = 1
	}

	return &models.SearchResult{
		Count:   raw.Found,
		Results: results,
		Facets:  facets,
		Pagination: models.Pagination{
			Limit:       limit,
			Offset:      offset,
			Total:       raw.Found,
			CurrentPage: page,
			TotalPages:  totalPages(raw.Found, limit),
		},
	}
}

func totalPages(total int64, limit int) int64 {
	if total <= 0 {
		return 0
	}
	l := int64(limit)
	return (total + l - 1) / l
}

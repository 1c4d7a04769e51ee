package orchestrator

import (
	"context"
	"sync"

	"github.com/shubhsaxena/product-search/internal/models"
)

type mockEngine struct {
	mu    sync.Mutex
	resp  *models.EngineResponse
	err   error
	panic any
	reqs  []*models.EngineRequest
}

func (m *mockEngine) Search(ctx context.Context, req *models.EngineRequest) (*models.EngineResponse, error) {
	m.mu.Lock()
	m.reqs = append(m.reqs, req)
	m.mu.Unlock()
	if m.panic != nil {
		panic(m.panic)
	}
	return m.resp, m.err
}

func (m *mockEngine) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reqs)
}

func (m *mockEngine) lastRequest() *models.EngineRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.reqs) == 0 {
		return nil
	}
	return m.reqs[len(m.reqs)-1]
}

func score(v float64) *float64 { return &v }

func hit(id, name, category string, s *float64) models.Hit {
	return models.Hit{
		Document:  &models.Document{ID: id, Name: name, Category: category},
		TextMatch: s,
	}
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ESHealthChecker reports the cluster color next to any error.
type ESHealthChecker interface {
	HealthCheck(ctx context.Context) (string, error)
}

type registeredCheck struct {
	checker  HealthChecker
	optional bool
}

// HealthHandler serves liveness and readiness. Only the engine and required
// components fail readiness; optional backends (cache, history, indexing)
// degrade the report but keep the pod in rotation, since search works
// without them.
type HealthHandler struct {
	checks  map[string]registeredCheck
	esCheck ESHealthChecker
	logger  *zap.Logger
}

func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		checks: make(map[string]registeredCheck),
		logger: logger,
	}
}

func (h *HealthHandler) Register(name string, checker HealthChecker) {
	h.checks[name] = registeredCheck{checker: checker}
}

func (h *HealthHandler) RegisterOptional(name string, checker HealthChecker) {
	h.checks[name] = registeredCheck{checker: checker, optional: true}
}

func (h *HealthHandler) RegisterES(checker ESHealthChecker) {
	h.esCheck = checker
}

type componentHealth struct {
	Status   string `json:"status"`
	Optional bool   `json:"optional,omitempty"`
	Latency  string `json:"latency,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	results := make(map[string]componentHealth)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for name, rc := range h.checks {
		wg.Add(1)
		go func(n string, rc registeredCheck) {
			defer wg.Done()
			start := time.Now()
			err := rc.checker.HealthCheck(ctx)
			ch := componentHealth{
				Status:   "healthy",
				Optional: rc.optional,
				Latency:  time.Since(start).String(),
			}
			if err != nil {
				ch.Status = "unhealthy"
				ch.Error = err.Error()
			}
			mu.Lock()
			results[n] = ch
			mu.Unlock()
		}(name, rc)
	}

	if h.esCheck != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			status, err := h.esCheck.HealthCheck(ctx)
			if status == "" {
				status = "unhealthy"
			}
			ch := componentHealth{
				Status:  status,
				Latency: time.Since(start).String(),
			}
			if err != nil {
				ch.Error = err.Error()
			}
			mu.Lock()
			results["elasticsearch"] = ch
			mu.Unlock()
		}()
	}

	wg.Wait()

	overallStatus := http.StatusOK
	overall := "healthy"
	for name, ch := range results {
		if ch.Status != "unhealthy" && ch.Status != "red" {
			continue
		}
		if ch.Optional {
			if overall == "healthy" {
				overall = "degraded"
			}
			continue
		}
		h.logger.Warn("readiness check failed", zap.String("component", name), zap.String("error", ch.Error))
		overallStatus = http.StatusServiceUnavailable
		overall = "unavailable"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(overallStatus)
	json.NewEncoder(w).Encode(map[string]any{
		"status":     overall,
		"components": results,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

package observability

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/product-search/internal/models"
)

// SlowQueryDetector logs searches that exceed a latency threshold and, when a
// writer is configured, records them for later analysis.
type SlowQueryDetector struct {
	warningThreshold  time.Duration
	criticalThreshold time.Duration
	logger            *zap.Logger
	analyticsWriter   AnalyticsWriter
	writeTimeout      time.Duration
}

type AnalyticsWriter interface {
	WriteQueryPerformance(ctx context.Context, event *models.AnalyticsEvent) error
}

func NewSlowQueryDetector(warning, critical time.Duration, logger *zap.Logger, aw AnalyticsWriter) *SlowQueryDetector {
	return &SlowQueryDetector{
		warningThreshold:  warning,
		criticalThreshold: critical,
		logger:            logger,
		analyticsWriter:   aw,
		writeTimeout:      2 * time.Second,
	}
}

// Intercept is called once per executed search. Queries at or under the
// warning threshold return immediately.
func (sqd *SlowQueryDetector) Intercept(ctx context.Context, query, queryType string, duration time.Duration, totalHits int64, degraded bool) {
	if duration <= sqd.warningThreshold {
		return
	}

	traceID := TraceIDFromContext(ctx)
	severity := sqd.classifySeverity(duration)
	queryHash := HashQuery(query)

	SlowQueryCounter.WithLabelValues(severity, queryType).Inc()

	sqd.logger.Warn("slow query detected",
		zap.String("trace_id", traceID),
		zap.String("query_hash", queryHash),
		zap.String("query_type", queryType),
		zap.Float64("duration_ms", float64(duration.Milliseconds())),
		zap.Int64("total_hits", totalHits),
		zap.Bool("degraded", degraded),
		zap.String("severity", severity),
	)

	if sqd.analyticsWriter == nil {
		return
	}

	event := &models.AnalyticsEvent{
		EventType:  "query_performance",
		QueryHash:  queryHash,
		QueryType:  queryType,
		DurationMs: float64(duration.Milliseconds()),
		TotalHits:  totalHits,
		Degraded:   degraded,
		Timestamp:  time.Now().UTC(),
		TraceID:    traceID,
	}
	go func() {
		writeCtx, cancel := context.WithTimeout(context.Background(), sqd.writeTimeout)
		defer cancel()
		if err := sqd.analyticsWriter.WriteQueryPerformance(writeCtx, event); err != nil {
			sqd.logger.Error("failed to write query analytics",
				zap.String("trace_id", traceID),
				zap.Error(err),
			)
		}
	}()
}

func (sqd *SlowQueryDetector) classifySeverity(d time.Duration) string {
	if d > sqd.criticalThreshold {
		return "critical"
	}
	if d > sqd.warningThreshold {
		return "warning"
	}
	return "normal"
}

// HashQuery returns a stable 16 hex char digest of q, used where raw query
// text should not be logged or used as a key.
func HashQuery(q string) string {
	h := fnv.New64a()
	h.Write([]byte(q))
	return fmt.Sprintf("%016x", h.Sum64())
}

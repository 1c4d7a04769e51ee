package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/product-search/internal/models"
	"github.com/shubhsaxena/product-search/internal/observability"
)

// Engine is the document search engine. Implementations must be safe for
// concurrent use.
type Engine interface {
	Search(ctx context.Context, req *models.EngineRequest) (*models.EngineResponse, error)
}

// SearchExecutor runs compiled queries and converts every failure into a
// degraded response. Execute never returns an error and never panics.
type SearchExecutor struct {
	engine Engine
	logger *zap.Logger
}

func NewSearchExecutor(engine Engine, logger *zap.Logger) *SearchExecutor {
	return &SearchExecutor{engine: engine, logger: logger}
}

func (e *SearchExecutor) Execute(ctx context.Context, q *models.CompiledQuery) (resp *models.EngineResponse) {
	req := q.EngineRequest()

	ctx, span := observability.StartSpan(ctx, "executor.execute",
		attribute.String("filter_by", req.FilterBy),
		attribute.String("sort_by", req.SortBy),
		attribute.Bool("prefix", req.Prefix),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("engine search panicked",
				zap.Any("panic", r),
				zap.String("trace_id", observability.TraceIDFromContext(ctx)),
			)
			observability.DegradedResponses.WithLabelValues("panic").Inc()
			resp = models.DegradedResponse(fmt.Sprintf("search engine panic: %v", r))
		}
	}()

	if e.engine == nil {
		observability.DegradedResponses.WithLabelValues("unavailable").Inc()
		return models.DegradedResponse(models.ErrEngineUnavailable.Error())
	}

	start := time.Now()
	raw, err := e.engine.Search(ctx, req)
	if err != nil {
		span.RecordError(err)
		e.logFailure(ctx, req, err, time.Since(start))
		return models.DegradedResponse(err.Error())
	}

	if raw == nil || raw.Hits == nil {
		if raw != nil && raw.Error != "" {
			observability.DegradedResponses.WithLabelValues("engine_error").Inc()
			return models.DegradedResponse(raw.Error)
		}
		e.logger.Error("engine returned malformed response",
			zap.String("filter_by", req.FilterBy),
			zap.String("trace_id", observability.TraceIDFromContext(ctx)),
		)
		observability.DegradedResponses.WithLabelValues("invalid_response").Inc()
		return models.DegradedResponse("search engine returned no hits array")
	}

	if raw.Page < 1 {
		raw.Page = 1
	}
	return raw
}

func (e *SearchExecutor) logFailure(ctx context.Context, req *models.EngineRequest, err error, took time.Duration) {
	fields := []zap.Field{
		zap.String("q_hash", observability.HashQuery(req.Q)),
		zap.String("filter_by", req.FilterBy),
		zap.String("sort_by", req.SortBy),
		zap.Duration("took", took),
		zap.String("trace_id", observability.TraceIDFromContext(ctx)),
		zap.Error(err),
	}

	switch {
	case errors.Is(err, models.ErrSchemaDrift):
		observability.DegradedResponses.WithLabelValues("schema_drift").Inc()
		e.logger.Error("engine schema drift", fields...)
	case errors.Is(err, models.ErrMalformedQuery):
		observability.DegradedResponses.WithLabelValues("malformed").Inc()
		e.logger.Error("engine rejected query", fields...)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		observability.DegradedResponses.WithLabelValues("timeout").Inc()
		e.logger.Warn("engine search timed out", fields...)
	default:
		observability.DegradedResponses.WithLabelValues("unavailable").Inc()
		e.logger.Error("engine search failed", fields...)
	}
}

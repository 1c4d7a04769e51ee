// Package app builds the search service and its optional backends from
// configuration. The server and the CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/shubhsaxena/product-search/internal/ai"
	"github.com/shubhsaxena/product-search/internal/cache"
	"github.com/shubhsaxena/product-search/internal/clickhouse"
	"github.com/shubhsaxena/product-search/internal/config"
	"github.com/shubhsaxena/product-search/internal/elasticsearch"
	"github.com/shubhsaxena/product-search/internal/history"
	"github.com/shubhsaxena/product-search/internal/indexing"
	"github.com/shubhsaxena/product-search/internal/observability"
	"github.com/shubhsaxena/product-search/internal/orchestrator"
)

// App holds the service and every backend client that was reachable at
// startup. Nil fields are backends that are disabled or unavailable.
type App struct {
	Service    *orchestrator.Service
	ES         *elasticsearch.Client
	Cache      *cache.RedisCache
	ClickHouse *clickhouse.Client
	Indexer    *indexing.StreamProcessor

	closers []func() error
	logger  *zap.Logger
}

// New connects to Elasticsearch, which is required, and to every configured
// optional backend. Optional backends that fail to connect are logged and
// skipped.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	esClient, err := elasticsearch.NewClient(cfg.Elasticsearch, cfg.Search, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing elasticsearch: %w", err)
	}
	a.ES = esClient
	a.closers = append(a.closers, esClient.Close)

	if err := esClient.EnsureIndex(ctx); err != nil {
		logger.Warn("ensuring product index failed, searches may report schema drift", zap.Error(err))
	}

	var opts []orchestrator.Option

	if len(cfg.Redis.Addresses) > 0 {
		rc, err := cache.NewRedisCache(cfg.Redis, logger)
		if err != nil {
			logger.Warn("redis initialization failed, result caching disabled", zap.Error(err))
		} else {
			a.Cache = rc
			a.closers = append(a.closers, rc.Close)
			opts = append(opts, orchestrator.WithCache(rc))
		}
	}

	var analytics observability.AnalyticsWriter
	if len(cfg.ClickHouse.Addresses) > 0 {
		ch, err := clickhouse.NewClient(cfg.ClickHouse, logger)
		if err != nil {
			logger.Warn("clickhouse initialization failed, search history disabled", zap.Error(err))
		} else {
			if err := ch.EnsureTables(ctx); err != nil {
				logger.Warn("clickhouse table creation failed", zap.Error(err))
			}
			a.ClickHouse = ch
			a.closers = append(a.closers, ch.Close)
			analytics = ch
			opts = append(opts, orchestrator.WithHistory(history.NewLogger(ch, logger)))
		}
	}
	if a.ClickHouse == nil && cfg.Search.History.Enabled {
		logger.Warn("no history store configured, searches will not be recorded")
	}

	opts = append(opts, orchestrator.WithSlowQueryDetector(observability.NewSlowQueryDetector(
		cfg.Search.SlowQuery.WarningThreshold,
		cfg.Search.SlowQuery.CriticalThreshold,
		logger,
		analytics,
	)))

	if cfg.AI.Enabled() {
		opts = append(opts, orchestrator.WithAIParser(ai.NewQueryParser(cfg.AI, logger)))
		logger.Info("ai query parser enabled", zap.String("model", cfg.AI.Model))
	}

	a.Service = orchestrator.New(esClient, cfg.Search, logger, opts...)

	var changelog indexing.ChangelogWriter
	if a.ClickHouse != nil {
		changelog = a.ClickHouse
	}
	var invalidator indexing.CacheInvalidator
	if a.Cache != nil {
		invalidator = a.Cache
	}
	a.Indexer = indexing.NewStreamProcessor(esClient, changelog, invalidator, cfg.Elasticsearch, logger)
	a.closers = append(a.closers, a.Indexer.Stop)

	return a, nil
}

// Close releases backends in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

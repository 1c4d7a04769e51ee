package indexing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/product-search/internal/config"
	"github.com/shubhsaxena/product-search/internal/models"
	"github.com/shubhsaxena/product-search/internal/observability"
	"github.com/shubhsaxena/product-search/internal/resilience"
)

// Indexer writes bulk actions to the search engine.
type Indexer interface {
	BulkIndex(ctx context.Context, actions []models.IndexAction) error
}

type ChangelogWriter interface {
	InsertDocumentEvent(ctx context.Context, event *models.ChangeEvent) error
}

type CacheInvalidator interface {
	InvalidateSearchResults(ctx context.Context) error
}

// StreamProcessor buffers product change events and flushes them to the
// engine in bulk, by size or on a timer. The changelog and cache are optional.
type StreamProcessor struct {
	indexer   Indexer
	changelog ChangelogWriter
	cache     CacheInvalidator
	esCfg     config.ElasticsearchConfig
	logger    *zap.Logger
	now       func() time.Time

	mu     sync.Mutex
	buffer []models.IndexAction
	ticker *time.Ticker
	done   chan struct{}
}

func NewStreamProcessor(
	indexer Indexer,
	changelog ChangelogWriter,
	cache CacheInvalidator,
	esCfg config.ElasticsearchConfig,
	logger *zap.Logger,
) *StreamProcessor {
	if esCfg.BulkSize <= 0 {
		esCfg.BulkSize = 500
	}
	if esCfg.BulkFlushInterval <= 0 {
		esCfg.BulkFlushInterval = 5 * time.Second
	}

	sp := &StreamProcessor{
		indexer:   indexer,
		changelog: changelog,
		cache:     cache,
		esCfg:     esCfg,
		logger:    logger,
		now:       time.Now,
		buffer:    make([]models.IndexAction, 0, esCfg.BulkSize),
		ticker:    time.NewTicker(esCfg.BulkFlushInterval),
		done:      make(chan struct{}),
	}

	go sp.flushLoop()

	return sp
}

// HandleEvent buffers one change. Events that cannot be transformed are
// permanent failures; the consumer dead-letters them without retrying.
func (sp *StreamProcessor) HandleEvent(ctx context.Context, event *models.ChangeEvent) error {
	action, err := sp.transformEvent(event)
	if err != nil {
		return resilience.Permanent(fmt.Errorf("transforming event: %w", err))
	}

	sp.mu.Lock()
	sp.buffer = append(sp.buffer, *action)
	shouldFlush := len(sp.buffer) >= sp.esCfg.BulkSize
	sp.mu.Unlock()

	if shouldFlush {
		if err := sp.Flush(ctx); err != nil {
			sp.logger.Error("flush on buffer full failed", zap.Error(err))
		}
	}

	if sp.changelog != nil {
		go func() {
			chCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := sp.changelog.InsertDocumentEvent(chCtx, event); err != nil {
				sp.logger.Warn("clickhouse event insert failed",
					zap.String("doc_id", event.DocumentID),
					zap.Error(err),
				)
			}
		}()
	}

	return nil
}

func (sp *StreamProcessor) transformEvent(event *models.ChangeEvent) (*models.IndexAction, error) {
	if event.DocumentID == "" {
		return nil, fmt.Errorf("event has no document id")
	}

	action := &models.IndexAction{
		ID:        event.DocumentID,
		Index:     sp.esCfg.Index,
		Timestamp: event.Timestamp,
	}

	switch event.Type {
	case "CREATE", "UPDATE":
		raw := make(map[string]any, len(event.Document)+1)
		for k, v := range event.Document {
			raw[k] = v
		}
		raw["id"] = event.DocumentID

		doc, err := NormalizeProduct(raw, 0, sp.now())
		if err != nil {
			return nil, err
		}
		action.Action = "index"
		action.Body = doc
	case "DELETE":
		action.Action = "delete"
	default:
		return nil, fmt.Errorf("unknown event type: %s", event.Type)
	}

	return action, nil
}

// IndexProducts normalizes raw records and writes them in BulkSize batches.
// Records without a sort_index are numbered by position starting at 1.
func (sp *StreamProcessor) IndexProducts(ctx context.Context, raw []map[string]any) (int, error) {
	now := sp.now()
	actions := make([]models.IndexAction, 0, len(raw))
	for i, r := range raw {
		doc, err := NormalizeProduct(r, i+1, now)
		if err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
		actions = append(actions, models.IndexAction{
			Action:    "index",
			Index:     sp.esCfg.Index,
			ID:        doc.ID,
			Body:      doc,
			Timestamp: now,
		})
	}

	indexed := 0
	for start := 0; start < len(actions); start += sp.esCfg.BulkSize {
		end := min(start+sp.esCfg.BulkSize, len(actions))
		if err := sp.indexer.BulkIndex(ctx, actions[start:end]); err != nil {
			observability.IndexingEventsTotal.WithLabelValues("bulk", "error").Inc()
			return indexed, fmt.Errorf("bulk index batch at %d: %w", start, err)
		}
		indexed = end
		observability.IndexingEventsTotal.WithLabelValues("bulk", "success").Add(float64(end - start))
	}

	sp.invalidateCache(ctx)
	return indexed, nil
}

func (sp *StreamProcessor) flushLoop() {
	for {
		select {
		case <-sp.ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := sp.Flush(ctx); err != nil {
				sp.logger.Error("periodic flush failed", zap.Error(err))
			}
			cancel()
		case <-sp.done:
			return
		}
	}
}

// Flush writes the buffered actions. On failure they are put back at the
// front of the buffer for the next flush.
func (sp *StreamProcessor) Flush(ctx context.Context) error {
	sp.mu.Lock()
	if len(sp.buffer) == 0 {
		sp.mu.Unlock()
		return nil
	}
	batch := make([]models.IndexAction, len(sp.buffer))
	copy(batch, sp.buffer)
	sp.buffer = sp.buffer[:0]
	sp.mu.Unlock()

	start := time.Now()
	if err := sp.indexer.BulkIndex(ctx, batch); err != nil {
		sp.mu.Lock()
		sp.buffer = append(batch, sp.buffer...)
		sp.mu.Unlock()

		observability.IndexingEventsTotal.WithLabelValues("bulk", "error").Inc()
		return fmt.Errorf("bulk index flush: %w", err)
	}

	observability.IndexingEventsTotal.WithLabelValues("bulk", "success").Add(float64(len(batch)))
	sp.logger.Info("bulk flush completed",
		zap.Int("count", len(batch)),
		zap.Duration("duration", time.Since(start)),
	)

	sp.invalidateCache(ctx)
	return nil
}

func (sp *StreamProcessor) invalidateCache(ctx context.Context) {
	if sp.cache == nil {
		return
	}
	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := sp.cache.InvalidateSearchResults(cacheCtx); err != nil {
		sp.logger.Warn("cache invalidation failed", zap.Error(err))
	}
}

func (sp *StreamProcessor) Pending() int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return len(sp.buffer)
}

func (sp *StreamProcessor) Stop() error {
	sp.ticker.Stop()
	close(sp.done)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return sp.Flush(ctx)
}

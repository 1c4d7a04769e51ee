package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/product-search/internal/config"
	"github.com/shubhsaxena/product-search/internal/models"
	"github.com/shubhsaxena/product-search/internal/observability"
)

// Client is the analytics sink: search history, query performance and the
// product changelog.
type Client struct {
	conn   driver.Conn
	logger *zap.Logger
}

func NewClient(cfg config.ClickHouseConfig, logger *zap.Logger) (*Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("no clickhouse addresses configured")
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addresses,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": int(cfg.QueryTimeout.Seconds()),
		},
		DialTimeout:  cfg.DialTimeout,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("opening clickhouse connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging clickhouse: %w", err)
	}

	logger.Info("clickhouse client connected", zap.Strings("addresses", cfg.Addresses))

	return &Client{
		conn:   conn,
		logger: logger,
	}, nil
}

func (c *Client) InsertSearchHistory(ctx context.Context, rec *models.SearchHistoryRecord) error {
	ctx, span := observability.StartSpan(ctx, "ch.insert_search_history")
	defer span.End()

	start := time.Now()
	err := c.conn.Exec(ctx, `
		INSERT INTO search_history (query, user_id, results, timestamp)
		VALUES (?, ?, ?, ?)
	`, rec.Query, rec.UserID, rec.Results, rec.Timestamp)
	observeQuery("history_insert", start, err)
	if err != nil {
		return fmt.Errorf("inserting search history: %w", err)
	}
	return nil
}

// RecentSearches returns the newest history rows, newest first. An empty
// userID returns rows for every user.
func (c *Client) RecentSearches(ctx context.Context, userID string, limit int) ([]models.SearchHistoryRecord, error) {
	ctx, span := observability.StartSpan(ctx, "ch.recent_searches",
		attribute.String("user_id", userID),
		attribute.Int("limit", limit),
	)
	defer span.End()

	start := time.Now()

	query := `
		SELECT query, user_id, results, timestamp
		FROM search_history
		WHERE (? = '' OR user_id = ?)
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := c.conn.Query(ctx, query, userID, userID, limit)
	if err != nil {
		observeQuery("history_recent", start, err)
		return nil, fmt.Errorf("ch recent searches: %w", err)
	}
	defer rows.Close()

	records := make([]models.SearchHistoryRecord, 0, limit)
	for rows.Next() {
		var r models.SearchHistoryRecord
		if err := rows.Scan(&r.Query, &r.UserID, &r.Results, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history rows: %w", err)
	}

	observeQuery("history_recent", start, nil)
	return records, nil
}

func (c *Client) WriteQueryPerformance(ctx context.Context, event *models.AnalyticsEvent) error {
	query := `
		INSERT INTO query_performance (
			event_type, query_hash, query_type, duration_ms,
			total_hits, degraded, timestamp, trace_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	start := time.Now()
	err := c.conn.Exec(ctx, query,
		event.EventType,
		event.QueryHash,
		event.QueryType,
		event.DurationMs,
		event.TotalHits,
		event.Degraded,
		event.Timestamp,
		event.TraceID,
	)
	observeQuery("performance_insert", start, err)
	return err
}

func (c *Client) InsertDocumentEvent(ctx context.Context, event *models.ChangeEvent) error {
	query := `
		INSERT INTO product_changelog (
			document_id, collection, operation, timestamp, version
		) VALUES (?, ?, ?, ?, ?)
	`
	start := time.Now()
	err := c.conn.Exec(ctx, query,
		event.DocumentID,
		event.Collection,
		event.Type,
		event.Timestamp,
		event.Version,
	)
	observeQuery("changelog_insert", start, err)
	return err
}

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) EnsureTables(ctx context.Context) error {
	for _, ddl := range tableDDL {
		if err := c.conn.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
	}

	c.logger.Info("clickhouse tables ensured")
	return nil
}

var tableDDL = []string{
	`CREATE TABLE IF NOT EXISTS search_history (
		query String,
		user_id Nullable(String),
		results Nullable(String),
		timestamp DateTime64(3)
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (timestamp)`,

	`CREATE TABLE IF NOT EXISTS query_performance (
		event_type String,
		query_hash String,
		query_type String,
		duration_ms Float64,
		total_hits Int64,
		degraded Bool,
		timestamp DateTime,
		trace_id String
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (timestamp, query_hash)`,

	`CREATE TABLE IF NOT EXISTS product_changelog (
		document_id String,
		collection String,
		operation String,
		timestamp DateTime,
		version Int64
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (timestamp, document_id)`,
}

func observeQuery(queryType string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.CHQueryDuration.WithLabelValues(queryType, status).Observe(time.Since(start).Seconds())
}

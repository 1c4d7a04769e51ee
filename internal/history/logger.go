package history

import (
	"context"
	"encoding/json"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/product-search/internal/models"
	"github.com/shubhsaxena/product-search/internal/observability"
)

// Writer persists history records. The ClickHouse client implements it.
type Writer interface {
	InsertSearchHistory(ctx context.Context, rec *models.SearchHistoryRecord) error
}

// counter is implemented by result types that can report a hit count for the
// fallback summary.
type counter interface {
	ResultCount() int64
}

// Logger turns search calls into history records. It never returns errors:
// failures are logged and counted.
type Logger struct {
	writer Writer
	logger *zap.Logger
	now    func() time.Time
}

func NewLogger(writer Writer, logger *zap.Logger) *Logger {
	return &Logger{
		writer: writer,
		logger: logger,
		now:    time.Now,
	}
}

func (l *Logger) Log(ctx context.Context, query, userID string, results any) {
	ts := l.now().UTC()
	rec := &models.SearchHistoryRecord{
		Query:     query,
		Results:   l.serialize(query, results, ts),
		Timestamp: ts,
	}
	if userID != "" {
		rec.UserID = &userID
	}

	if l.writer == nil {
		observability.HistoryWritesTotal.WithLabelValues("skipped").Inc()
		return
	}

	if err := l.writer.InsertSearchHistory(ctx, rec); err != nil {
		observability.HistoryWritesTotal.WithLabelValues("error").Inc()
		l.logger.Warn("search history write failed",
			zap.String("query", query),
			zap.Error(err),
		)
		return
	}
	observability.HistoryWritesTotal.WithLabelValues("ok").Inc()
}

type summary struct {
	Count     int64  `json:"count"`
	Query     string `json:"query"`
	Timestamp string `json:"timestamp"`
}

// serialize encodes results as JSON. When results cannot be encoded a small
// summary is stored instead; nil results stay nil.
func (l *Logger) serialize(query string, results any, ts time.Time) *string {
	if isNil(results) {
		return nil
	}

	data, err := json.Marshal(results)
	if err == nil {
		s := string(data)
		return &s
	}

	l.logger.Debug("search results not serializable, storing summary",
		zap.String("query", query),
		zap.Error(err),
	)

	data, err = json.Marshal(summary{
		Count:     countOf(results),
		Query:     query,
		Timestamp: ts.Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}

func countOf(results any) int64 {
	switch v := results.(type) {
	case counter:
		return v.ResultCount()
	case map[string]any:
		switch n := v["count"].(type) {
		case int:
			return int64(n)
		case int64:
			return n
		case float64:
			return int64(n)
		}
	}
	return 0
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

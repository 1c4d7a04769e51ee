package models

import "time"

type AnalyticsEvent struct {
	EventType  string    `json:"event_type"`
	QueryHash  string    `json:"query_hash"`
	QueryType  string    `json:"query_type"`
	DurationMs float64   `json:"duration_ms"`
	TotalHits  int64     `json:"total_hits"`
	Degraded   bool      `json:"degraded"`
	Timestamp  time.Time `json:"timestamp"`
	TraceID    string    `json:"trace_id"`
}

// SearchHistoryRecord is one row of the search audit log. UserID and Results
// are nil when not supplied.
type SearchHistoryRecord struct {
	Query     string    `json:"query"`
	UserID    *string   `json:"user_id,omitempty"`
	Results   *string   `json:"results,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

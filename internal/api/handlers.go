package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/shubhsaxena/product-search/internal/models"
)

const (
	maxRequestBodySize = 1 << 20 // 1 MB
	maxSuggestPrefix   = 100
	maxHistoryLimit    = 200
)

// SearchService is the product search surface the handlers expose.
type SearchService interface {
	Search(ctx context.Context, req *models.SearchRequest) *models.SearchResult
	Suggest(ctx context.Context, partial string, limit int) []string
	ParseQuery(ctx context.Context, text string, mode models.ParserMode) (*models.SearchOptions, string)
	LogSearchAsync(query, userID string, results any)
}

type HistoryReader interface {
	RecentSearches(ctx context.Context, userID string, limit int) ([]models.SearchHistoryRecord, error)
}

type Handler struct {
	service SearchService
	history HistoryReader
	logger  *zap.Logger
}

// NewHandler builds the API handlers. history may be nil, in which case the
// history endpoint is not routed.
func NewHandler(service SearchService, history HistoryReader, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		history: history,
		logger:  logger,
	}
}

// Search always answers 200 with a SearchResult. Bad input and engine
// failures are reported in the result's error field.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := RequestIDFromContext(ctx)

	req, err := h.parseSearchRequest(r)
	if err != nil {
		h.logger.Info("invalid search request",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		h.writeJSON(w, http.StatusOK, models.EmptySearchResult(fmt.Sprintf("invalid request: %v", err)))
		return
	}
	req.RequestID = requestID

	result := h.service.Search(ctx, req)

	logged := req.Text
	if logged == "" {
		logged = req.Options.Query
	}
	h.service.LogSearchAsync(logged, req.UserID, result)

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("q")
	if len(prefix) > maxSuggestPrefix {
		prefix = prefix[:maxSuggestPrefix]
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	suggestions := h.service.Suggest(r.Context(), prefix, limit)
	if suggestions == nil {
		suggestions = []string{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"suggestions": suggestions,
	})
}

func (h *Handler) Parse(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("q")
	if strings.TrimSpace(text) == "" {
		h.writeError(w, http.StatusBadRequest, "missing_query", "Query parameter 'q' is required")
		return
	}

	mode, err := parserMode(r.URL.Query().Get("parser"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_parser", err.Error())
		return
	}

	opts, source := h.service.ParseQuery(r.Context(), text, mode)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"options": opts,
		"source":  source,
	})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = min(l, maxHistoryLimit)
	}

	records, err := h.history.RecentSearches(r.Context(), userIDFrom(r), limit)
	if err != nil {
		h.logger.Error("reading search history", zap.Error(err))
		h.writeError(w, http.StatusServiceUnavailable, "history_unavailable", "Search history temporarily unavailable")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"history": records,
	})
}

// searchBody is the POST form of a search. Structured option fields sit at
// the top level next to the free text.
type searchBody struct {
	models.SearchOptions
	Text       string            `json:"text"`
	Q          string            `json:"q"`
	Parser     models.ParserMode `json:"parser"`
	UserID     string            `json:"user_id"`
	ForceFresh bool              `json:"force_fresh"`
}

func (h *Handler) parseSearchRequest(r *http.Request) (*models.SearchRequest, error) {
	if r.Method == http.MethodPost {
		return parseSearchBody(r)
	}
	return parseSearchQuery(r)
}

func parseSearchBody(r *http.Request) (*models.SearchRequest, error) {
	var body searchBody
	limited := io.LimitReader(r.Body, maxRequestBodySize)
	if err := json.NewDecoder(limited).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding body: %w", err)
	}
	if _, err := parserMode(string(body.Parser)); err != nil {
		return nil, err
	}

	req := &models.SearchRequest{
		Text:       firstNonEmpty(body.Text, body.Q, body.Query),
		Options:    body.SearchOptions,
		Parser:     body.Parser,
		UserID:     body.UserID,
		ForceFresh: body.ForceFresh,
	}
	// The free text is parsed; the parsed query term replaces it.
	req.Options.Query = ""
	if req.UserID == "" {
		req.UserID = r.Header.Get("X-User-ID")
	}
	return req, nil
}

func parseSearchQuery(r *http.Request) (*models.SearchRequest, error) {
	q := r.URL.Query()

	mode, err := parserMode(q.Get("parser"))
	if err != nil {
		return nil, err
	}

	req := &models.SearchRequest{
		Text:   firstNonEmpty(q.Get("q"), q.Get("query")),
		Parser: mode,
		UserID: userIDFrom(r),
	}
	opts := &req.Options

	switch cats := nonEmpty(q["category"]); len(cats) {
	case 0:
	case 1:
		opts.Category = models.SingleCategory(cats[0])
	default:
		opts.Category = models.AnyCategory(cats...)
	}

	opts.MinPrice = floatParam(q.Get("min_price"))
	opts.MaxPrice = floatParam(q.Get("max_price"))

	if v := q.Get("in_stock"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			opts.InStock = &b
		}
	}

	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		opts.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v >= 0 {
		opts.Offset = v
	}

	opts.SortBy = q.Get("sort_by")
	opts.SortOrder = q.Get("sort_order")

	if ff, err := strconv.ParseBool(q.Get("force_fresh")); err == nil {
		req.ForceFresh = ff
	}

	return req, nil
}

func parserMode(s string) (models.ParserMode, error) {
	switch m := models.ParserMode(strings.ToLower(s)); m {
	case models.ParserAuto, models.ParserRules, models.ParserAI, models.ParserNone:
		return m, nil
	case "auto":
		return models.ParserAuto, nil
	}
	return "", fmt.Errorf("unknown parser %q", s)
}

func userIDFrom(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return r.URL.Query().Get("user_id")
}

func floatParam(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func nonEmpty(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("writing json response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

package orchestrator

import (
	"context"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/product-search/internal/config"
	"github.com/shubhsaxena/product-search/internal/models"
	"github.com/shubhsaxena/product-search/internal/observability"
)

// AIQueryParser is an optional model-backed alternative to the rule parser.
type AIQueryParser interface {
	ParseQuery(ctx context.Context, text string) (*models.SearchOptions, error)
}

// HistoryLogger records searches. Log must swallow and log its own errors.
type HistoryLogger interface {
	Log(ctx context.Context, query, userID string, results any)
}

type ResultCache interface {
	GetSearchResult(ctx context.Context, req *models.EngineRequest, offset int) (*models.SearchResult, error)
	SetSearchResult(ctx context.Context, req *models.EngineRequest, offset int, result *models.SearchResult) error
	GetSuggestions(ctx context.Context, partial string, limit int) ([]string, error)
	SetSuggestions(ctx context.Context, partial string, limit int, suggestions []string) error
}

type Option func(*Service)

func WithAIParser(p AIQueryParser) Option {
	return func(s *Service) { s.ai = p }
}

func WithHistory(h HistoryLogger) Option {
	return func(s *Service) { s.history = h }
}

func WithCache(c ResultCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithSlowQueryDetector(d *observability.SlowQueryDetector) Option {
	return func(s *Service) { s.slowQuery = d }
}

// Service wires parsing, compilation, execution and aggregation into the
// product search operations. It keeps no per-request state.
type Service struct {
	parser     *QueryParser
	compiler   *FilterCompiler
	executor   *SearchExecutor
	aggregator *ResultAggregator
	suggester  *SuggestionExtractor

	ai        AIQueryParser
	history   HistoryLogger
	cache     ResultCache
	slowQuery *observability.SlowQueryDetector

	cfg    config.SearchConfig
	logger *zap.Logger
}

func New(engine Engine, cfg config.SearchConfig, logger *zap.Logger, opts ...Option) *Service {
	compiler := NewFilterCompiler()
	executor := NewSearchExecutor(engine, logger)
	s := &Service{
		parser:     NewQueryParser(),
		compiler:   compiler,
		executor:   executor,
		aggregator: NewResultAggregator(),
		suggester:  NewSuggestionExtractor(compiler, executor),
		cfg:        cfg,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SearchProducts runs structured options against the engine. It always
// returns a result; engine failures surface as an empty result with Error set.
func (s *Service) SearchProducts(ctx context.Context, opts models.SearchOptions) *models.SearchResult {
	return s.searchProducts(ctx, opts, false)
}

// Search fills unset options from the free text (when any), applies the
// configured limits and runs the search.
func (s *Service) Search(ctx context.Context, req *models.SearchRequest) *models.SearchResult {
	opts := req.Options
	if req.Text != "" {
		parsed, _ := s.ParseQuery(ctx, req.Text, req.Parser)
		opts.FillFrom(parsed)
	}

	if opts.Limit <= 0 {
		opts.Limit = s.cfg.DefaultLimit
	}
	if s.cfg.MaxLimit > 0 && opts.Limit > s.cfg.MaxLimit {
		opts.Limit = s.cfg.MaxLimit
	}

	return s.searchProducts(ctx, opts, req.ForceFresh)
}

func (s *Service) searchProducts(ctx context.Context, opts models.SearchOptions, fresh bool) *models.SearchResult {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "service.search_products",
		attribute.String("query_hash", observability.HashQuery(opts.Query)),
	)
	defer span.End()

	compiled := s.compiler.Compile(&opts)
	if compiled.SuppressedSort != "" {
		s.logger.Debug("requested sort field is not sortable, omitting sort",
			zap.String("sort_by", compiled.SuppressedSort),
		)
	}

	req := compiled.EngineRequest()
	limit, offset := normalizePaging(opts.Limit, opts.Offset)

	if s.cache != nil && !fresh {
		cached, err := s.cache.GetSearchResult(ctx, req, offset)
		if err != nil {
			s.logger.Warn("cache lookup error", zap.Error(err))
		}
		if cached != nil {
			s.observe("search", "cache_hit", start)
			return cached
		}
	}

	raw := s.executor.Execute(ctx, compiled)
	result := s.aggregator.Aggregate(raw, limit, offset)

	degraded := result.Error != ""
	if !degraded && s.cache != nil {
		if err := s.cache.SetSearchResult(ctx, req, offset, result); err != nil {
			s.logger.Warn("cache set error", zap.Error(err))
		}
	}

	status := "success"
	if degraded {
		status = "degraded"
		span.SetAttributes(attribute.Bool("degraded", true))
	}
	s.observe("search", status, start)

	if s.slowQuery != nil {
		s.slowQuery.Intercept(ctx, opts.Query, "search", time.Since(start), result.Count, degraded)
	}
	return result
}

// ParseQuery turns free text into options and reports which parser produced
// them. The AI parser is tried first in auto and ai modes; the rule parser is
// always the fallback.
func (s *Service) ParseQuery(ctx context.Context, text string, mode models.ParserMode) (*models.SearchOptions, string) {
	switch mode {
	case models.ParserNone:
		observability.ParseSourceTotal.WithLabelValues("none").Inc()
		return &models.SearchOptions{Query: text}, "none"
	case models.ParserRules:
		return s.ruleParse(text), "rules"
	}

	if s.ai != nil {
		parsed, err := s.ai.ParseQuery(ctx, text)
		if err == nil && parsed != nil {
			observability.ParseSourceTotal.WithLabelValues("ai").Inc()
			return parsed, "ai"
		}
		s.logger.Warn("ai query parse failed, falling back to rules",
			zap.String("query_hash", observability.HashQuery(text)),
			zap.Error(err),
		)
	} else if mode == models.ParserAI {
		s.logger.Debug("ai parser not configured, using rules")
	}
	return s.ruleParse(text), "rules"
}

func (s *Service) ruleParse(text string) *models.SearchOptions {
	observability.ParseSourceTotal.WithLabelValues("rules").Inc()
	parsed := s.parser.Parse(text)
	if ce := s.logger.Check(zap.DebugLevel, "parsed query"); ce != nil {
		ce.Write(zap.Strings("rules", s.parser.MatchedRules(text)))
	}
	return parsed
}

// Suggest returns autocomplete strings for partial. It never fails.
func (s *Service) Suggest(ctx context.Context, partial string, limit int) []string {
	start := time.Now()
	if limit <= 0 {
		limit = s.cfg.SuggestionLimit
	}
	if s.cfg.MaxLimit > 0 && limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}

	if s.cache != nil && utf8.RuneCountInString(partial) >= minSuggestLength {
		cached, err := s.cache.GetSuggestions(ctx, partial, limit)
		if err != nil {
			s.logger.Warn("suggestion cache lookup error", zap.Error(err))
		}
		if cached != nil {
			s.observe("suggest", "cache_hit", start)
			return cached
		}
	}

	suggestions := s.suggester.Suggest(ctx, partial, limit)
	observability.SuggestionsReturned.Observe(float64(len(suggestions)))

	if s.cache != nil && len(suggestions) > 0 {
		if err := s.cache.SetSuggestions(ctx, partial, limit, suggestions); err != nil {
			s.logger.Warn("suggestion cache set error", zap.Error(err))
		}
	}
	s.observe("suggest", "success", start)
	return suggestions
}

// LogSearch records a search synchronously. It is a no-op when history is
// disabled and never fails.
func (s *Service) LogSearch(ctx context.Context, query, userID string, results any) {
	if s.history == nil || !s.cfg.History.Enabled {
		return
	}
	s.history.Log(ctx, query, userID, results)
}

// LogSearchAsync records a search in the background, detached from the
// caller's context.
func (s *Service) LogSearchAsync(query, userID string, results any) {
	if s.history == nil || !s.cfg.History.Enabled {
		return
	}
	timeout := s.cfg.History.WriteTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		s.history.Log(ctx, query, userID, results)
	}()
}

func (s *Service) observe(op, status string, start time.Time) {
	observability.SearchRequestsTotal.WithLabelValues(op, status).Inc()
	observability.SearchRequestDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
}

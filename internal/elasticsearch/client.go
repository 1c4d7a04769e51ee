package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/product-search/internal/config"
	"github.com/shubhsaxena/product-search/internal/models"
	"github.com/shubhsaxena/product-search/internal/observability"
	"github.com/shubhsaxena/product-search/internal/resilience"
)

// Client is the product search engine backed by one Elasticsearch index.
type Client struct {
	es       *elasticsearch.Client
	cb       *gobreaker.CircuitBreaker
	cfg      config.ElasticsearchConfig
	retryCfg resilience.RetryConfig
	logger   *zap.Logger
}

func NewClient(cfg config.ElasticsearchConfig, searchCfg config.SearchConfig, logger *zap.Logger) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:  cfg.Addresses,
		Username:   cfg.Username,
		Password:   cfg.Password,
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}

	res, err := es.Ping()
	if err != nil {
		return nil, fmt.Errorf("pinging elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch ping returned status: %s", res.Status())
	}

	logger.Info("elasticsearch client connected",
		zap.Strings("addresses", cfg.Addresses),
		zap.String("index", cfg.Index),
	)

	return &Client{
		es:       es,
		cb:       resilience.NewCircuitBreaker("elasticsearch-"+cfg.Index, searchCfg.CircuitBreaker, logger),
		cfg:      cfg,
		retryCfg: resilience.RetryConfigFrom(searchCfg.Retry),
		logger:   logger,
	}, nil
}

// Search runs req against the product index. Errors wrap one of
// models.ErrEngineUnavailable, models.ErrSchemaDrift or models.ErrMalformedQuery.
func (c *Client) Search(ctx context.Context, req *models.EngineRequest) (*models.EngineResponse, error) {
	ctx, span := observability.StartSpan(ctx, "es.search",
		attribute.String("es.index", c.cfg.Index),
		attribute.Int("page", req.Page),
		attribute.Int("per_page", req.PerPage),
	)
	defer span.End()

	start := time.Now()

	cbResult, err := c.cb.Execute(func() (any, error) {
		var resp *models.EngineResponse
		retryErr := resilience.Retry(ctx, c.retryCfg, func() error {
			var execErr error
			resp, execErr = c.executeSearch(ctx, req)
			return execErr
		})
		return resp, retryErr
	})

	duration := time.Since(start)
	if err != nil {
		observability.EngineQueryDuration.WithLabelValues(c.cfg.Index, "error").Observe(duration.Seconds())
		span.RecordError(err)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", models.ErrEngineUnavailable, err)
		}
		return nil, fmt.Errorf("es search (index=%s): %w", c.cfg.Index, err)
	}

	resp, ok := cbResult.(*models.EngineResponse)
	if !ok || resp == nil {
		observability.EngineQueryDuration.WithLabelValues(c.cfg.Index, "error").Observe(duration.Seconds())
		return nil, fmt.Errorf("es search (index=%s): unexpected nil result from circuit breaker", c.cfg.Index)
	}
	observability.EngineQueryDuration.WithLabelValues(c.cfg.Index, "success").Observe(duration.Seconds())

	return resp, nil
}

func (c *Client) executeSearch(ctx context.Context, req *models.EngineRequest) (*models.EngineResponse, error) {
	body, err := json.Marshal(BuildSearchBody(req, c.cfg.FacetSize))
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("marshaling es query: %w", err))
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.cfg.Index),
		c.es.Search.WithBody(bytes.NewReader(body)),
		c.es.Search.WithTimeout(c.cfg.RequestTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: executing es search: %v", models.ErrEngineUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return nil, classifyResponse(res.StatusCode, string(bodyBytes))
	}

	var esResp esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&esResp); err != nil {
		return nil, fmt.Errorf("decoding es response: %w", err)
	}

	if esResp.TimedOut {
		c.logger.Warn("es search timed out, returning partial hits",
			zap.String("index", c.cfg.Index),
			zap.Int64("took_ms", esResp.Took),
		)
	}

	return toEngineResponse(&esResp, req.Page, splitFacets(req.FacetBy)), nil
}

// HealthCheck reports the cluster status color and mirrors it into the
// es_cluster_health_status gauge.
func (c *Client) HealthCheck(ctx context.Context) (string, error) {
	res, err := c.es.Cluster.Health(
		c.es.Cluster.Health.WithContext(ctx),
	)
	if err != nil {
		return "red", fmt.Errorf("es health check: %w", err)
	}
	defer res.Body.Close()

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(res.Body).Decode(&health); err != nil {
		return "red", fmt.Errorf("decoding health response: %w", err)
	}

	for _, color := range []string{"green", "yellow", "red"} {
		v := 0.0
		if color == health.Status {
			v = 1
		}
		observability.ESClusterHealth.WithLabelValues(color).Set(v)
	}
	return health.Status, nil
}

func (c *Client) Index() string {
	return c.cfg.Index
}

func (c *Client) Close() error {
	return nil
}

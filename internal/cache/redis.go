package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shubhsaxena/product-search/internal/config"
	"github.com/shubhsaxena/product-search/internal/models"
	"github.com/shubhsaxena/product-search/internal/observability"
)

const (
	searchKeyPrefix  = "ps:sr:"
	suggestKeyPrefix = "ps:sg:"
)

// RedisCache stores normalized search results and suggestion lists.
type RedisCache struct {
	client redis.UniversalClient
	ttl    config.CacheTTLConfig
	logger *zap.Logger
}

func NewRedisCache(cfg config.RedisConfig, logger *zap.Logger) (*RedisCache, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("no redis addresses configured")
	}

	var client redis.UniversalClient
	if len(cfg.Addresses) > 1 {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.Addresses,
			Password:     cfg.Password,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:         cfg.Addresses[0],
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("redis cache connected", zap.Strings("addresses", cfg.Addresses))

	return newWithClient(client, cfg.TTL, logger), nil
}

func newWithClient(client redis.UniversalClient, ttl config.CacheTTLConfig, logger *zap.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// GetSearchResult returns nil, nil on a miss.
func (rc *RedisCache) GetSearchResult(ctx context.Context, req *models.EngineRequest, offset int) (*models.SearchResult, error) {
	key, err := searchKey(req, offset)
	if err != nil {
		return nil, err
	}

	var result models.SearchResult
	found, err := rc.get(ctx, "search", key, &result)
	if err != nil || !found {
		return nil, err
	}
	return &result, nil
}

func (rc *RedisCache) SetSearchResult(ctx context.Context, req *models.EngineRequest, offset int, result *models.SearchResult) error {
	key, err := searchKey(req, offset)
	if err != nil {
		return err
	}
	return rc.set(ctx, key, result, rc.ttl.SearchResults)
}

// GetSuggestions returns nil, nil on a miss.
func (rc *RedisCache) GetSuggestions(ctx context.Context, partial string, limit int) ([]string, error) {
	var suggestions []string
	found, err := rc.get(ctx, "suggest", suggestKey(partial, limit), &suggestions)
	if err != nil || !found {
		return nil, err
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	return suggestions, nil
}

func (rc *RedisCache) SetSuggestions(ctx context.Context, partial string, limit int, suggestions []string) error {
	return rc.set(ctx, suggestKey(partial, limit), suggestions, rc.ttl.Suggestions)
}

// InvalidateSearchResults drops every cached search result. The indexer
// calls it after a bulk write so readers do not see stale documents.
func (rc *RedisCache) InvalidateSearchResults(ctx context.Context) error {
	iter := rc.client.Scan(ctx, 0, searchKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := rc.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	rc.logger.Debug("search cache invalidated", zap.Int("keys", len(keys)))
	return nil
}

func (rc *RedisCache) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

func (rc *RedisCache) get(ctx context.Context, kind, key string, dst any) (bool, error) {
	val, err := rc.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.CacheMisses.WithLabelValues(kind).Inc()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get: %w", err)
	}

	if err := json.Unmarshal(val, dst); err != nil {
		return false, fmt.Errorf("cache unmarshal: %w", err)
	}
	observability.CacheHits.WithLabelValues(kind).Inc()
	return true, nil
}

func (rc *RedisCache) set(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	return rc.client.Set(ctx, key, data, ttl).Err()
}

// searchKey hashes the compiled request. Struct field order is fixed, so the
// same request always encodes to the same bytes.
func searchKey(req *models.EngineRequest, offset int) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("cache key: %w", err)
	}
	return fmt.Sprintf("%s%s:%d", searchKeyPrefix, hashString(string(data)), offset), nil
}

func suggestKey(partial string, limit int) string {
	return fmt.Sprintf("%s%s:%d", suggestKeyPrefix, hashString(strings.ToLower(strings.TrimSpace(partial))), limit)
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:8])
}

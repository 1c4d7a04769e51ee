package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Redis         RedisConfig         `yaml:"redis"`
	ClickHouse    ClickHouseConfig    `yaml:"clickhouse"`
	Firestore     FirestoreConfig     `yaml:"firestore"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Search        SearchConfig        `yaml:"search"`
	AI            AIConfig            `yaml:"ai"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxConcurrent   int           `yaml:"max_concurrent"`
}

type ElasticsearchConfig struct {
	Addresses         []string      `yaml:"addresses"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	MaxRetries        int           `yaml:"max_retries"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	Index             string        `yaml:"index"`
	NumShards         int           `yaml:"num_shards"`
	NumReplicas       int           `yaml:"num_replicas"`
	RefreshInterval   string        `yaml:"refresh_interval"`
	BulkSize          int           `yaml:"bulk_size"`
	BulkFlushInterval time.Duration `yaml:"bulk_flush_interval"`
	FacetSize         int           `yaml:"facet_size"`
}

// RedisConfig with no addresses disables result caching.
type RedisConfig struct {
	Addresses    []string       `yaml:"addresses"`
	Password     string         `yaml:"password"`
	DB           int            `yaml:"db"`
	PoolSize     int            `yaml:"pool_size"`
	MinIdleConns int            `yaml:"min_idle_conns"`
	DialTimeout  time.Duration  `yaml:"dial_timeout"`
	ReadTimeout  time.Duration  `yaml:"read_timeout"`
	WriteTimeout time.Duration  `yaml:"write_timeout"`
	TTL          CacheTTLConfig `yaml:"ttl"`
}

type CacheTTLConfig struct {
	SearchResults time.Duration `yaml:"search_results"`
	Suggestions   time.Duration `yaml:"suggestions"`
}

// ClickHouseConfig with no addresses disables search history and query analytics.
type ClickHouseConfig struct {
	Addresses    []string      `yaml:"addresses"`
	Database     string        `yaml:"database"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
}

// FirestoreConfig with an empty project disables the product change listener.
type FirestoreConfig struct {
	ProjectID       string        `yaml:"project_id"`
	CredentialsFile string        `yaml:"credentials_file"`
	Collection      string        `yaml:"collection"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
}

// KafkaConfig with no brokers disables the indexing pipeline.
type KafkaConfig struct {
	Brokers       []string      `yaml:"brokers"`
	TopicChanges  string        `yaml:"topic_changes"`
	TopicDLQ      string        `yaml:"topic_dlq"`
	ConsumerGroup string        `yaml:"consumer_group"`
	BatchSize     int           `yaml:"batch_size"`
	BatchTimeout  time.Duration `yaml:"batch_timeout"`
	MaxRetries    int           `yaml:"max_retries"`
}

type SearchConfig struct {
	DefaultLimit    int                  `yaml:"default_limit"`
	MaxLimit        int                  `yaml:"max_limit"`
	SuggestionLimit int                  `yaml:"suggestion_limit"`
	History         HistoryConfig        `yaml:"history"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
	Retry           RetryConfig          `yaml:"retry"`
	SlowQuery       SlowQueryConfig      `yaml:"slow_query"`
}

type HistoryConfig struct {
	Enabled      bool          `yaml:"enabled"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type CircuitBreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	InitialWait time.Duration `yaml:"initial_wait"`
	MaxWait     time.Duration `yaml:"max_wait"`
	Multiplier  float64       `yaml:"multiplier"`
}

type SlowQueryConfig struct {
	WarningThreshold  time.Duration `yaml:"warning_threshold"`
	CriticalThreshold time.Duration `yaml:"critical_threshold"`
}

// AIConfig with an empty API key disables the AI query parser; the rule
// parser is used for every request.
type AIConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

func (c AIConfig) Enabled() bool {
	return c.APIKey != ""
}

type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	ServiceName string `yaml:"service_name"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxConcurrent:   500,
		},
		Elasticsearch: ElasticsearchConfig{
			Addresses:         []string{"http://localhost:9200"},
			MaxRetries:        3,
			RequestTimeout:    2 * time.Second,
			Index:             "products",
			NumShards:         1,
			NumReplicas:       1,
			RefreshInterval:   "1s",
			BulkSize:          500,
			BulkFlushInterval: 5 * time.Second,
			FacetSize:         50,
		},
		Redis: RedisConfig{
			PoolSize:     50,
			MinIdleConns: 5,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			TTL: CacheTTLConfig{
				SearchResults: 2 * time.Minute,
				Suggestions:   10 * time.Minute,
			},
		},
		ClickHouse: ClickHouseConfig{
			Database:     "product_search",
			DialTimeout:  5 * time.Second,
			QueryTimeout: 2 * time.Second,
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Firestore: FirestoreConfig{
			Collection:     "products",
			RequestTimeout: 2 * time.Second,
		},
		Kafka: KafkaConfig{
			TopicChanges:  "products.changes",
			TopicDLQ:      "products.changes.dlq",
			ConsumerGroup: "product-indexer",
			BatchSize:     100,
			BatchTimeout:  1 * time.Second,
			MaxRetries:    3,
		},
		Search: SearchConfig{
			DefaultLimit:    10,
			MaxLimit:        100,
			SuggestionLimit: 5,
			History: HistoryConfig{
				Enabled:      true,
				WriteTimeout: 2 * time.Second,
			},
			CircuitBreaker: CircuitBreakerConfig{
				MaxRequests:      10,
				Interval:         30 * time.Second,
				Timeout:          15 * time.Second,
				FailureThreshold: 5,
			},
			Retry: RetryConfig{
				MaxAttempts: 2,
				InitialWait: 50 * time.Millisecond,
				MaxWait:     500 * time.Millisecond,
				Multiplier:  2.0,
			},
			SlowQuery: SlowQueryConfig{
				WarningThreshold:  300 * time.Millisecond,
				CriticalThreshold: 1 * time.Second,
			},
		},
		AI: AIConfig{
			Model:       "gemini-2.0-flash",
			Temperature: 0.2,
			Timeout:     5 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			ServiceName: "product-search",
		},
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxConcurrent <= 0 {
		return fmt.Errorf("server max_concurrent must be positive")
	}
	if len(c.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("at least one elasticsearch address required")
	}
	if c.Elasticsearch.Index == "" {
		return fmt.Errorf("elasticsearch index name required")
	}
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("default limit must be positive")
	}
	if c.Search.MaxLimit <= 0 || c.Search.MaxLimit > 1000 {
		return fmt.Errorf("max limit must be between 1 and 1000")
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("default limit %d exceeds max limit %d", c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	if c.Search.SuggestionLimit <= 0 {
		return fmt.Errorf("suggestion limit must be positive")
	}
	if c.Search.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry max_attempts must be positive")
	}
	if c.AI.Enabled() && c.AI.Model == "" {
		return fmt.Errorf("ai model required when ai api_key is set")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.TopicChanges == "" {
		return fmt.Errorf("kafka topic_changes required when brokers are set")
	}
	return nil
}

package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/shubhsaxena/product-search/internal/config"
	"github.com/shubhsaxena/product-search/internal/models"
	"github.com/shubhsaxena/product-search/internal/observability"
)

// ErrUnparseable means the model answered but not with usable JSON.
var ErrUnparseable = errors.New("ai parser returned unparseable output")

const systemPrompt = `You are an assistant that extracts structured product search parameters from user queries.
Given a user's search query, respond with a JSON object with these optional fields:
- query: string (the main search text)
- category: string or array of strings
- minPrice: number
- maxPrice: number
- inStock: boolean
- sortBy: "price" | "name" | "created_at" | "sort_index"
- sortOrder: "asc" | "desc"
Only include fields that are present in the user's query.`

// QueryParser extracts SearchOptions from free text through an
// OpenAI-compatible chat completion endpoint in JSON mode.
type QueryParser struct {
	client      *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
	logger      *zap.Logger
}

func NewQueryParser(cfg config.AIConfig, logger *zap.Logger) *QueryParser {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &QueryParser{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		logger:      logger,
	}
}

// ParseQuery asks the model for search parameters. Any transport failure or
// malformed answer is returned as an error so the caller can fall back.
func (p *QueryParser) ParseQuery(ctx context.Context, text string) (*models.SearchOptions, error) {
	ctx, span := observability.StartSpan(ctx, "ai.parse_query")
	defer span.End()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: p.temperature,
	})
	if err != nil {
		span.RecordError(err)
		return nil, parseAPIError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion: %w", ErrUnparseable)
	}

	opts, err := decodeOptions(resp.Choices[0].Message.Content, text)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("ai parsed query",
		zap.String("model", p.model),
		zap.Duration("took", time.Since(start)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)
	return opts, nil
}

type aiOptions struct {
	Query     string                 `json:"query"`
	Category  *models.CategoryFilter `json:"category"`
	MinPrice  *float64               `json:"minPrice"`
	MaxPrice  *float64               `json:"maxPrice"`
	InStock   *bool                  `json:"inStock"`
	SortBy    string                 `json:"sortBy"`
	SortOrder string                 `json:"sortOrder"`
}

// decodeOptions maps the model's JSON onto SearchOptions. Unknown sort
// values are dropped rather than failing the parse; Query defaults to text.
func decodeOptions(content, text string) (*models.SearchOptions, error) {
	content = stripCodeFence(content)
	if content == "" {
		return nil, fmt.Errorf("empty content: %w", ErrUnparseable)
	}

	var raw aiOptions
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	opts := &models.SearchOptions{
		Query:    strings.TrimSpace(raw.Query),
		MinPrice: raw.MinPrice,
		MaxPrice: raw.MaxPrice,
		InStock:  raw.InStock,
	}
	if opts.Query == "" {
		opts.Query = text
	}
	if !raw.Category.Empty() {
		opts.Category = raw.Category
	}
	if models.ValidSortBy(raw.SortBy) {
		opts.SortBy = raw.SortBy
		if models.ValidSortOrder(raw.SortOrder) {
			opts.SortOrder = raw.SortOrder
		}
	}
	return opts, nil
}

// stripCodeFence removes a ```json fence some models add even in JSON mode.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("ai API error %d: %s", reqErr.HTTPStatusCode, string(reqErr.Body))
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("ai API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}

	return fmt.Errorf("ai request failed: %w", err)
}

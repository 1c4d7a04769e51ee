package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubhsaxena/product-search/internal/config"
	"github.com/shubhsaxena/product-search/internal/models"
	"github.com/shubhsaxena/product-search/internal/observability"
	"github.com/shubhsaxena/product-search/internal/resilience"
)

type MessageHandler func(ctx context.Context, event *models.ChangeEvent) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads product change events and hands them to the indexer.
// Messages that keep failing go to the dead letter topic and are committed.
type Consumer struct {
	reader     messageReader
	dlqWriter  messageWriter
	handler    MessageHandler
	cfg        config.KafkaConfig
	retryCfg   resilience.RetryConfig
	logger     *zap.Logger
	wg         sync.WaitGroup
	cancelFunc context.CancelFunc
}

func NewConsumer(cfg config.KafkaConfig, handler MessageHandler, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.TopicChanges,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       1e3,  // 1KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        500 * time.Millisecond,
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
	})

	dlqWriter := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.TopicDLQ,
		Balancer: &kafka.Hash{},
	}

	logger.Info("kafka consumer created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.TopicChanges),
		zap.String("group", cfg.ConsumerGroup),
	)

	return newConsumer(reader, dlqWriter, cfg, handler, logger)
}

func newConsumer(r messageReader, w messageWriter, cfg config.KafkaConfig, handler MessageHandler, logger *zap.Logger) *Consumer {
	attempts := cfg.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	return &Consumer{
		reader:    r,
		dlqWriter: w,
		handler:   handler,
		cfg:       cfg,
		retryCfg: resilience.RetryConfig{
			MaxAttempts: attempts,
			InitialWait: 100 * time.Millisecond,
			MaxWait:     2 * time.Second,
			Multiplier:  2.0,
		},
		logger: logger,
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consumeLoop(ctx)
	}()

	c.logger.Info("kafka consumer started")
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("kafka consumer shutting down")
				return
			}
			c.logger.Error("fetching kafka message", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		c.processMessage(ctx, msg)
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) {
	start := time.Now()

	if msg.HighWaterMark > 0 {
		observability.KafkaConsumerLag.
			WithLabelValues(msg.Topic, strconv.Itoa(msg.Partition)).
			Set(float64(msg.HighWaterMark - msg.Offset - 1))
	}

	var event models.ChangeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Error("unmarshaling kafka message",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
			zap.Int("partition", msg.Partition),
		)
		observability.IndexingEventsTotal.WithLabelValues("decode", "dlq").Inc()
		c.sendToDLQ(ctx, msg, fmt.Sprintf("unmarshal error: %v", err))
		c.commitMessage(ctx, msg)
		return
	}

	if !event.Timestamp.IsZero() {
		observability.IndexingLag.Set(time.Since(event.Timestamp).Seconds())
	}

	attempt := 0
	err := resilience.Retry(ctx, c.retryCfg, func() error {
		attempt++
		err := c.handler(ctx, &event)
		if err != nil && !resilience.IsPermanent(err) {
			c.logger.Warn("handler error, retrying",
				zap.Error(err),
				zap.Int("attempt", attempt),
				zap.String("doc_id", event.DocumentID),
			)
		}
		return err
	})

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.logger.Error("handler failed, sending to DLQ",
			zap.Error(err),
			zap.String("doc_id", event.DocumentID),
		)
		observability.IndexingEventsTotal.WithLabelValues(event.Type, "dlq").Inc()
		c.sendToDLQ(ctx, msg, fmt.Sprintf("handler error: %v", err))
	} else {
		observability.IndexingEventsTotal.WithLabelValues(event.Type, "success").Inc()
	}

	c.commitMessage(ctx, msg)

	c.logger.Debug("message processed",
		zap.String("doc_id", event.DocumentID),
		zap.Duration("duration", time.Since(start)),
	)
}

func (c *Consumer) sendToDLQ(ctx context.Context, msg kafka.Message, reason string) {
	if c.cfg.TopicDLQ == "" {
		c.logger.Warn("no dlq topic configured, dropping message", zap.Int64("offset", msg.Offset))
		return
	}

	dlqMsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafka.Header{Key: "dlq_reason", Value: []byte(reason)},
			kafka.Header{Key: "original_topic", Value: []byte(c.cfg.TopicChanges)},
			kafka.Header{Key: "original_partition", Value: []byte(strconv.Itoa(msg.Partition))},
			kafka.Header{Key: "original_offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		),
	}

	if err := c.dlqWriter.WriteMessages(ctx, dlqMsg); err != nil {
		c.logger.Error("failed to send to DLQ",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
		)
	}
}

func (c *Consumer) commitMessage(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("committing kafka message",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
		)
	}
}

func (c *Consumer) HealthCheck(ctx context.Context) error {
	return dialBrokers(ctx, c.cfg.Brokers)
}

func (c *Consumer) Stop() error {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()

	var errs []error
	if err := c.reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing reader: %w", err))
	}
	if err := c.dlqWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing dlq writer: %w", err))
	}
	return errors.Join(errs...)
}

func dialBrokers(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("kafka health check dial: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Brokers(); err != nil {
		return fmt.Errorf("kafka health check brokers: %w", err)
	}
	return nil
}

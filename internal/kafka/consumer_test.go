package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubhsaxena/product-search/internal/config"
	"github.com/shubhsaxena/product-search/internal/models"
	"github.com/shubhsaxena/product-search/internal/resilience"
)

type fakeReader struct {
	mu        sync.Mutex
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error { return nil }

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func testConsumer(handler MessageHandler) (*Consumer, *fakeReader, *fakeWriter) {
	r := &fakeReader{}
	w := &fakeWriter{}
	cfg := config.KafkaConfig{TopicChanges: "products.changes", TopicDLQ: "products.changes.dlq", MaxRetries: 3}
	c := newConsumer(r, w, cfg, handler, zap.NewNop())
	c.retryCfg.InitialWait = time.Millisecond
	c.retryCfg.MaxWait = time.Millisecond
	return c, r, w
}

func eventMessage(t *testing.T, ev models.ChangeEvent) kafka.Message {
	t.Helper()
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	return kafka.Message{Topic: "products.changes", Key: []byte(ev.DocumentID), Value: data, Offset: 7}
}

func TestConsumer_ProcessSuccess(t *testing.T) {
	var got *models.ChangeEvent
	c, r, w := testConsumer(func(_ context.Context, ev *models.ChangeEvent) error {
		got = ev
		return nil
	})

	c.processMessage(context.Background(), eventMessage(t, models.ChangeEvent{Type: "UPDATE", DocumentID: "p1"}))

	if got == nil || got.DocumentID != "p1" {
		t.Fatalf("handler not called with event, got %+v", got)
	}
	if len(r.committed) != 1 {
		t.Errorf("expected 1 commit, got %d", len(r.committed))
	}
	if len(w.msgs) != 0 {
		t.Errorf("expected no DLQ messages, got %d", len(w.msgs))
	}
}

func TestConsumer_BadPayloadGoesToDLQ(t *testing.T) {
	called := false
	c, r, w := testConsumer(func(context.Context, *models.ChangeEvent) error {
		called = true
		return nil
	})

	c.processMessage(context.Background(), kafka.Message{Value: []byte("{not json"), Offset: 3, Partition: 1})

	if called {
		t.Error("handler should not be called for undecodable payload")
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 DLQ message, got %d", len(w.msgs))
	}
	if header(w.msgs[0], "original_offset") != "3" || header(w.msgs[0], "original_partition") != "1" {
		t.Errorf("unexpected DLQ headers %+v", w.msgs[0].Headers)
	}
	if len(r.committed) != 1 {
		t.Error("undecodable message should still be committed")
	}
}

func TestConsumer_RetriesThenDLQ(t *testing.T) {
	calls := 0
	c, r, w := testConsumer(func(context.Context, *models.ChangeEvent) error {
		calls++
		return errors.New("es unavailable")
	})

	c.processMessage(context.Background(), eventMessage(t, models.ChangeEvent{Type: "CREATE", DocumentID: "p2"}))

	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected DLQ message, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "p2" {
		t.Errorf("DLQ message should keep key, got %q", w.msgs[0].Key)
	}
	if len(r.committed) != 1 {
		t.Error("failed message should be committed after DLQ")
	}
}

func TestConsumer_PermanentErrorNotRetried(t *testing.T) {
	calls := 0
	c, _, w := testConsumer(func(context.Context, *models.ChangeEvent) error {
		calls++
		return resilience.Permanent(errors.New("unknown event type"))
	})

	c.processMessage(context.Background(), eventMessage(t, models.ChangeEvent{Type: "MERGE", DocumentID: "p3"}))

	if calls != 1 {
		t.Errorf("expected 1 attempt, got %d", calls)
	}
	if len(w.msgs) != 1 {
		t.Errorf("expected DLQ message, got %d", len(w.msgs))
	}
}

func TestConsumer_StartStop(t *testing.T) {
	c, _, _ := testConsumer(func(context.Context, *models.ChangeEvent) error { return nil })

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Errorf("unexpected stop error: %v", err)
	}
}

func TestProducer_PublishBatch(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, logger: zap.NewNop()}

	events := []*models.ChangeEvent{
		{Type: "CREATE", DocumentID: "a", Collection: "products"},
		{Type: "DELETE", DocumentID: "b", Collection: "products"},
	}
	if err := p.PublishBatch(context.Background(), events); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(w.msgs))
	}
	if string(w.msgs[1].Key) != "b" || header(w.msgs[1], "event_type") != "DELETE" {
		t.Errorf("unexpected message %+v", w.msgs[1])
	}

	if err := p.PublishBatch(context.Background(), nil); err != nil {
		t.Errorf("empty batch should be a no-op, got %v", err)
	}
}

func TestProducer_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := &Producer{writer: w, logger: zap.NewNop()}

	if err := p.PublishChangeEvent(context.Background(), &models.ChangeEvent{DocumentID: "a"}); err == nil {
		t.Error("expected error")
	}
}

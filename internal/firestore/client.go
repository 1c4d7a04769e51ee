package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/shubhsaxena/product-search/internal/config"
	"github.com/shubhsaxena/product-search/internal/models"
	"github.com/shubhsaxena/product-search/internal/observability"
)

// Event types published for product changes.
const (
	EventCreate = "CREATE"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// Client reads the product catalog, the source of truth the search index
// is built from.
type Client struct {
	client *firestore.Client
	cfg    config.FirestoreConfig
	logger *zap.Logger
}

func NewClient(ctx context.Context, cfg config.FirestoreConfig, logger *zap.Logger) (*Client, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("firestore project_id required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	logger.Info("firestore client connected",
		zap.String("project", cfg.ProjectID),
		zap.String("collection", cfg.Collection),
	)

	return &Client{
		client: client,
		cfg:    cfg,
		logger: logger,
	}, nil
}

func (c *Client) GetProduct(ctx context.Context, docID string) (map[string]any, error) {
	ctx, span := observability.StartSpan(ctx, "firestore.get_product",
		attribute.String("collection", c.cfg.Collection),
		attribute.String("doc_id", docID),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	doc, err := c.client.Collection(c.cfg.Collection).Doc(docID).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore get doc %s/%s: %w", c.cfg.Collection, docID, err)
	}

	return withID(doc.Ref.ID, doc.Data()), nil
}

// ScanProducts streams every product in the collection to fn. It stops at
// the first error fn returns.
func (c *Client) ScanProducts(ctx context.Context, fn func(*models.ChangeEvent) error) (int, error) {
	ctx, span := observability.StartSpan(ctx, "firestore.scan_products",
		attribute.String("collection", c.cfg.Collection),
	)
	defer span.End()

	iter := c.client.Collection(c.cfg.Collection).Documents(ctx)
	defer iter.Stop()

	n := 0
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("firestore scan after %d docs: %w", n, err)
		}

		if err := fn(c.event(EventUpdate, doc)); err != nil {
			return n, err
		}
		n++
	}
}

func (c *Client) event(eventType string, doc *firestore.DocumentSnapshot) *models.ChangeEvent {
	ev := &models.ChangeEvent{
		Type:       eventType,
		DocumentID: doc.Ref.ID,
		Collection: c.cfg.Collection,
		Timestamp:  time.Now().UTC(),
	}
	if !doc.UpdateTime.IsZero() {
		ev.Version = doc.UpdateTime.UnixNano()
	}
	if eventType != EventDelete && doc.Exists() {
		ev.Document = withID(doc.Ref.ID, doc.Data())
	}
	return ev
}

// withID records the document ID in the body, since product documents
// rarely carry their own.
func withID(id string, data map[string]any) map[string]any {
	if data == nil {
		data = make(map[string]any)
	}
	if _, ok := data["id"]; !ok {
		data["id"] = id
	}
	return data
}

type ChangeListener struct {
	client  *Client
	logger  *zap.Logger
	handler func(context.Context, *models.ChangeEvent) error
}

func (c *Client) NewChangeListener(handler func(context.Context, *models.ChangeEvent) error) *ChangeListener {
	return &ChangeListener{
		client:  c,
		logger:  c.logger,
		handler: handler,
	}
}

// Listen forwards snapshot changes to the handler until ctx is done. The
// first snapshot reports every existing document as added.
func (cl *ChangeListener) Listen(ctx context.Context) error {
	snapIter := cl.client.client.Collection(cl.client.cfg.Collection).Snapshots(ctx)
	defer snapIter.Stop()

	for {
		snap, err := snapIter.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			cl.logger.Error("snapshot iterator error", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		for _, change := range snap.Changes {
			event := cl.client.event(eventType(change.Kind), change.Doc)

			if err := cl.handler(ctx, event); err != nil {
				cl.logger.Error("change event handler error",
					zap.String("doc_id", event.DocumentID),
					zap.String("type", event.Type),
					zap.Error(err),
				)
			}
		}
	}
}

func eventType(kind firestore.DocumentChangeKind) string {
	switch kind {
	case firestore.DocumentAdded:
		return EventCreate
	case firestore.DocumentRemoved:
		return EventDelete
	default:
		return EventUpdate
	}
}

func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	iter := c.client.Collection(c.cfg.Collection).Limit(1).Documents(ctx)
	defer iter.Stop()

	_, err := iter.Next()
	// iterator.Done means the collection is empty but reachable.
	if err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("firestore health check: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

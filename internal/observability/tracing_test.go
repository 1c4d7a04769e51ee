package observability

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTraceIDFromContext_Empty(t *testing.T) {
	if id := TraceIDFromContext(context.Background()); id != "" {
		t.Errorf("expected empty trace ID from background context, got %q", id)
	}
}

func TestInitTracer(t *testing.T) {
	shutdown, err := InitTracer("product-search-test")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer shutdown(context.Background())

	ctx, span := StartSpan(context.Background(), "service.search_products")
	defer span.End()

	if id := TraceIDFromContext(ctx); len(id) != 32 {
		t.Errorf("expected 32 char trace id, got %q", id)
	}
}

func TestInitTracer_EmptyServiceName(t *testing.T) {
	if _, err := InitTracer(""); err == nil {
		t.Error("expected error for empty service name")
	}
}

func TestStartSpan_RecordsAttributes(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	_, span := StartSpan(context.Background(), "engine.search", attribute.String("index", "products"))
	span.End()

	ended := sr.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(ended))
	}
	if ended[0].Name() != "engine.search" {
		t.Errorf("unexpected span name %q", ended[0].Name())
	}
	attrs := ended[0].Attributes()
	if len(attrs) != 1 || attrs[0].Key != "index" || attrs[0].Value.AsString() != "products" {
		t.Errorf("unexpected attributes %v", attrs)
	}
}

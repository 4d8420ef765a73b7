package telemetry

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Rohianon/multicurrency-checkout/pkg/config"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return rec
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()

	provider, err := Init(ctx, &Config{ServiceName: "checkout-service"})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := provider.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.TelemetryConfig{
		ServiceName:  "checkout-service",
		CollectorURL: "collector:4317",
		Environment:  "staging",
		Enabled:      true,
	}, "1.2.0")

	if cfg.ServiceName != "checkout-service" || cfg.CollectorURL != "collector:4317" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Version != "1.2.0" || !cfg.Enabled {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestTraceAndSpanID(t *testing.T) {
	installRecorder(t)

	if TraceID(context.Background()) != "" {
		t.Error("trace ID should be empty without a span")
	}

	ctx, span := StartSpan(context.Background(), "submit", AttrReference.String("ref_1"))
	defer span.End()

	if got := len(TraceID(ctx)); got != 32 {
		t.Errorf("trace ID should be 32 chars, got %d", got)
	}
	if got := len(SpanID(ctx)); got != 16 {
		t.Errorf("span ID should be 16 chars, got %d", got)
	}
}

func TestEndSpanRecordsError(t *testing.T) {
	rec := installRecorder(t)

	_, span := StartClientSpan(context.Background(), "verify", AttrReference.String("ref_1"))
	EndSpan(span, errors.New("gateway down"))

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(ended))
	}
	if ended[0].Name() != "gateway.verify" {
		t.Errorf("unexpected span name %q", ended[0].Name())
	}
	if ended[0].Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", ended[0].Status().Code)
	}
}

func TestWrapHTTPClient(t *testing.T) {
	client := WrapHTTPClient(nil)
	if client == http.DefaultClient {
		t.Fatal("nil client must not resolve to http.DefaultClient")
	}
	if client.Transport == nil {
		t.Fatal("transport should be wrapped")
	}

	original := &http.Client{}
	wrapped := WrapHTTPClient(original)
	if wrapped != original {
		t.Error("should return the same client instance")
	}

	transport := wrapped.Transport
	WrapHTTPClient(wrapped)
	if wrapped.Transport != transport {
		t.Error("wrapping twice should not stack transports")
	}
}

func TestHeaderCarrier(t *testing.T) {
	headers := []kafka.Header{{Key: "event-type", Value: []byte("payment.completed.v1")}}
	carrier := HeaderCarrier{Headers: &headers}

	if got := carrier.Get("event-type"); got != "payment.completed.v1" {
		t.Errorf("expected header value, got %q", got)
	}
	if got := carrier.Get("missing"); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}

	carrier.Set("traceparent", "a")
	carrier.Set("traceparent", "b")
	if got := carrier.Get("traceparent"); got != "b" {
		t.Errorf("expected overwritten value, got %q", got)
	}
	if len(carrier.Keys()) != 2 {
		t.Errorf("expected 2 keys, got %v", carrier.Keys())
	}
}

func TestTraceContextRoundTrip(t *testing.T) {
	installRecorder(t)

	ctx, span := StartProducerSpan(context.Background(), "checkout.payments.completed")
	defer span.End()

	var headers []kafka.Header
	InjectTraceContext(ctx, &headers)
	if len(headers) == 0 {
		t.Fatal("headers should not be empty after injection")
	}

	msg := kafka.Message{Topic: "checkout.payments.completed", Headers: headers, Offset: 7}
	consumerCtx, consumer := StartConsumerSpan(context.Background(), msg)
	defer consumer.End()

	if TraceID(consumerCtx) != TraceID(ctx) {
		t.Errorf("trace ID should be preserved: expected %s, got %s", TraceID(ctx), TraceID(consumerCtx))
	}
}

package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInit_StdoutExporter(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	var buf bytes.Buffer
	shutdown, err := Init(context.Background(), Config{ServiceName: "netimpact-test", ServiceVersion: "dev", Writer: &buf})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	_, span := Tracer("netimpact/test").Start(context.Background(), "impact.Simulate")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "impact.Simulate") {
		t.Errorf("expected exported span, got %q", out)
	}
	if !strings.Contains(out, "netimpact-test") {
		t.Errorf("expected service name in resource, got %q", out)
	}
}

func TestInit_OTLPEndpoint(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	shutdown, err := Init(context.Background(), Config{ServiceName: "netimpact-test", Endpoint: "http://127.0.0.1:4318"})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}

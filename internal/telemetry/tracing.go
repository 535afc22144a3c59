package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "reposync"

// Tracing owns the tracer provider for one process.
type Tracing struct {
	provider *sdktrace.TracerProvider
}

// NewTracing exports spans over OTLP/HTTP. An empty endpoint lets the exporter
// read the standard OTEL_EXPORTER_OTLP_* variables.
func NewTracing(ctx context.Context, endpoint string) (*Tracing, error) {
	var opts []otlptracehttp.Option
	if endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}
	return newTracing(sdktrace.WithBatcher(exporter)), nil
}

// NewTracingWithProcessor is used by tests to capture spans in memory.
func NewTracingWithProcessor(processor sdktrace.SpanProcessor) *Tracing {
	return newTracing(sdktrace.WithSpanProcessor(processor))
}

func newTracing(opt sdktrace.TracerProviderOption) *Tracing {
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	return &Tracing{provider: sdktrace.NewTracerProvider(opt, sdktrace.WithResource(res))}
}

// Tracer returns the wizard tracer. Nil-safe: a nil Tracing yields nil.
func (t *Tracing) Tracer() trace.Tracer {
	if t == nil {
		return nil
	}
	return t.provider.Tracer(serviceName)
}

// Transport instruments an HTTP round tripper. With tracing off the base
// transport is returned unchanged.
func (t *Tracing) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if t == nil {
		return base
	}
	return otelhttp.NewTransport(base, otelhttp.WithTracerProvider(t.provider))
}

// Shutdown flushes and stops the provider.
func (t *Tracing) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

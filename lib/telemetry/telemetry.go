// Package telemetry wires up tracing for worknight. The core emits spans
// and leveled slog events; where they end up (OTLP collector, stderr,
// nothing) is decided here at startup.
package telemetry

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config selects the trace export target. An empty endpoint means spans
// are recorded in-process only.
type Config struct {
	OtlpHTTPEndpoint string
	Headers          map[string]string
}

type Telemetry struct {
	tracerProvider *trace.TracerProvider
}

func (t Telemetry) Shutdown(ctx context.Context) error {
	if t.tracerProvider == nil {
		return nil
	}
	return t.tracerProvider.Shutdown(ctx)
}

func Setup(ctx context.Context, serviceName string, config Config) (Telemetry, error) {
	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return Telemetry{}, err
	}

	opts := []trace.TracerProviderOption{trace.WithResource(r)}
	if config.OtlpHTTPEndpoint != "" {
		exportCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()

		exporter, err := otlptracehttp.New(
			exportCtx,
			otlptracehttp.WithEndpointURL(config.OtlpHTTPEndpoint),
			otlptracehttp.WithHeaders(config.Headers),
		)
		if err != nil {
			return Telemetry{}, err
		}
		opts = append(opts, trace.WithBatcher(exporter))
	}

	tracerProvider := trace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tracerProvider)

	return Telemetry{tracerProvider: tracerProvider}, nil
}

var setupTestEnvironments = map[string]bool{}

// SetupForTesting sets up an export-free tracer provider once per test
// binary and service name.
func SetupForTesting(t testing.TB, serviceName string) func() {
	if setupTestEnvironments[serviceName] {
		return func() {}
	}
	setupTestEnvironments[serviceName] = true

	tel, err := Setup(context.Background(), serviceName, Config{})
	if err != nil {
		t.Fatal(err)
	}
	return func() {
		err := tel.Shutdown(context.Background())
		if err != nil {
			t.Fatal(err)
		}
	}
}

// Package telemetry installs the OpenTelemetry tracer provider used by the
// run, node and oracle spans.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ServiceName is reported as service.name on every span.
const ServiceName = "quorum"

// Exporter names accepted by Setup.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
)

// ShutdownFunc flushes and stops the provider.
type ShutdownFunc func(context.Context) error

var (
	installOnce sync.Once
	installErr  error
	shutdown    ShutdownFunc = func(context.Context) error { return nil }
)

// Setup installs the global tracer provider for the named exporter.
// The first call wins; later calls return the same shutdown function.
// With ExporterNone the otel no-op provider stays in place.
func Setup(exporter, version string, w io.Writer) (ShutdownFunc, error) {
	switch exporter {
	case "", ExporterNone:
		return func(context.Context) error { return nil }, nil
	case ExporterStdout:
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", exporter)
	}

	installOnce.Do(func() {
		if w == nil {
			w = os.Stderr
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			installErr = err
			return
		}
		tp, err := NewProvider(exp, version)
		if err != nil {
			installErr = err
			return
		}
		otel.SetTracerProvider(tp)
		shutdown = tp.Shutdown
	})
	return shutdown, installErr
}

// NewProvider builds a provider that hands every finished span to exporter
// synchronously.
func NewProvider(exporter sdktrace.SpanExporter, version string) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", ServiceName),
			attribute.String("service.version", version),
		),
	)
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	), nil
}

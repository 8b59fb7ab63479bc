// Package oteltrace adapts an OpenTelemetry tracer to the tracing port.
package oteltrace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yuguanpei/vending-machine/internal/observability"
)

const defaultName = "vending-machine"

type tracer struct {
	t      trace.Tracer
	common []attribute.KeyValue
}

// New resolves a tracer from the global provider, which drops spans until
// telemetry.SetupTracing installs the SDK. Every span also gets the common
// attributes, typically the device id.
func New(name string, common ...attribute.KeyValue) observability.Tracer {
	if name == "" {
		name = defaultName
	}
	return &tracer{t: otel.Tracer(name), common: common}
}

func (t *tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if len(t.common) > 0 {
		attrs = append(append(make([]attribute.KeyValue, 0, len(t.common)+len(attrs)), t.common...), attrs...)
	}
	return t.t.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Package observability declares the telemetry ports the application layer
// depends on. Adapters live under infrastructure/observability.
package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Observability is what every component receives at construction.
type Observability interface {
	Tracer() Tracer
	Logger() Logger
	Metrics() Metrics
}

type Tracer interface {
	Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span)
}

// Logger writes structured records; the message is a snake_case event name.
type Logger interface {
	With(fields ...Field) Logger
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

type Field struct {
	Key   string
	Value any
}

func F(k string, v any) Field { return Field{Key: k, Value: v} }

// Err is the conventional "error" field.
func Err(err error) Field { return Field{Key: "error", Value: err} }

// Metrics resolves instruments by key.
type Metrics interface {
	Counter(key MetricKey) Counter
	Histogram(key MetricKey) Histogram
}

type MetricKey string

type Counter interface {
	Add(delta float64, labels ...Label)
}

type Histogram interface {
	Observe(value float64, labels ...Label)
}

// Label is a metric dimension; keep values low-cardinality.
type Label struct{ Key, Value string }

func L(k, v string) Label { return Label{Key: k, Value: v} }

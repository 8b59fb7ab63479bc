package workerpresentation

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yuguanpei/vending-machine/internal/observability"
	"github.com/yuguanpei/vending-machine/internal/observability/logctx"
)

// WithEventContext gives an event handler its own logger: event_id (generated
// when absent), the publisher's trace/span ids when valid, and the caller's
// low-cardinality attributes such as the event name.
//
// When the publisher had a recording span the handler context carries it as a
// remote parent, so handler spans join the publisher's trace.
func WithEventContext(
	ctx context.Context,
	base observability.Logger,
	tel observability.Observability,
	traceID trace.TraceID,
	spanID trace.SpanID,
	attrs map[string]string,
) context.Context {
	if base == nil {
		base = tel.Logger()
	}

	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields := []observability.Field{observability.F("event_id", evtID)}

	if traceID.IsValid() {
		fields = append(fields, observability.F("trace_id", traceID.String()))
	}
	if spanID.IsValid() {
		fields = append(fields, observability.F("span_id", spanID.String()))
	}
	if traceID.IsValid() && spanID.IsValid() {
		ctx = trace.ContextWithRemoteSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     spanID,
			TraceFlags: trace.FlagsSampled,
			Remote:     true,
		}))
	}

	keys := make([]string, 0, len(attrs))
	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, observability.F(k, attrs[k]))
	}

	return logctx.With(ctx, base.With(fields...))
}

package application

import (
	"context"
	"time"

	domoutbox "github.com/yuguanpei/vending-machine/internal/domain/outbox"
	"github.com/yuguanpei/vending-machine/internal/observability"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const SpanPrefix = "UC."

// Instruments carries the telemetry ports a use case needs, resolved once at
// construction time so Execute never touches a provider.
type Instruments struct {
	Log    observability.Logger
	Tracer observability.Tracer

	ReqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	DurHistogram observability.Histogram // usecase_duration_seconds{use_case}
	ExtCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	ExtHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewInstruments(tel observability.Observability, service string) Instruments {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return Instruments{
		Log:          tel.Logger().With(observability.F("service", service)),
		Tracer:       tel.Tracer(),
		ReqCounter:   m.Counter(observability.MUsecaseRequests),
		DurHistogram: m.Histogram(observability.MUsecaseDuration),
		ExtCounter:   m.Counter(observability.MExternalRequests),
		ExtHistogram: m.Histogram(observability.MExternalRequestDuration),
	}
}

// Done closes a use case: ends the span, records the RED metrics and writes the
// single use_case_done record.
func (in Instruments) Done(
	ctx context.Context,
	span trace.Span,
	logger observability.Logger,
	useCase string,
	start time.Time,
	outcome, status string,
	err error,
	extra ...observability.Field,
) {
	lat := time.Since(start).Seconds()

	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, status)
		} else {
			span.SetStatus(codes.Ok, status)
		}
		span.End()
	}

	in.ReqCounter.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", outcome),
	)
	in.DurHistogram.Observe(lat,
		observability.L("use_case", useCase),
	)

	fields := []observability.Field{
		observability.F("outcome", outcome),
		observability.F("status", status),
		observability.F("latency_seconds", lat),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	fields = append(fields, extra...)
	if err != nil {
		fields = append(fields, observability.Err(err))
	}

	logger.Info("use_case_done", fields...)
}

// External records one call to a collaborator outside the process.
func (in Instruments) External(peer, endpoint, outcome string, start time.Time) {
	in.ExtCounter.Add(1,
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	in.ExtHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
	)
}

const (
	publishPeer    = "outbox"
	publishTimeout = 300 * time.Millisecond
)

// Publish hands an event to the bus with a short deadline. Failures are logged
// and returned; callers treat them as non-fatal.
func (in Instruments) Publish(ctx context.Context, logger observability.Logger, pub domoutbox.Publisher, e domoutbox.Event) error {
	if pub == nil || e == nil {
		return nil
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	start := time.Now()
	outcome := "success"
	err := pub.Publish(pubCtx, e)
	switch {
	case err != nil:
		outcome = "error"
	case pubCtx.Err() != nil:
		outcome, err = "canceled", pubCtx.Err()
	}
	in.External(publishPeer, e.EventName(), outcome, start)

	if err != nil {
		logger.Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.Err(err),
		)
	}
	return err
}

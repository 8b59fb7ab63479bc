package inventory

import (
	"context"
	"time"

	"github.com/yuguanpei/vending-machine/internal/application"
	dominv "github.com/yuguanpei/vending-machine/internal/domain/inventory"
	domoutbox "github.com/yuguanpei/vending-machine/internal/domain/outbox"
	"github.com/yuguanpei/vending-machine/internal/observability"
	"github.com/yuguanpei/vending-machine/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
)

const workerService = "inventory-worker"

// Worker keeps an audit trail of committed grid changes and warns when a
// channel runs dry.
type Worker struct {
	subscriber domoutbox.Subscriber
	ins        application.Instruments
}

func NewWorker(subscriber domoutbox.Subscriber, tel observability.Observability) *Worker {
	return &Worker{subscriber: subscriber, ins: application.NewInstruments(tel, workerService)}
}

func (w *Worker) Start() {
	if w.subscriber == nil {
		return
	}
	w.subscriber.Subscribe(dominv.ChannelUpdatedEvent{}.EventName(), w.handleChannelUpdated)
}

func (w *Worker) handleChannelUpdated(ctx context.Context, e domoutbox.Event) (err error) {
	const useCase = "inventory.worker.channel_updated"
	evt, ok := e.(dominv.ChannelUpdatedEvent)
	if !ok {
		return nil
	}

	logger := logctx.FromOr(ctx, w.ins.Log).With(
		observability.F("use_case", useCase),
		observability.F("event", e.EventName()),
	)
	ctx, span := w.ins.Tracer.Start(ctx, application.SpanPrefix+"ChannelUpdated",
		attribute.String("use_case", useCase),
		attribute.String("inventory.target", evt.Target),
	)
	start := time.Now()
	outcome, status := "success", "OK"
	defer func() {
		w.ins.Done(ctx, span, logger, useCase, start, outcome, status, err,
			observability.F("target", evt.Target),
			observability.F("reason", evt.Reason),
		)
	}()

	if evt.Channel == nil {
		status = "REMOVED"
		logger.Info("inventory_channel_removed", observability.F("target", evt.Target))
		return nil
	}

	logger.Info("inventory_channel_updated",
		observability.F("target", evt.Target),
		observability.F("product_id", evt.Channel.ProductID),
		observability.F("quantity", evt.Channel.Quantity),
	)
	if evt.Channel.Assigned() && evt.Channel.Quantity == 0 {
		status = "CHANNEL_EMPTY"
		logger.Warn("inventory_channel_empty",
			observability.F("target", evt.Target),
			observability.F("product_id", evt.Channel.ProductID),
		)
	}
	return nil
}

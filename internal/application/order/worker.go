package order

import (
	"context"
	"time"

	"github.com/yuguanpei/vending-machine/internal/application"
	domorder "github.com/yuguanpei/vending-machine/internal/domain/order"
	domoutbox "github.com/yuguanpei/vending-machine/internal/domain/outbox"
	"github.com/yuguanpei/vending-machine/internal/observability"
	"github.com/yuguanpei/vending-machine/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
)

const workerService = "order-worker"

// Worker reacts to order lifecycle events: it drives payment windows and
// empties the cart when a cart order times out.
type Worker struct {
	subscriber domoutbox.Subscriber
	windows    *PaymentWindows
	cart       CartClearer
	ins        application.Instruments
}

func NewWorker(subscriber domoutbox.Subscriber, windows *PaymentWindows, cart CartClearer, tel observability.Observability) *Worker {
	return &Worker{
		subscriber: subscriber,
		windows:    windows,
		cart:       cart,
		ins:        application.NewInstruments(tel, workerService),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil {
		return
	}
	w.subscriber.Subscribe(domorder.OrderCreatedEvent{}.EventName(), w.handleOrderCreated)
	w.subscriber.Subscribe(domorder.OrderStatusChangedEvent{}.EventName(), w.handleStatusChanged)
}

func (w *Worker) handleOrderCreated(ctx context.Context, e domoutbox.Event) (err error) {
	const useCase = "order.worker.order_created"
	evt, ok := e.(domorder.OrderCreatedEvent)
	if !ok {
		return nil
	}

	logger := logctx.FromOr(ctx, w.ins.Log).With(
		observability.F("use_case", useCase),
		observability.F("event", e.EventName()),
	)
	ctx, span := w.ins.Tracer.Start(ctx, application.SpanPrefix+"OrderCreated",
		attribute.String("use_case", useCase),
		attribute.String("order.id", evt.OrderID),
	)
	start := time.Now()
	defer func() {
		w.ins.Done(ctx, span, logger, useCase, start, "success", "WINDOW_OPENED", err,
			observability.F("order_id", evt.OrderID),
		)
	}()

	if w.windows != nil {
		w.windows.Open(evt.OrderID)
	}
	return nil
}

func (w *Worker) handleStatusChanged(ctx context.Context, e domoutbox.Event) (err error) {
	const useCase = "order.worker.status_changed"
	evt, ok := e.(domorder.OrderStatusChangedEvent)
	if !ok {
		return nil
	}

	logger := logctx.FromOr(ctx, w.ins.Log).With(
		observability.F("use_case", useCase),
		observability.F("event", e.EventName()),
	)
	ctx, span := w.ins.Tracer.Start(ctx, application.SpanPrefix+"OrderStatusChanged",
		attribute.String("use_case", useCase),
		attribute.String("order.id", evt.OrderID),
		attribute.String("order.status", string(evt.To)),
	)
	start := time.Now()
	outcome, status := "success", "OK"
	defer func() {
		w.ins.Done(ctx, span, logger, useCase, start, outcome, status, err,
			observability.F("order_id", evt.OrderID),
			observability.F("from", string(evt.From)),
			observability.F("to", string(evt.To)),
		)
	}()

	if w.windows != nil {
		if evt.To == domorder.StatusPending {
			w.windows.Open(evt.OrderID)
			status = "WINDOW_OPENED"
		} else {
			w.windows.Stop(evt.OrderID)
			status = "WINDOW_STOPPED"
		}
	}

	if evt.To == domorder.StatusTimeout && evt.Type == domorder.ProvenanceCart && w.cart != nil {
		w.cart.Clear(ctx)
		status = "CART_CLEARED"
	}
	return nil
}

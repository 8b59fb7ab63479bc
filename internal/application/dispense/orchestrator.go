package dispense

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/yuguanpei/vending-machine/internal/application"
	domcatalog "github.com/yuguanpei/vending-machine/internal/domain/catalog"
	domdispense "github.com/yuguanpei/vending-machine/internal/domain/dispense"
	dominv "github.com/yuguanpei/vending-machine/internal/domain/inventory"
	domorder "github.com/yuguanpei/vending-machine/internal/domain/order"
	domoutbox "github.com/yuguanpei/vending-machine/internal/domain/outbox"
	"github.com/yuguanpei/vending-machine/internal/observability"
	"github.com/yuguanpei/vending-machine/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	dispenseService    = "dispense-service"
	useCaseDispense    = "dispense.batch"
	useCaseTestChannel = "dispense.test_channel"
	dispenserPeer      = "dispenser"
	dispenserEndpoint  = "dispense"
	DefaultUnitTimeout = 30 * time.Second
	timeoutMessage     = "dispense timed out"
)

// Ledger receives the final report of a batch.
type Ledger interface {
	MarkDispensed(ctx context.Context, orderID string, records []domorder.DispenseRecord) error
}

// Cart is the live storefront cart the batch reconciles against.
type Cart interface {
	Reconcile(ctx context.Context, productID int64, stock int)
	Clear(ctx context.Context)
}

// GridWriter is the exclusive grid access held for the duration of a batch.
type GridWriter interface {
	ProductAt(id dominv.ChannelID) (int64, bool)
	Decrement(ctx context.Context, id dominv.ChannelID) (productID int64, stock int, err error)
}

type ProductLookup interface {
	Get(id int64) (domcatalog.Product, error)
}

type Batch struct {
	OrderID    string
	Provenance domorder.Provenance
	Sequence   []dominv.ChannelID
	Grid       GridWriter
}

type Report struct {
	OrderID   string
	Records   []domorder.DispenseRecord
	Succeeded int
	Failed    int
}

// Orchestrator drives the single actuator through a batch, one unit at a time.
type Orchestrator struct {
	dispenser   domdispense.Dispenser
	ledger      Ledger
	cart        Cart
	products    ProductLookup
	publisher   domoutbox.Publisher
	unitTimeout time.Duration
	ins         application.Instruments
	units       observability.Counter // dispense_units_total{outcome}
	gridLock    GridLock

	busy atomic.Bool
}

// GridLock takes the write lock that paid batches hold from planning to the
// last unit. The returned func releases it.
type GridLock func(ctx context.Context) (release func(), err error)

type Option func(*Orchestrator)

// WithGridLock makes TestChannel queue behind paid batches, and paid batches
// behind it, instead of racing them for the actuator.
func WithGridLock(lock GridLock) Option {
	return func(o *Orchestrator) { o.gridLock = lock }
}

func WithUnitTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.unitTimeout = d
		}
	}
}

func NewOrchestrator(
	dispenser domdispense.Dispenser,
	ledger Ledger,
	cart Cart,
	products ProductLookup,
	publisher domoutbox.Publisher,
	tel observability.Observability,
	opts ...Option,
) *Orchestrator {
	if tel == nil {
		tel = observability.Nop()
	}
	o := &Orchestrator{
		dispenser:   dispenser,
		ledger:      ledger,
		cart:        cart,
		products:    products,
		publisher:   publisher,
		unitTimeout: DefaultUnitTimeout,
		ins:         application.NewInstruments(tel, dispenseService),
		units:       tel.Metrics().Counter(observability.MDispenseUnits),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Busy reports whether a batch currently holds the actuator.
func (o *Orchestrator) Busy() bool { return o.busy.Load() }

// Dispense runs the batch to completion. Per-channel failures are recorded in
// the report and never stop the batch; the returned error is reserved for
// ErrBusy and for failing to finalize the order.
func (o *Orchestrator) Dispense(ctx context.Context, b Batch) (_ *Report, err error) {
	logger := logctx.FromOr(ctx, o.ins.Log).With(
		observability.F("use_case", useCaseDispense),
		observability.F("order_id", b.OrderID),
	)
	ctx, span := o.ins.Tracer.Start(ctx, application.SpanPrefix+"Dispense",
		attribute.String("use_case", useCaseDispense),
		attribute.String("order.id", b.OrderID),
		attribute.Int("dispense.units", len(b.Sequence)),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	report := &Report{OrderID: b.OrderID, Records: []domorder.DispenseRecord{}}
	defer func() {
		o.ins.Done(ctx, span, logger, useCaseDispense, start, outcome, statusText, err,
			observability.F("succeeded", report.Succeeded),
			observability.F("failed", report.Failed),
		)
	}()

	if len(b.Sequence) > 0 {
		if !o.busy.CompareAndSwap(false, true) {
			outcome, statusText = "error", "BUSY"
			return nil, domdispense.ErrBusy
		}
		func() {
			defer o.busy.Store(false)
			o.run(ctx, logger, b, report)
		}()
	} else {
		statusText = "EMPTY_SEQUENCE"
	}

	if err = o.ledger.MarkDispensed(ctx, b.OrderID, report.Records); err != nil {
		outcome, statusText = "error", "LEDGER_UPDATE_FAILED"
		err = fmt.Errorf("dispense: finalize order %s: %w", b.OrderID, err)
	}
	if b.Provenance == domorder.ProvenanceCart && o.cart != nil {
		o.cart.Clear(ctx)
	}
	if report.Failed > 0 && err == nil {
		statusText = "PARTIAL"
	}

	_ = o.ins.Publish(ctx, logger, o.publisher, domdispense.CompletedEvent{
		OrderID:    b.OrderID,
		Succeeded:  report.Succeeded,
		Failed:     report.Failed,
		OccurredAt: time.Now().UTC(),
	})
	return report, err
}

func (o *Orchestrator) run(ctx context.Context, logger observability.Logger, b Batch, report *Report) {
	total := len(b.Sequence)
	_ = o.ins.Publish(ctx, logger, o.publisher, domdispense.StartedEvent{
		OrderID:    b.OrderID,
		Total:      total,
		OccurredAt: time.Now().UTC(),
	})

	for i, id := range b.Sequence {
		productID, _ := b.Grid.ProductAt(id)
		progress := domdispense.ProgressEvent{
			OrderID:    b.OrderID,
			Channel:    id.String(),
			ProductID:  productID,
			Position:   i + 1,
			Total:      total,
			OccurredAt: time.Now().UTC(),
		}
		if o.products != nil {
			if p, err := o.products.Get(productID); err == nil {
				progress.ProductName = p.Name
			}
		}
		_ = o.ins.Publish(ctx, logger, o.publisher, progress)

		rec := o.attempt(ctx, id)
		if rec.Success {
			pid, stock, err := b.Grid.Decrement(ctx, id)
			if err != nil {
				// The unit is out of the machine; only the bookkeeping failed.
				logger.Error("inventory_decrement_failed",
					observability.F("channel", id.String()),
					observability.Err(err),
				)
			} else if b.Provenance == domorder.ProvenanceProduct && o.cart != nil {
				o.cart.Reconcile(ctx, pid, stock)
			}
			report.Succeeded++
			o.units.Add(1, observability.L("outcome", "success"))
		} else {
			report.Failed++
			o.units.Add(1, observability.L("outcome", "failed"))
			logger.Warn("dispense_attempt_failed",
				observability.F("channel", id.String()),
				observability.F("position", i+1),
				observability.F("message", rec.Message),
			)
			_ = o.ins.Publish(ctx, logger, o.publisher, domdispense.FailedEvent{
				OrderID:    b.OrderID,
				Channel:    id.String(),
				Message:    rec.Message,
				OccurredAt: time.Now().UTC(),
			})
		}
		report.Records = append(report.Records, rec)
	}
}

// attempt asks the hardware for one unit. Errors and timeouts become failed records.
func (o *Orchestrator) attempt(ctx context.Context, id dominv.ChannelID) domorder.DispenseRecord {
	unitCtx, cancel := context.WithTimeout(ctx, o.unitTimeout)
	defer cancel()

	start := time.Now()
	res, err := o.dispenser.Dispense(unitCtx, id)

	rec := domorder.DispenseRecord{Slot: id.String(), Success: err == nil && res.Success, Message: res.Message}
	extOutcome := "success"
	switch {
	case errors.Is(err, context.DeadlineExceeded) || (err != nil && unitCtx.Err() != nil):
		extOutcome = "timeout"
		rec.Message = (&domdispense.HardwareFailure{Channel: id.String(), Message: timeoutMessage, Timeout: true}).Error()
	case err != nil:
		extOutcome = "error"
		rec.Message = (&domdispense.HardwareFailure{Channel: id.String(), Message: err.Error()}).Error()
	case !res.Success:
		extOutcome = "failed"
	}
	o.ins.External(dispenserPeer, dispenserEndpoint, extOutcome, start)

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.AddEvent("dispense.attempt", trace.WithAttributes(
			attribute.String("dispense.channel", id.String()),
			attribute.Bool("dispense.success", rec.Success),
		))
	}
	return rec
}

// TestChannel fires one unit outside of any order. The grid is not touched.
func (o *Orchestrator) TestChannel(ctx context.Context, id dominv.ChannelID) (_ domorder.DispenseRecord, err error) {
	logger := logctx.FromOr(ctx, o.ins.Log).With(
		observability.F("use_case", useCaseTestChannel),
		observability.F("channel", id.String()),
	)
	ctx, span := o.ins.Tracer.Start(ctx, application.SpanPrefix+"TestChannel",
		attribute.String("use_case", useCaseTestChannel),
		attribute.String("dispense.channel", id.String()),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	defer func() {
		o.ins.Done(ctx, span, logger, useCaseTestChannel, start, outcome, statusText, err)
	}()

	if o.gridLock != nil {
		release, lerr := o.gridLock(ctx)
		if lerr != nil {
			outcome, statusText = "error", "GRID_LOCK_FAILED"
			return domorder.DispenseRecord{}, fmt.Errorf("dispense: test channel %s: %w", id, lerr)
		}
		defer release()
	}
	if !o.busy.CompareAndSwap(false, true) {
		outcome, statusText = "error", "BUSY"
		return domorder.DispenseRecord{}, domdispense.ErrBusy
	}
	defer o.busy.Store(false)

	rec := o.attempt(ctx, id)
	if !rec.Success {
		statusText = "HARDWARE_FAILED"
	}
	return rec, nil
}

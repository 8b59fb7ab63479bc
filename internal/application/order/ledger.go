package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yuguanpei/vending-machine/internal/application"
	domain "github.com/yuguanpei/vending-machine/internal/domain/order"
	domoutbox "github.com/yuguanpei/vending-machine/internal/domain/outbox"
	"github.com/yuguanpei/vending-machine/internal/observability"
	"github.com/yuguanpei/vending-machine/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
)

const (
	ledgerService        = "order-ledger"
	useCaseUpdateStatus  = "order.update_status"
	useCaseMarkDispensed = "order.mark_dispensed"
)

// UpdateResult tells a caller whether a status update found its order. A miss
// leaves the ledger untouched and is not an error.
type UpdateResult struct {
	Updated bool
	Order   *domain.Order
}

// Ledger is the only writer of order status after creation. Transitions are
// serialized so a timer and a request racing on one order apply in turn.
type Ledger struct {
	repo      domain.Repository
	publisher domoutbox.Publisher
	now       func() time.Time
	ins       application.Instruments

	mu sync.Mutex
}

func NewLedger(repo domain.Repository, publisher domoutbox.Publisher, tel observability.Observability) *Ledger {
	return &Ledger{
		repo:      repo,
		publisher: publisher,
		now:       time.Now,
		ins:       application.NewInstruments(tel, ledgerService),
	}
}

// ListToday returns today's orders, newest first.
func (l *Ledger) ListToday(ctx context.Context) ([]*domain.Order, error) {
	orders, err := l.repo.ListByDay(ctx, l.now())
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	return orders, nil
}

func (l *Ledger) Get(ctx context.Context, id string) (*domain.Order, error) {
	o, err := l.repo.Get(ctx, id)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	return o, nil
}

// FindBySuffix looks up one of today's orders by the trailing digits of its id.
func (l *Ledger) FindBySuffix(ctx context.Context, suffix string) (*domain.Order, error) {
	suffix = strings.TrimSpace(suffix)
	if suffix == "" {
		return nil, newValidation("order number is required")
	}
	orders, err := l.ListToday(ctx)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		if strings.HasSuffix(o.ID, suffix) {
			return o, nil
		}
	}
	return nil, ErrNotFound
}

// UpdateStatus moves an order to the requested status through the state machine.
func (l *Ledger) UpdateStatus(ctx context.Context, id string, status domain.Status) (_ UpdateResult, err error) {
	logger := logctx.FromOr(ctx, l.ins.Log).With(
		observability.F("use_case", useCaseUpdateStatus),
		observability.F("order_id", id),
	)
	ctx, span := l.ins.Tracer.Start(ctx, application.SpanPrefix+"UpdateOrderStatus",
		attribute.String("use_case", useCaseUpdateStatus),
		attribute.String("order.id", id),
		attribute.String("order.status", string(status)),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	defer func() {
		l.ins.Done(ctx, span, logger, useCaseUpdateStatus, start, outcome, statusText, err,
			observability.F("to", string(status)),
		)
	}()

	if _, err = domain.ParseStatus(string(status)); err != nil {
		outcome, statusText = "error", "STATUS_INVALID"
		return UpdateResult{}, err
	}

	res, err := l.transition(ctx, logger, id, func(o *domain.Order) error {
		switch status {
		case domain.StatusPending:
			return o.Resume()
		case domain.StatusPaid:
			return o.MarkPaid()
		case domain.StatusCancel:
			return o.Cancel()
		case domain.StatusTimeout:
			return o.Expire()
		default:
			return o.MarkDispensed(o.Dispenses)
		}
	})
	switch {
	case err != nil && errors.Is(err, domain.ErrInvalidStateTransition):
		outcome, statusText = "error", "INVALID_TRANSITION"
	case err != nil:
		outcome, statusText = "error", "REPO_UPDATE_FAILED"
	case !res.Updated:
		statusText = "LEDGER_MISS"
	}
	return res, err
}

// MarkPaid records a verified payment.
func (l *Ledger) MarkPaid(ctx context.Context, id string) (*domain.Order, error) {
	return l.mustTransition(ctx, id, (*domain.Order).MarkPaid)
}

// Close ends a payment attempt as cancel or timeout. Closing an already closed
// order keeps its first closing status.
func (l *Ledger) Close(ctx context.Context, id string, status domain.Status) (*domain.Order, error) {
	switch status {
	case domain.StatusCancel:
		return l.mustTransition(ctx, id, (*domain.Order).Cancel)
	case domain.StatusTimeout:
		return l.mustTransition(ctx, id, (*domain.Order).Expire)
	default:
		return nil, fmt.Errorf("%w: close with %q", domain.ErrInvalidStatus, status)
	}
}

// Resume reopens a pending, cancelled or timed out order for a new payment attempt.
func (l *Ledger) Resume(ctx context.Context, id string) (*domain.Order, error) {
	return l.mustTransition(ctx, id, (*domain.Order).Resume)
}

// MarkDispensed attaches the batch report and closes the order.
func (l *Ledger) MarkDispensed(ctx context.Context, id string, records []domain.DispenseRecord) (err error) {
	logger := logctx.FromOr(ctx, l.ins.Log).With(
		observability.F("use_case", useCaseMarkDispensed),
		observability.F("order_id", id),
	)
	ctx, span := l.ins.Tracer.Start(ctx, application.SpanPrefix+"MarkDispensed",
		attribute.String("use_case", useCaseMarkDispensed),
		attribute.String("order.id", id),
		attribute.Int("dispense.records", len(records)),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	defer func() {
		l.ins.Done(ctx, span, logger, useCaseMarkDispensed, start, outcome, statusText, err)
	}()

	_, err = l.mustTransition(ctx, id, func(o *domain.Order) error {
		return o.MarkDispensed(records)
	})
	if err != nil {
		outcome, statusText = "error", "TRANSITION_FAILED"
	}
	return err
}

func (l *Ledger) mustTransition(ctx context.Context, id string, apply func(*domain.Order) error) (*domain.Order, error) {
	logger := logctx.FromOr(ctx, l.ins.Log).With(observability.F("order_id", id))
	res, err := l.transition(ctx, logger, id, apply)
	if err != nil {
		return nil, err
	}
	if !res.Updated {
		return nil, ErrNotFound
	}
	return res.Order, nil
}

func (l *Ledger) transition(ctx context.Context, logger observability.Logger, id string, apply func(*domain.Order) error) (UpdateResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, err := l.repo.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Warn("ledger_miss", observability.F("order_id", id))
		return UpdateResult{}, nil
	}
	if err != nil {
		return UpdateResult{}, wrapRepositoryError(err)
	}

	from := o.Status
	if err := apply(o); err != nil {
		return UpdateResult{Order: o}, err
	}
	if o.Status == from && from != domain.StatusPending {
		// Repeated close: nothing to persist or announce. A pending order resumed
		// again still goes through so its payment window restarts.
		return UpdateResult{Updated: true, Order: o}, nil
	}
	if err := l.repo.Update(ctx, o); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn("ledger_miss", observability.F("order_id", id))
			return UpdateResult{}, nil
		}
		return UpdateResult{}, wrapRepositoryError(err)
	}

	_ = l.ins.Publish(ctx, logger, l.publisher, domain.NewOrderStatusChangedEvent(o, from))
	return UpdateResult{Updated: true, Order: o.Clone()}, nil
}

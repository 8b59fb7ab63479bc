package order

import (
	"context"
	"errors"
	"sync"
	"time"

	domain "github.com/yuguanpei/vending-machine/internal/domain/order"
	"github.com/yuguanpei/vending-machine/internal/observability"
)

const DefaultPaymentWindow = 3 * time.Minute

// PaymentWindows runs one countdown per pending order. When a countdown
// elapses the order times out unless it has left pending in the meantime.
type PaymentWindows struct {
	ledger *Ledger
	window time.Duration
	log    observability.Logger

	mu     sync.Mutex
	timers map[string]*countdown
	seq    uint64
}

type countdown struct {
	timer *time.Timer
	seq   uint64
}

func NewPaymentWindows(ledger *Ledger, window time.Duration, tel observability.Observability) *PaymentWindows {
	if window <= 0 {
		window = DefaultPaymentWindow
	}
	if tel == nil {
		tel = observability.Nop()
	}
	return &PaymentWindows{
		ledger: ledger,
		window: window,
		log:    tel.Logger().With(observability.F("service", "payment-window")),
		timers: make(map[string]*countdown),
	}
}

// Open starts (or restarts) the countdown for an order.
func (w *PaymentWindows) Open(orderID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if c, ok := w.timers[orderID]; ok {
		c.timer.Stop()
	}
	w.seq++
	seq := w.seq
	w.timers[orderID] = &countdown{
		timer: time.AfterFunc(w.window, func() { w.expire(orderID, seq) }),
		seq:   seq,
	}
}

// Stop cancels the countdown. Stopping an unknown or already stopped window is a no-op.
func (w *PaymentWindows) Stop(orderID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if c, ok := w.timers[orderID]; ok {
		c.timer.Stop()
		delete(w.timers, orderID)
	}
}

// Active reports whether a countdown is running for the order.
func (w *PaymentWindows) Active(orderID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.timers[orderID]
	return ok
}

// StopAll cancels every countdown; used at shutdown.
func (w *PaymentWindows) StopAll() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for id, c := range w.timers {
		c.timer.Stop()
		delete(w.timers, id)
	}
}

func (w *PaymentWindows) expire(orderID string, seq uint64) {
	w.mu.Lock()
	current, ok := w.timers[orderID]
	if !ok || current.seq != seq {
		// Restarted or stopped after this timer already fired.
		w.mu.Unlock()
		return
	}
	delete(w.timers, orderID)
	w.mu.Unlock()

	logger := w.log.With(observability.F("order_id", orderID))
	_, err := w.ledger.Close(context.Background(), orderID, domain.StatusTimeout)
	switch {
	case err == nil:
		logger.Info("payment_window_expired")
	case errors.Is(err, domain.ErrInvalidStateTransition):
		logger.Debug("payment_window_expired_after_close")
	default:
		logger.Warn("payment_window_expire_failed", observability.Err(err))
	}
}

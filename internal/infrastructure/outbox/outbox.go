package outbox

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	domoutbox "github.com/yuguanpei/vending-machine/internal/domain/outbox"
	"github.com/yuguanpei/vending-machine/internal/observability"
	"github.com/yuguanpei/vending-machine/internal/observability/logctx"
	workerpresentation "github.com/yuguanpei/vending-machine/internal/presentation/worker"

	"go.opentelemetry.io/otel/trace"
)

const (
	componentOutbox    = "outbox"
	defaultQueueSize   = 1024
	defaultConcurrency = 8
	handlerTimeout     = 30 * time.Second
)

var ErrStopped = errors.New("outbox: bus stopped")

// Bus is an in-process event bus. Events are dispatched one at a time in
// publish order; the handlers of one event run concurrently. Nothing is durable.
type Bus struct {
	subsMu sync.RWMutex
	subs   map[string][]domoutbox.Handler

	// mu guards stopped and the queue close; the dispatcher never takes it.
	mu      sync.RWMutex
	queue   chan envelope
	stopped bool

	startOnce   sync.Once
	stopOnce    sync.Once
	done        chan struct{}
	concurrency int
	log         observability.Logger
	tel         observability.Observability
}

var _ domoutbox.Bus = (*Bus)(nil)

type envelope struct {
	event   domoutbox.Event
	traceID trace.TraceID
	spanID  trace.SpanID
}

type Option func(*Bus)

func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queue = make(chan envelope, n)
		}
	}
}

func WithConcurrency(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

func NewBus(tel observability.Observability, opts ...Option) *Bus {
	if tel == nil {
		tel = observability.Nop()
	}
	b := &Bus{
		subs:        make(map[string][]domoutbox.Handler),
		queue:       make(chan envelope, defaultQueueSize),
		done:        make(chan struct{}),
		concurrency: defaultConcurrency,
		log:         tel.Logger().With(observability.F("component", componentOutbox)),
		tel:         tel,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) Subscribe(eventName string, h domoutbox.Handler) {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	b.subs[eventName] = append(b.subs[eventName], h)
}

func (b *Bus) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		go b.dispatchLoop(context.WithoutCancel(ctx))
		logctx.FromOr(ctx, b.log).Info("event_bus_started")
	})
}

// Stop refuses new events, drains the queue and waits for the dispatcher or ctx.
func (b *Bus) Stop(ctx context.Context) {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		b.stopped = true
		close(b.queue)
		b.mu.Unlock()

		select {
		case <-b.done:
		case <-ctx.Done():
			logctx.FromOr(ctx, b.log).Warn("event_bus_drain_aborted", observability.Err(ctx.Err()))
		}
		logctx.FromOr(ctx, b.log).Info("event_bus_stopped")
	})
}

func (b *Bus) Publish(ctx context.Context, e domoutbox.Event) error {
	if e == nil {
		return nil
	}
	sc := trace.SpanContextFromContext(ctx)
	env := envelope{event: e, traceID: sc.TraceID(), spanID: sc.SpanID()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		return ErrStopped
	}

	select {
	case b.queue <- env:
		logctx.FromOr(ctx, b.log).Debug("event_enqueued", observability.F("event", e.EventName()))
		return nil
	case <-ctx.Done():
		logctx.FromOr(ctx, b.log).Warn("event_enqueue_aborted",
			observability.F("event", e.EventName()),
			observability.Err(ctx.Err()),
		)
		return ctx.Err()
	}
}

func (b *Bus) dispatchLoop(ctx context.Context) {
	defer close(b.done)
	for env := range b.queue {
		b.fanout(ctx, env)
	}
}

func (b *Bus) fanout(ctx context.Context, env envelope) {
	name := env.event.EventName()

	b.subsMu.RLock()
	handlers := append([]domoutbox.Handler(nil), b.subs[name]...)
	b.subsMu.RUnlock()

	if len(handlers) == 0 {
		b.log.Debug("event_dropped_no_subscriber", observability.F("event", name))
		return
	}

	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup

	for _, h := range handlers {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			hctx := workerpresentation.WithEventContext(ctx, b.log, b.tel, env.traceID, env.spanID,
				map[string]string{"event": name})
			logger := logctx.FromOr(hctx, b.log)
			defer func() {
				if r := recover(); r != nil {
					logger.Error("event_handler_panic",
						observability.F("panic", r),
						observability.F("stack", string(debug.Stack())),
					)
				}
				<-sem
				wg.Done()
			}()

			hctx, cancel := context.WithTimeout(hctx, handlerTimeout)
			defer cancel()
			if err := h(hctx, env.event); err != nil {
				logger.Warn("event_handler_error", observability.Err(err))
			}
		}()
	}

	wg.Wait()

	b.log.Debug("event_fanned_out",
		observability.F("event", name),
		observability.F("handlers", len(handlers)),
	)
}

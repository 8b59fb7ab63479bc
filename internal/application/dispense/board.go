package dispense

import (
	"context"
	"sync"
	"time"

	domdispense "github.com/yuguanpei/vending-machine/internal/domain/dispense"
	domoutbox "github.com/yuguanpei/vending-machine/internal/domain/outbox"
	"github.com/yuguanpei/vending-machine/internal/observability"
	"github.com/yuguanpei/vending-machine/internal/observability/logctx"
)

const maxNotices = 20

type Progress struct {
	Channel     string `json:"channel"`
	ProductID   int64  `json:"productId"`
	ProductName string `json:"product"`
	Position    int    `json:"position"`
	Total       int    `json:"total"`
}

// Notice is a non-fatal failure the storefront shows as a toast.
type Notice struct {
	OrderID    string    `json:"orderId"`
	Channel    string    `json:"channel"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurredAt"`
}

type Summary struct {
	OrderID    string    `json:"orderId"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	FinishedAt time.Time `json:"finishedAt"`
}

type Status struct {
	Busy    bool      `json:"busy"`
	OrderID string    `json:"orderId,omitempty"`
	Current *Progress `json:"current,omitempty"`
	Notices []Notice  `json:"notices"`
	Last    *Summary  `json:"last,omitempty"`
}

// Board follows the dispense event stream and keeps the view the storefront
// polls while a batch runs.
type Board struct {
	subscriber domoutbox.Subscriber
	log        observability.Logger

	mu     sync.RWMutex
	status Status
}

func NewBoard(subscriber domoutbox.Subscriber, tel observability.Observability) *Board {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Board{
		subscriber: subscriber,
		log:        tel.Logger().With(observability.F("service", "dispense-board")),
		status:     Status{Notices: []Notice{}},
	}
}

func (b *Board) Start() {
	if b.subscriber == nil {
		return
	}
	b.subscriber.Subscribe(domdispense.StartedEvent{}.EventName(), b.handle)
	b.subscriber.Subscribe(domdispense.ProgressEvent{}.EventName(), b.handle)
	b.subscriber.Subscribe(domdispense.FailedEvent{}.EventName(), b.handle)
	b.subscriber.Subscribe(domdispense.CompletedEvent{}.EventName(), b.handle)
}

// Status returns a copy of the current view.
func (b *Board) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := b.status
	s.Notices = append(make([]Notice, 0, len(b.status.Notices)), b.status.Notices...)
	if b.status.Current != nil {
		cur := *b.status.Current
		s.Current = &cur
	}
	if b.status.Last != nil {
		last := *b.status.Last
		s.Last = &last
	}
	return s
}

func (b *Board) handle(ctx context.Context, e domoutbox.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch evt := e.(type) {
	case domdispense.StartedEvent:
		b.status.Busy = true
		b.status.OrderID = evt.OrderID
		b.status.Current = nil
	case domdispense.ProgressEvent:
		// Events fan out concurrently; never move backwards within a batch.
		if b.status.Current != nil && b.status.OrderID == evt.OrderID && b.status.Current.Position > evt.Position {
			return nil
		}
		b.status.Busy = true
		b.status.OrderID = evt.OrderID
		b.status.Current = &Progress{
			Channel:     evt.Channel,
			ProductID:   evt.ProductID,
			ProductName: evt.ProductName,
			Position:    evt.Position,
			Total:       evt.Total,
		}
	case domdispense.FailedEvent:
		b.status.Notices = append(b.status.Notices, Notice{
			OrderID:    evt.OrderID,
			Channel:    evt.Channel,
			Message:    evt.Message,
			OccurredAt: evt.OccurredAt,
		})
		if n := len(b.status.Notices); n > maxNotices {
			b.status.Notices = append([]Notice(nil), b.status.Notices[n-maxNotices:]...)
		}
	case domdispense.CompletedEvent:
		b.status.Busy = false
		b.status.OrderID = ""
		b.status.Current = nil
		b.status.Last = &Summary{
			OrderID:    evt.OrderID,
			Succeeded:  evt.Succeeded,
			Failed:     evt.Failed,
			FinishedAt: evt.OccurredAt,
		}
		logctx.FromOr(ctx, b.log).Info("dispense_batch_completed",
			observability.F("order_id", evt.OrderID),
			observability.F("succeeded", evt.Succeeded),
			observability.F("failed", evt.Failed),
		)
	}
	return nil
}

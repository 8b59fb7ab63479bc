package order

import "time"

// OrderCreatedEvent is emitted once an order is appended to the ledger.
type OrderCreatedEvent struct {
	OrderID    string
	Type       Provenance
	Units      int
	OccurredAt time.Time
}

func (OrderCreatedEvent) EventName() string { return "order.created" }

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:    o.ID,
		Type:       o.Type,
		Units:      o.Units(),
		OccurredAt: time.Now().UTC(),
	}
}

// OrderStatusChangedEvent is emitted after a persisted status transition.
type OrderStatusChangedEvent struct {
	OrderID    string
	Type       Provenance
	From       Status
	To         Status
	OccurredAt time.Time
}

func (OrderStatusChangedEvent) EventName() string { return "order.status_changed" }

func NewOrderStatusChangedEvent(o *Order, from Status) OrderStatusChangedEvent {
	return OrderStatusChangedEvent{
		OrderID:    o.ID,
		Type:       o.Type,
		From:       from,
		To:         o.Status,
		OccurredAt: time.Now().UTC(),
	}
}

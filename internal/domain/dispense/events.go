package dispense

import "time"

// StartedEvent opens a batch; Total is the number of units in the sequence.
type StartedEvent struct {
	OrderID    string
	Total      int
	OccurredAt time.Time
}

func (StartedEvent) EventName() string { return "dispense.started" }

// ProgressEvent is emitted right before the hardware is asked for a unit.
type ProgressEvent struct {
	OrderID     string
	Channel     string
	ProductID   int64
	ProductName string
	Position    int
	Total       int
	OccurredAt  time.Time
}

func (ProgressEvent) EventName() string { return "dispense.progress" }

// FailedEvent surfaces a failed attempt to the storefront as a non-fatal notice.
type FailedEvent struct {
	OrderID    string
	Channel    string
	Message    string
	OccurredAt time.Time
}

func (FailedEvent) EventName() string { return "dispense.failed" }

// CompletedEvent closes a batch.
type CompletedEvent struct {
	OrderID    string
	Succeeded  int
	Failed     int
	OccurredAt time.Time
}

func (CompletedEvent) EventName() string { return "dispense.completed" }

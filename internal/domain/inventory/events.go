package inventory

import "time"

const (
	ChangeReasonDispensed = "dispensed"
	ChangeReasonAdmin     = "admin"
)

// ChannelUpdatedEvent is emitted after a committed grid mutation. Channel is nil
// when the channel (or its whole layer) was removed.
type ChannelUpdatedEvent struct {
	Target     string
	Channel    *Channel
	Reason     string
	OccurredAt time.Time
}

func (ChannelUpdatedEvent) EventName() string { return "inventory.channel_updated" }

func NewChannelUpdatedEvent(target string, ch *Channel, reason string) ChannelUpdatedEvent {
	var copied *Channel
	if ch != nil {
		c := *ch
		copied = &c
	}
	return ChannelUpdatedEvent{
		Target:     target,
		Channel:    copied,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}

package hardware

import (
	"context"
	"time"

	"github.com/yuguanpei/vending-machine/internal/domain/dispense"
	"github.com/yuguanpei/vending-machine/internal/domain/inventory"
)

const simulatedReadings = "0,20,20,20,20,20"

// Simulator reports success for every channel after a fixed delay.
// Channels listed in fail report a failed attempt instead.
type Simulator struct {
	delay time.Duration
	fail  map[string]bool
}

var _ dispense.Dispenser = (*Simulator)(nil)

func NewSimulator(delay time.Duration, failChannels ...string) *Simulator {
	fail := make(map[string]bool, len(failChannels))
	for _, ch := range failChannels {
		fail[ch] = true
	}
	return &Simulator{delay: delay, fail: fail}
}

func (s *Simulator) Dispense(ctx context.Context, channel inventory.ChannelID) (dispense.Outcome, error) {
	if s.delay > 0 {
		t := time.NewTimer(s.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return dispense.Outcome{}, ctx.Err()
		case <-t.C:
		}
	}
	if s.fail[channel.String()] {
		return dispense.Outcome{Success: false, Message: "0,20"}, nil
	}
	return dispense.Outcome{Success: true, Message: simulatedReadings}, nil
}

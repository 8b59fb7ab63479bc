package dispense

import (
	"context"
	"errors"
	"fmt"

	"github.com/yuguanpei/vending-machine/internal/domain/inventory"
)

var (
	ErrBusy            = errors.New("dispense: a batch is already running")
	ErrHardwareFailure = errors.New("dispense: hardware failure")
)

// Outcome is what the physical layer reports for one unit.
type Outcome struct {
	Success bool
	Message string
}

// Dispenser drives the single shared actuator. Dispense blocks until the unit is
// out, the device reports a failure, or ctx expires.
type Dispenser interface {
	Dispense(ctx context.Context, channel inventory.ChannelID) (Outcome, error)
}

// HardwareFailure is a non-fatal failure of one channel attempt.
type HardwareFailure struct {
	Channel string
	Message string
	Timeout bool
}

func (e *HardwareFailure) Error() string {
	if e.Timeout {
		return fmt.Sprintf("dispense: channel %s timed out: %s", e.Channel, e.Message)
	}
	return fmt.Sprintf("dispense: channel %s failed: %s", e.Channel, e.Message)
}

func (e *HardwareFailure) Is(target error) bool { return target == ErrHardwareFailure }

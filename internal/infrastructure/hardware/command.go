// Package hardware drives the vending actuator, either through the vendor's
// command-line driver or a simulator for development machines.
package hardware

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"unicode"

	"github.com/yuguanpei/vending-machine/internal/domain/dispense"
	"github.com/yuguanpei/vending-machine/internal/domain/inventory"
)

// minReadings is the number of sensor readings a completed dispense reports;
// anything shorter means the motor never finished its cycle.
const minReadings = 6

// Command runs the vendor driver once per unit with the channel as its only argument.
type Command struct {
	path string
}

var _ dispense.Dispenser = (*Command)(nil)

func NewCommand(path string) *Command {
	return &Command{path: path}
}

func (c *Command) Dispense(ctx context.Context, channel inventory.ChannelID) (dispense.Outcome, error) {
	if c.path == "" {
		return dispense.Outcome{}, errors.New("hardware: vendor driver path is not configured")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.path, channel.String())
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return dispense.Outcome{}, ctxErr
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return dispense.Outcome{}, fmt.Errorf("hardware: vendor driver: %s", msg)
	}
	// The driver reports motor faults on stderr even when it exits 0.
	if stderr.Len() > 0 {
		return dispense.Outcome{}, fmt.Errorf("hardware: vendor driver: %s", strings.TrimSpace(stderr.String()))
	}

	readings := ParseReadings(stdout.String())
	return dispense.Outcome{
		Success: len(readings) >= minReadings,
		Message: strings.Join(readings, ","),
	}, nil
}

// ParseReadings extracts sensor readings from the driver output. Records are
// separated by ",\r\n" and each one carries its value after the first '.'.
// A record without a numeric value is kept as "NaN" so it still counts.
func ParseReadings(out string) []string {
	records := strings.Split(out, ",\r\n")
	readings := make([]string, 0, len(records))
	for _, rec := range records {
		if strings.TrimSpace(rec) == "" {
			continue
		}
		parts := strings.Split(rec, ".")
		value := "NaN"
		if len(parts) > 1 {
			if n, ok := leadingInt(parts[1]); ok {
				value = strconv.Itoa(n)
			}
		}
		readings = append(readings, value)
	}
	return readings
}

func leadingInt(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	return n, err == nil
}

package hardware

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuguanpei/vending-machine/internal/domain/inventory"
)

func TestParseReadings(t *testing.T) {
	out := "S1.0,\r\nS2.20,\r\nS3.21mm,\r\nS4.x,\r\n,\r\nS5.-3,\r\nS6.19"
	assert.Equal(t, []string{"0", "20", "21", "NaN", "-3", "19"}, ParseReadings(out))

	assert.Empty(t, ParseReadings(""))
	assert.Equal(t, []string{"NaN"}, ParseReadings("garbage"))
}

func TestSimulator(t *testing.T) {
	sim := NewSimulator(0, "B02")

	out, err := sim.Dispense(context.Background(), inventory.MustChannelID("A01"))
	require.NoError(t, err)
	assert.True(t, out.Success)

	out, err = sim.Dispense(context.Background(), inventory.MustChannelID("B02"))
	require.NoError(t, err)
	assert.False(t, out.Success)
}

func TestSimulatorHonoursContext(t *testing.T) {
	sim := NewSimulator(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := sim.Dispense(ctx, inventory.MustChannelID("A01"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func writeDriver(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell driver needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "vendor")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestCommandCountsReadings(t *testing.T) {
	full := writeDriver(t, `printf 'a.0,\r\nb.20,\r\nc.20,\r\nd.20,\r\ne.20,\r\nf.20'`)
	out, err := NewCommand(full).Dispense(context.Background(), inventory.MustChannelID("A01"))
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "0,20,20,20,20,20", out.Message)

	short := writeDriver(t, `printf 'a.0,\r\nb.20'`)
	out, err = NewCommand(short).Dispense(context.Background(), inventory.MustChannelID("A01"))
	require.NoError(t, err)
	assert.False(t, out.Success)
}

func TestCommandPassesChannel(t *testing.T) {
	echo := writeDriver(t, `[ "$1" = "C07" ] || { echo "wrong channel $1" >&2; exit 2; }; printf 'a.1,\r\nb.1,\r\nc.1,\r\nd.1,\r\ne.1,\r\nf.1'`)

	out, err := NewCommand(echo).Dispense(context.Background(), inventory.MustChannelID("C07"))
	require.NoError(t, err)
	assert.True(t, out.Success)

	_, err = NewCommand(echo).Dispense(context.Background(), inventory.MustChannelID("C08"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong channel C08")
}

func TestCommandWithoutPath(t *testing.T) {
	_, err := NewCommand("").Dispense(context.Background(), inventory.MustChannelID("A01"))
	require.Error(t, err)
}

func TestCommandTreatsStderrAsFailure(t *testing.T) {
	noisy := writeDriver(t, `echo "motor stalled" >&2; printf 'a.0,\r\nb.20,\r\nc.20,\r\nd.20,\r\ne.20,\r\nf.20'`)

	_, err := NewCommand(noisy).Dispense(context.Background(), inventory.MustChannelID("A01"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "motor stalled")
}

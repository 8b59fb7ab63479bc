package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "kiosk.log")
	logger, err := New(Options{Service: "vending-machine", Env: "test", Level: "debug", File: path, VID: "vm-9"})
	require.NoError(t, err)

	System(logger).Debug("boot")
	_ = logger.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(strings.Split(string(raw), "\n")[0])

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	assert.Equal(t, "boot", rec["msg"])
	assert.Equal(t, "debug", rec["level"])
	assert.Equal(t, "vm-9", rec["vid"])
	assert.Equal(t, "system", rec["trace_id"])
	assert.Equal(t, "test", rec["env"])
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	require.Error(t, err)
}

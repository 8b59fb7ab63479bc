package id

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuguanpei/vending-machine/internal/domain/order"
)

var idPattern = regexp.MustCompile(`^[0-9a-f]{10}[0-9]{6}$`)

func TestNewOrderIDShape(t *testing.T) {
	at := time.UnixMilli(1_767_225_600_123)
	got, err := NewGenerator().NewOrderID([]order.Item{{ProductID: 1, Quantity: 2}}, "vm-1", at)
	require.NoError(t, err)

	assert.Regexp(t, idPattern, got)
	assert.Equal(t, "600123", got[len(got)-SuffixLen:])
}

func TestNewOrderIDIsDeterministic(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000)
	items := []order.Item{{ProductID: 1, Quantity: 2, Name: "ignored"}}
	g := NewGenerator()

	a, err := g.NewOrderID(items, "vm-1", at)
	require.NoError(t, err)
	b, err := g.NewOrderID([]order.Item{{ProductID: 1, Quantity: 2}}, "vm-1", at)
	require.NoError(t, err)
	assert.Equal(t, a, b, "only product and quantity feed the digest")

	c, err := g.NewOrderID([]order.Item{{ProductID: 1, Quantity: 3}}, "vm-1", at)
	require.NoError(t, err)
	assert.NotEqual(t, a[:10], c[:10])
	assert.Equal(t, a[10:], c[10:])

	d, err := g.NewOrderID(items, "vm-2", at)
	require.NoError(t, err)
	assert.NotEqual(t, a, d)
}

func TestNewOrderIDPadsSmallTimestamps(t *testing.T) {
	got, err := NewGenerator().NewOrderID(nil, "", time.UnixMilli(42))
	require.NoError(t, err)
	assert.Equal(t, "000042", got[10:])
}

package order

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPending(t *testing.T) *Order {
	t.Helper()
	o, err := New("abc123", []Item{
		{ProductID: 1, Name: "Cola", Price: decimal.RequireFromString("2.5"), Quantity: 2},
		{ProductID: 2, Name: "Chips", Price: decimal.RequireFromString("1.25"), Quantity: 1},
	}, ProvenanceCart, "vm-1", time.Now())
	require.NoError(t, err)
	return o
}

func TestNewComputesTotal(t *testing.T) {
	o := newPending(t)

	assert.Equal(t, StatusPending, o.Status)
	assert.True(t, decimal.RequireFromString("6.25").Equal(o.Total))
	assert.Equal(t, 3, o.Units())
	assert.Equal(t, "vm-1", o.Metadata.VID)
}

func TestNewValidates(t *testing.T) {
	_, err := New("x", nil, ProvenanceCart, "", time.Now())
	require.ErrorIs(t, err, ErrNoItems)

	_, err = New("x", []Item{{ProductID: 1, Quantity: 0}}, ProvenanceCart, "", time.Now())
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = New("x", []Item{{ProductID: 1, Quantity: 1}}, Provenance("kiosk"), "", time.Now())
	require.ErrorIs(t, err, ErrInvalidProvenance)
}

func TestHappyPathTransitions(t *testing.T) {
	o := newPending(t)

	require.NoError(t, o.MarkPaid())
	assert.Equal(t, StatusPaid, o.Status)
	assert.False(t, o.Resumable())

	records := []DispenseRecord{{Slot: "A01", Success: true, Message: "ok"}}
	require.NoError(t, o.MarkDispensed(records))
	assert.Equal(t, StatusDispensed, o.Status)
	assert.Equal(t, records, o.Dispenses)
}

func TestDispensedIsTerminal(t *testing.T) {
	o := newPending(t)
	require.NoError(t, o.MarkPaid())
	require.NoError(t, o.MarkDispensed(nil))

	require.ErrorIs(t, o.MarkPaid(), ErrInvalidStateTransition)
	require.ErrorIs(t, o.Cancel(), ErrInvalidStateTransition)
	require.ErrorIs(t, o.Resume(), ErrInvalidStateTransition)
	assert.Equal(t, StatusDispensed, o.Status)
}

func TestPendingCannotBeDispensed(t *testing.T) {
	o := newPending(t)
	require.ErrorIs(t, o.MarkDispensed(nil), ErrInvalidStateTransition)
	assert.Equal(t, StatusPending, o.Status)
}

func TestCloseKeepsFirstStatus(t *testing.T) {
	o := newPending(t)
	require.NoError(t, o.Cancel())
	before := o.UpdatedAt

	require.NoError(t, o.Expire())
	assert.Equal(t, StatusCancel, o.Status)
	assert.Equal(t, before, o.UpdatedAt)
	require.ErrorIs(t, o.MarkPaid(), ErrInvalidStateTransition)
}

func TestResumeReopensClosedOrder(t *testing.T) {
	o := newPending(t)
	require.NoError(t, o.Expire())
	assert.True(t, o.Resumable())

	require.NoError(t, o.Resume())
	assert.Equal(t, StatusPending, o.Status)
	require.NoError(t, o.MarkPaid())
}

func TestCloneDoesNotShareSlices(t *testing.T) {
	o := newPending(t)
	c := o.Clone()
	c.Items[0].Quantity = 9

	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.Nil(t, (*Order)(nil).Clone())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("timeout")
	require.NoError(t, err)
	assert.Equal(t, StatusTimeout, s)

	_, err = ParseStatus("refunded")
	require.ErrorIs(t, err, ErrInvalidStatus)
}

package order

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/yuguanpei/vending-machine/internal/domain/order"
	domoutbox "github.com/yuguanpei/vending-machine/internal/domain/outbox"
	"github.com/yuguanpei/vending-machine/internal/infrastructure/memory"
)

type eventLog struct{ events []domoutbox.Event }

func (l *eventLog) Publish(_ context.Context, e domoutbox.Event) error {
	l.events = append(l.events, e)
	return nil
}

func seedOrder(t *testing.T, repo domain.Repository, id string) *domain.Order {
	t.Helper()
	o, err := domain.New(id, []domain.Item{{ProductID: 1, Name: "Cola", Price: decimal.NewFromInt(2), Quantity: 1}},
		domain.ProvenanceProduct, "vm", time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Insert(context.Background(), o))
	return o
}

func TestUpdateStatusMissIsNotAnError(t *testing.T) {
	l := NewLedger(memory.NewOrderRepository(), nil, nil)

	res, err := l.UpdateStatus(context.Background(), "nope", domain.StatusCancel)
	require.NoError(t, err)
	assert.False(t, res.Updated)
	assert.Nil(t, res.Order)
}

func TestUpdateStatusAppliesStateMachine(t *testing.T) {
	repo := memory.NewOrderRepository()
	events := &eventLog{}
	l := NewLedger(repo, events, nil)
	seedOrder(t, repo, "aaaa000001")
	ctx := context.Background()

	res, err := l.UpdateStatus(ctx, "aaaa000001", domain.StatusCancel)
	require.NoError(t, err)
	assert.True(t, res.Updated)
	assert.Equal(t, domain.StatusCancel, res.Order.Status)

	// A second close keeps the first status and announces nothing.
	res, err = l.UpdateStatus(ctx, "aaaa000001", domain.StatusTimeout)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancel, res.Order.Status)
	require.Len(t, events.events, 1)

	_, err = l.UpdateStatus(ctx, "aaaa000001", domain.StatusPaid)
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	_, err = l.UpdateStatus(ctx, "aaaa000001", domain.Status("refunded"))
	require.ErrorIs(t, err, domain.ErrInvalidStatus)

	stored, err := repo.Get(ctx, "aaaa000001")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancel, stored.Status)
}

func TestResumeRepublishesForPendingOrder(t *testing.T) {
	repo := memory.NewOrderRepository()
	events := &eventLog{}
	l := NewLedger(repo, events, nil)
	seedOrder(t, repo, "bbbb000002")

	o, err := l.Resume(context.Background(), "bbbb000002")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, o.Status)
	require.Len(t, events.events, 1)

	evt, ok := events.events[0].(domain.OrderStatusChangedEvent)
	require.True(t, ok)
	assert.Equal(t, domain.StatusPending, evt.To)
}

func TestMarkPaidThenDispensed(t *testing.T) {
	repo := memory.NewOrderRepository()
	l := NewLedger(repo, nil, nil)
	seedOrder(t, repo, "cccc000003")
	ctx := context.Background()

	_, err := l.MarkPaid(ctx, "cccc000003")
	require.NoError(t, err)

	records := []domain.DispenseRecord{{Slot: "A01", Success: true, Message: "0,20,20,20,20,20"}}
	require.NoError(t, l.MarkDispensed(ctx, "cccc000003", records))

	o, err := l.Get(ctx, "cccc000003")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDispensed, o.Status)
	assert.Equal(t, records, o.Dispenses)

	_, err = l.Resume(ctx, "cccc000003")
	require.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	require.ErrorIs(t, l.MarkDispensed(ctx, "missing", nil), ErrNotFound)
}

func TestFindBySuffix(t *testing.T) {
	repo := memory.NewOrderRepository()
	l := NewLedger(repo, nil, nil)
	seedOrder(t, repo, "dddd123456")
	seedOrder(t, repo, "eeee654321")
	ctx := context.Background()

	o, err := l.FindBySuffix(ctx, "654321")
	require.NoError(t, err)
	assert.Equal(t, "eeee654321", o.ID)

	_, err = l.FindBySuffix(ctx, "000000")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = l.FindBySuffix(ctx, "  ")
	require.ErrorIs(t, err, ErrValidation)

	orders, err := l.ListToday(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "eeee654321", orders[0].ID)
}

func TestCloseRejectsNonClosingStatus(t *testing.T) {
	l := NewLedger(memory.NewOrderRepository(), nil, nil)
	_, err := l.Close(context.Background(), "x", domain.StatusPaid)
	require.ErrorIs(t, err, domain.ErrInvalidStatus)
}

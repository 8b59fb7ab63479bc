package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/yuguanpei/vending-machine/internal/domain/order"
	"github.com/yuguanpei/vending-machine/internal/infrastructure/memory"
)

func statusOf(t *testing.T, l *Ledger, id string) domain.Status {
	t.Helper()
	o, err := l.Get(context.Background(), id)
	require.NoError(t, err)
	return o.Status
}

func TestWindowExpiresPendingOrder(t *testing.T) {
	repo := memory.NewOrderRepository()
	l := NewLedger(repo, nil, nil)
	seedOrder(t, repo, "ffff000001")
	w := NewPaymentWindows(l, 20*time.Millisecond, nil)

	w.Open("ffff000001")
	assert.True(t, w.Active("ffff000001"))

	require.Eventually(t, func() bool {
		return statusOf(t, l, "ffff000001") == domain.StatusTimeout
	}, time.Second, 5*time.Millisecond)
	assert.False(t, w.Active("ffff000001"))
}

func TestWindowStopPreventsTimeout(t *testing.T) {
	repo := memory.NewOrderRepository()
	l := NewLedger(repo, nil, nil)
	seedOrder(t, repo, "ffff000002")
	w := NewPaymentWindows(l, 20*time.Millisecond, nil)

	w.Open("ffff000002")
	w.Stop("ffff000002")
	w.Stop("ffff000002")

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, domain.StatusPending, statusOf(t, l, "ffff000002"))
}

func TestWindowDoesNotOverwritePaid(t *testing.T) {
	repo := memory.NewOrderRepository()
	l := NewLedger(repo, nil, nil)
	seedOrder(t, repo, "ffff000003")
	w := NewPaymentWindows(l, 20*time.Millisecond, nil)

	w.Open("ffff000003")
	_, err := l.MarkPaid(context.Background(), "ffff000003")
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, domain.StatusPaid, statusOf(t, l, "ffff000003"))
	assert.False(t, w.Active("ffff000003"))
}

func TestWindowRestartExtendsDeadline(t *testing.T) {
	repo := memory.NewOrderRepository()
	l := NewLedger(repo, nil, nil)
	seedOrder(t, repo, "ffff000004")
	w := NewPaymentWindows(l, 80*time.Millisecond, nil)

	w.Open("ffff000004")
	time.Sleep(50 * time.Millisecond)
	w.Open("ffff000004")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, domain.StatusPending, statusOf(t, l, "ffff000004"))

	w.StopAll()
	assert.False(t, w.Active("ffff000004"))
}

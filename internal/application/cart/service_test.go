package cart

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domcart "github.com/yuguanpei/vending-machine/internal/domain/cart"
	domcatalog "github.com/yuguanpei/vending-machine/internal/domain/catalog"
)

type stock map[int64]int

func (s stock) StockOf(pid int64) int { return s[pid] }

var catalog = domcatalog.New([]domcatalog.Product{
	{ID: 1, Name: "Cola", Price: decimal.RequireFromString("2.5")},
	{ID: 2, Name: "Chips", Price: decimal.RequireFromString("1")},
})

func TestServiceAddRemove(t *testing.T) {
	svc := NewService(catalog, stock{1: 2, 2: 1}, nil)
	ctx := context.Background()

	v := svc.View()
	assert.NotNil(t, v.Lines)
	assert.Zero(t, v.TotalItems)

	_, err := svc.Add(ctx, 1)
	require.NoError(t, err)
	v, err = svc.Add(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, v.TotalItems)
	assert.True(t, decimal.RequireFromString("5").Equal(v.TotalPrice))

	v, err = svc.Add(ctx, 1)
	require.ErrorIs(t, err, domcart.ErrInsufficientStock)
	assert.Equal(t, 2, v.TotalItems)

	_, err = svc.Add(ctx, 42)
	require.ErrorIs(t, err, domcatalog.ErrUnknownProduct)

	v, err = svc.Remove(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, v.TotalItems)

	_, err = svc.Remove(ctx, 2)
	require.ErrorIs(t, err, domcart.ErrNotInCart)
}

func TestServiceReconcileAndClear(t *testing.T) {
	svc := NewService(catalog, stock{1: 3, 2: 1}, nil)
	ctx := context.Background()
	for range 3 {
		_, err := svc.Add(ctx, 1)
		require.NoError(t, err)
	}
	_, err := svc.Add(ctx, 2)
	require.NoError(t, err)

	svc.Reconcile(ctx, 1, 1)
	svc.Reconcile(ctx, 2, 0)
	lines := svc.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 1, lines[0].Quantity)

	svc.Clear(ctx)
	assert.Empty(t, svc.Lines())
}

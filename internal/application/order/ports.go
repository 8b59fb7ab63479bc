package order

import (
	"context"
	"time"

	domcatalog "github.com/yuguanpei/vending-machine/internal/domain/catalog"
	domain "github.com/yuguanpei/vending-machine/internal/domain/order"
)

type IDGenerator interface {
	NewOrderID(items []domain.Item, vid string, at time.Time) (string, error)
}

// TokenSealer produces the opaque payment token. It is optional: without a
// device secret orders carry no token.
type TokenSealer interface {
	SealOrder(o *domain.Order) (string, error)
}

type ProductLookup interface {
	Get(id int64) (domcatalog.Product, error)
}

type StockReader interface {
	StockOf(productID int64) int
}

// CartClearer empties the storefront cart.
type CartClearer interface {
	Clear(ctx context.Context)
}

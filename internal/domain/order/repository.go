package order

import (
	"context"
	"time"
)

// Repository stores orders partitioned by the calendar day of CreatedAt.
type Repository interface {
	// Insert prepends the order to its day partition; ErrConflict on a duplicate id.
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// Update replaces the stored order with the same id; ErrNotFound when absent.
	Update(ctx context.Context, order *Order) error
	// ListByDay returns the day's orders, most recent first.
	ListByDay(ctx context.Context, day time.Time) ([]*Order, error)
}

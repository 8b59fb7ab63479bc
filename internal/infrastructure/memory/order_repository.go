package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/yuguanpei/vending-machine/internal/domain/order"
)

// OrderRepository keeps day partitions in memory, newest order first.
type OrderRepository struct {
	mu   sync.RWMutex
	days map[string][]*domain.Order
	// index maps an order id to its day partition.
	index map[string]string
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		days:  make(map[string][]*domain.Order),
		index: make(map[string]string),
	}
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[order.ID]; exists {
		return domain.ErrConflict
	}

	day := domain.DayKey(order.CreatedAt)
	r.days[day] = append([]*domain.Order{cloneOrder(order)}, r.days[day]...)
	r.index[order.ID] = day
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	day, ok := r.index[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	for _, o := range r.days[day] {
		if o.ID == id {
			return cloneOrder(o), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	day, ok := r.index[order.ID]
	if !ok {
		return domain.ErrNotFound
	}
	for i, o := range r.days[day] {
		if o.ID == order.ID {
			r.days[day][i] = cloneOrder(order)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *OrderRepository) ListByDay(ctx context.Context, day time.Time) ([]*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.days[domain.DayKey(day)]
	out := make([]*domain.Order, 0, len(stored))
	for _, o := range stored {
		out = append(out, cloneOrder(o))
	}
	return out, nil
}

func cloneOrder(order *domain.Order) *domain.Order {
	if order == nil {
		return nil
	}
	return order.Clone()
}

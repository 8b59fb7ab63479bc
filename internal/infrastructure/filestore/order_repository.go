package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/yuguanpei/vending-machine/internal/domain/order"
)

const ordersDir = "orders"

type OrderRepository struct {
	mu  sync.Mutex
	dir string
}

func NewOrderRepository(dataDir string) *OrderRepository {
	return &OrderRepository{dir: filepath.Join(dataDir, ordersDir)}
}

func (r *OrderRepository) dayPath(day string) string {
	return filepath.Join(r.dir, day+".json")
}

func (r *OrderRepository) readDay(day string) ([]*domain.Order, error) {
	var orders []*domain.Order
	if _, err := readJSON(r.dayPath(day), &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	day := domain.DayKey(order.CreatedAt)
	orders, err := r.readDay(day)
	if err != nil {
		return err
	}
	for _, o := range orders {
		if o.ID == order.ID {
			return domain.ErrConflict
		}
	}
	orders = append([]*domain.Order{order}, orders...)
	return writeJSON(r.dayPath(day), orders)
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	_, o, err := r.find(id)
	return o, err
}

// find scans day partitions newest first; today's file is almost always the hit.
func (r *OrderRepository) find(id string) (string, *domain.Order, error) {
	days, err := r.days()
	if err != nil {
		return "", nil, err
	}
	for _, day := range days {
		orders, err := r.readDay(day)
		if err != nil {
			return "", nil, err
		}
		for _, o := range orders {
			if o.ID == id {
				return day, o, nil
			}
		}
	}
	return "", nil, domain.ErrNotFound
}

func (r *OrderRepository) days() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	days := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		days = append(days, strings.TrimSuffix(name, ".json"))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	return days, nil
}

func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	day := domain.DayKey(order.CreatedAt)
	orders, err := r.readDay(day)
	if err != nil {
		return err
	}
	for i, o := range orders {
		if o.ID == order.ID {
			orders[i] = order
			return writeJSON(r.dayPath(day), orders)
		}
	}
	return domain.ErrNotFound
}

func (r *OrderRepository) ListByDay(ctx context.Context, day time.Time) ([]*domain.Order, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	orders, err := r.readDay(domain.DayKey(day))
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	return orders, nil
}

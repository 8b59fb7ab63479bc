package memory

import (
	"context"
	"sync"

	domain "github.com/yuguanpei/vending-machine/internal/domain/inventory"
)

// GridRepository holds the current grid document in memory.
type GridRepository struct {
	mu   sync.RWMutex
	grid *domain.Grid
}

// NewGridRepository seeds the repository; a nil grid starts empty.
func NewGridRepository(seed *domain.Grid) *GridRepository {
	if seed == nil {
		seed = domain.NewGrid()
	}
	return &GridRepository{grid: seed.Clone()}
}

func (r *GridRepository) Load(ctx context.Context) (*domain.Grid, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.grid.Clone(), nil
}

func (r *GridRepository) Save(ctx context.Context, grid *domain.Grid) error {
	_ = ctx
	if grid == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.grid = grid.Clone()
	return nil
}

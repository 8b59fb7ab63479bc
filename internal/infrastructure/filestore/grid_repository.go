package filestore

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	domain "github.com/yuguanpei/vending-machine/internal/domain/inventory"
)

const slotsFile = "slots.json"

type GridRepository struct {
	mu   sync.Mutex
	path string
}

func NewGridRepository(dataDir string) *GridRepository {
	return &GridRepository{path: filepath.Join(dataDir, slotsFile)}
}

func (r *GridRepository) Load(ctx context.Context) (*domain.Grid, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	layout := domain.Layout{}
	found, err := readJSON(r.path, &layout)
	if err != nil {
		return nil, err
	}
	if !found {
		return domain.NewGrid(), nil
	}
	grid, err := domain.FromLayout(layout)
	if err != nil {
		return nil, fmt.Errorf("filestore: %s: %w", slotsFile, err)
	}
	return grid, nil
}

func (r *GridRepository) Save(ctx context.Context, grid *domain.Grid) error {
	_ = ctx
	if grid == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return writeJSON(r.path, grid.Layout())
}

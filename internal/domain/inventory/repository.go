package inventory

import (
	"context"
)

// Repository persists the single current-state grid document.
type Repository interface {
	Load(ctx context.Context) (*Grid, error)
	Save(ctx context.Context, grid *Grid) error
}

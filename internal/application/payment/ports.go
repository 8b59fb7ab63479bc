package payment

import (
	"context"

	appdispense "github.com/yuguanpei/vending-machine/internal/application/dispense"
	dominv "github.com/yuguanpei/vending-machine/internal/domain/inventory"
	domorder "github.com/yuguanpei/vending-machine/internal/domain/order"
)

type Ledger interface {
	Get(ctx context.Context, id string) (*domorder.Order, error)
	MarkPaid(ctx context.Context, id string) (*domorder.Order, error)
}

// GridTx is exclusive grid access spanning planning and the batch that follows.
type GridTx interface {
	appdispense.GridWriter
	Grid() *dominv.Grid
	Release()
}

type Inventory interface {
	BeginBatch(ctx context.Context) (GridTx, error)
}

// InventoryFunc adapts a function to Inventory.
type InventoryFunc func(ctx context.Context) (GridTx, error)

func (f InventoryFunc) BeginBatch(ctx context.Context) (GridTx, error) { return f(ctx) }

type Dispatcher interface {
	Dispense(ctx context.Context, b appdispense.Batch) (*appdispense.Report, error)
}

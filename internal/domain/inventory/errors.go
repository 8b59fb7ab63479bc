package inventory

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	ErrStructural        = errors.New("inventory: structural violation")
	ErrInvalidChannel    = errors.New("inventory: invalid channel id")
	ErrChannelNotFound   = errors.New("inventory: channel not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity out of range")
	ErrChannelEmpty      = errors.New("inventory: channel is empty")
)

// InsufficientStockError names the first requirement the grid could not satisfy.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// StructuralError rejects a mutation that would leave a gap in the grid or remove
// something other than the highest index.
type StructuralError struct {
	Op     string
	Target string
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("inventory: %s %s: %s", e.Op, e.Target, e.Reason)
}

func (e *StructuralError) Is(target error) bool { return target == ErrStructural }

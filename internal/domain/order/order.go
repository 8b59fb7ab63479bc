package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound               = errors.New("order: not found")
	ErrConflict               = errors.New("order: already exists")
	ErrNoItems                = errors.New("order: at least one item is required")
	ErrInvalidQuantity        = errors.New("order: quantity must be greater than zero")
	ErrInvalidPrice           = errors.New("order: price must be zero or greater")
	ErrInvalidProvenance      = errors.New("order: unknown order type")
	ErrInvalidStatus          = errors.New("order: unknown status")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCancel    Status = "cancel"
	StatusTimeout   Status = "timeout"
	StatusDispensed Status = "dispensed"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusPaid, StatusCancel, StatusTimeout, StatusDispensed:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Provenance records which storefront flow produced the order.
type Provenance string

const (
	ProvenanceCart    Provenance = "cart"
	ProvenanceProduct Provenance = "product"
)

func ParseProvenance(s string) (Provenance, error) {
	switch p := Provenance(s); p {
	case ProvenanceCart, ProvenanceProduct:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidProvenance, s)
}

type Item struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// DispenseRecord is the outcome of one physical dispense attempt.
type DispenseRecord struct {
	Slot    string `json:"slot"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Metadata struct {
	VID string `json:"vid,omitempty"`
}

type Order struct {
	ID        string           `json:"id"`
	Items     []Item           `json:"items"`
	Total     decimal.Decimal  `json:"total"`
	Status    Status           `json:"status"`
	Type      Provenance       `json:"type"`
	Token     string           `json:"token,omitempty"`
	Metadata  Metadata         `json:"metadata"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
	Dispenses []DispenseRecord `json:"dispenses,omitempty"`
}

// New builds a pending order. createdAt is supplied by the caller because the
// order id is derived from it.
func New(id string, items []Item, provenance Provenance, vid string, createdAt time.Time) (*Order, error) {
	if id == "" {
		return nil, errors.New("order: id is required")
	}
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	if _, err := ParseProvenance(string(provenance)); err != nil {
		return nil, err
	}

	total := decimal.Zero
	copied := make([]Item, len(items))
	for i, it := range items {
		if it.Quantity < 1 {
			return nil, fmt.Errorf("%w: product %d", ErrInvalidQuantity, it.ProductID)
		}
		if it.Price.IsNegative() {
			return nil, fmt.Errorf("%w: product %d", ErrInvalidPrice, it.ProductID)
		}
		copied[i] = it
		total = total.Add(it.Subtotal())
	}

	return &Order{
		ID:        id,
		Items:     copied,
		Total:     total,
		Status:    StatusPending,
		Type:      provenance,
		Metadata:  Metadata{VID: vid},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}

// Units is the number of physical units the order asks for.
func (o *Order) Units() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// Resumable reports whether the order may enter a fresh payment cycle.
func (o *Order) Resumable() bool {
	switch o.Status {
	case StatusPending, StatusCancel, StatusTimeout:
		return true
	}
	return false
}

func (o *Order) MarkPaid() error {
	return o.apply(func(s OrderState) (OrderState, error) { return s.OnPaid(o) })
}

func (o *Order) Cancel() error {
	return o.apply(func(s OrderState) (OrderState, error) { return s.OnCancelled(o) })
}

func (o *Order) Expire() error {
	return o.apply(func(s OrderState) (OrderState, error) { return s.OnExpired(o) })
}

func (o *Order) Resume() error {
	return o.apply(func(s OrderState) (OrderState, error) { return s.OnResumed(o) })
}

func (o *Order) MarkDispensed(records []DispenseRecord) error {
	return o.apply(func(s OrderState) (OrderState, error) { return s.OnDispensed(o, records) })
}

func (o *Order) apply(event func(OrderState) (OrderState, error)) error {
	current, err := stateFor(o.Status)
	if err != nil {
		return err
	}
	next, err := event(current)
	if err != nil {
		return fmt.Errorf("%w: from %s", err, o.Status)
	}
	if next.Status() != o.Status {
		o.Status = next.Status()
		o.touch()
	}
	return nil
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = append([]Item(nil), o.Items...)
	if o.Dispenses != nil {
		clone.Dispenses = append([]DispenseRecord{}, o.Dispenses...)
	}
	return &clone
}

// DayKey is the calendar-day partition an order belongs to, in local time.
func DayKey(t time.Time) string {
	return t.Local().Format("20060102")
}

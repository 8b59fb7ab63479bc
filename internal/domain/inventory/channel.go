package inventory

import (
	"fmt"
	"strconv"
)

const (
	MaxLayers          = 6
	MaxColumns         = 10
	MaxChannelQuantity = 10

	firstLayer = 'A'
)

// Channel is one physical dispensing lane. ProductID 0 means unassigned.
type Channel struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

func (c Channel) Assigned() bool { return c.ProductID != 0 }

func (c Channel) validate() error {
	if c.Quantity < 0 || c.Quantity > MaxChannelQuantity {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, c.Quantity)
	}
	if c.ProductID < 0 {
		return fmt.Errorf("inventory: product id must not be negative: %d", c.ProductID)
	}
	return nil
}

// ChannelID addresses a channel as layer letter plus zero-padded column, e.g. "B07".
type ChannelID struct {
	Layer  string
	Column string
}

func (id ChannelID) String() string { return id.Layer + id.Column }

// ParseChannelID accepts "A01".."F10".
func ParseChannelID(s string) (ChannelID, error) {
	if len(s) != 3 {
		return ChannelID{}, fmt.Errorf("%w: %q", ErrInvalidChannel, s)
	}
	id := ChannelID{Layer: s[:1], Column: s[1:]}
	if _, err := layerIndex(id.Layer); err != nil {
		return ChannelID{}, err
	}
	if _, err := columnIndex(id.Column); err != nil {
		return ChannelID{}, err
	}
	return id, nil
}

func MustChannelID(s string) ChannelID {
	id, err := ParseChannelID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// layerIndex maps "A".."F" to 0..5.
func layerIndex(layer string) (int, error) {
	if len(layer) != 1 || layer[0] < firstLayer || layer[0] >= firstLayer+MaxLayers {
		return 0, fmt.Errorf("%w: layer %q", ErrInvalidChannel, layer)
	}
	return int(layer[0] - firstLayer), nil
}

// columnIndex maps "01".."10" to 0..9.
func columnIndex(column string) (int, error) {
	if len(column) != 2 {
		return 0, fmt.Errorf("%w: column %q", ErrInvalidChannel, column)
	}
	n, err := strconv.Atoi(column)
	if err != nil || n < 1 || n > MaxColumns {
		return 0, fmt.Errorf("%w: column %q", ErrInvalidChannel, column)
	}
	return n - 1, nil
}

func layerName(idx int) string { return string(rune(firstLayer + idx)) }

func columnName(idx int) string { return fmt.Sprintf("%02d", idx+1) }

package inventory

import (
	"sort"
)

// Layout is the persisted shape of a grid: layer -> column -> channel.
type Layout map[string]map[string]Channel

// Grid is the channel inventory of one machine. Layers are contiguous from "A",
// columns within a layer are contiguous from "01". The zero value is not usable;
// build grids with NewGrid or FromLayout.
type Grid struct {
	layers map[string]map[string]Channel
}

func NewGrid() *Grid {
	return &Grid{layers: make(map[string]map[string]Channel)}
}

// FromLayout validates a persisted layout and builds a grid from it.
func FromLayout(l Layout) (*Grid, error) {
	g := NewGrid()
	layers := sortedKeys(l)
	for i, layer := range layers {
		idx, err := layerIndex(layer)
		if err != nil {
			return nil, err
		}
		if idx != i {
			return nil, &StructuralError{Op: "load", Target: "layer " + layer, Reason: "layers must be contiguous from A"}
		}
		cols := make(map[string]Channel, len(l[layer]))
		for j, column := range sortedKeys(l[layer]) {
			cidx, err := columnIndex(column)
			if err != nil {
				return nil, err
			}
			if cidx != j {
				return nil, &StructuralError{Op: "load", Target: layer + column, Reason: "columns must be contiguous from 01"}
			}
			ch := l[layer][column]
			if err := ch.validate(); err != nil {
				return nil, err
			}
			cols[column] = ch
		}
		g.layers[layer] = cols
	}
	return g, nil
}

// Layout returns a deep copy suitable for persistence or rendering.
func (g *Grid) Layout() Layout {
	out := make(Layout, len(g.layers))
	for layer, cols := range g.layers {
		c := make(map[string]Channel, len(cols))
		for column, ch := range cols {
			c[column] = ch
		}
		out[layer] = c
	}
	return out
}

func (g *Grid) Clone() *Grid {
	return &Grid{layers: g.Layout()}
}

// Layers returns layer letters in ascending order.
func (g *Grid) Layers() []string { return sortedKeys(g.layers) }

// Columns returns the columns of a layer in ascending order.
func (g *Grid) Columns(layer string) []string { return sortedKeys(g.layers[layer]) }

func (g *Grid) Channel(id ChannelID) (Channel, bool) {
	ch, ok := g.layers[id.Layer][id.Column]
	return ch, ok
}

// StockOf sums the quantity of every channel assigned to productID.
func (g *Grid) StockOf(productID int64) int {
	if productID == 0 {
		return 0
	}
	total := 0
	for _, cols := range g.layers {
		for _, ch := range cols {
			if ch.ProductID == productID {
				total += ch.Quantity
			}
		}
	}
	return total
}

// SetChannel replaces an existing channel, or creates the next column of an existing
// layer, or opens the next layer with column "01". A nil data removes the channel,
// which must then be the highest column of its layer.
func (g *Grid) SetChannel(id ChannelID, data *Channel) error {
	if _, err := ParseChannelID(id.String()); err != nil {
		return err
	}
	if data == nil {
		return g.removeChannel(id)
	}
	if err := data.validate(); err != nil {
		return err
	}

	cols, layerExists := g.layers[id.Layer]
	if !layerExists {
		li, _ := layerIndex(id.Layer)
		if li != len(g.layers) {
			return &StructuralError{Op: "create", Target: "layer " + id.Layer, Reason: "next layer is " + layerName(len(g.layers))}
		}
		if id.Column != columnName(0) {
			return &StructuralError{Op: "create", Target: id.String(), Reason: "a new layer starts at column 01"}
		}
		g.layers[id.Layer] = map[string]Channel{id.Column: *data}
		return nil
	}

	if _, ok := cols[id.Column]; !ok {
		ci, _ := columnIndex(id.Column)
		if ci != len(cols) {
			return &StructuralError{Op: "create", Target: id.String(), Reason: "next column is " + columnName(len(cols))}
		}
	}
	cols[id.Column] = *data
	return nil
}

func (g *Grid) removeChannel(id ChannelID) error {
	cols, ok := g.layers[id.Layer]
	if !ok {
		return ErrChannelNotFound
	}
	if _, ok := cols[id.Column]; !ok {
		return ErrChannelNotFound
	}
	if ci, _ := columnIndex(id.Column); ci != len(cols)-1 {
		return &StructuralError{Op: "remove", Target: id.String(), Reason: "only the highest column can be removed"}
	}
	delete(cols, id.Column)
	return nil
}

// RemoveLayer drops a whole layer; only the highest layer may go.
func (g *Grid) RemoveLayer(layer string) error {
	li, err := layerIndex(layer)
	if err != nil {
		return err
	}
	if _, ok := g.layers[layer]; !ok {
		return ErrChannelNotFound
	}
	if li != len(g.layers)-1 {
		return &StructuralError{Op: "remove", Target: "layer " + layer, Reason: "only the highest layer can be removed"}
	}
	delete(g.layers, layer)
	return nil
}

// Decrement takes one unit out of a channel after a successful dispense.
func (g *Grid) Decrement(id ChannelID) error {
	ch, ok := g.layers[id.Layer][id.Column]
	if !ok {
		return ErrChannelNotFound
	}
	if ch.Quantity <= 0 {
		return ErrChannelEmpty
	}
	ch.Quantity--
	g.layers[id.Layer][id.Column] = ch
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package catalog

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

var ErrUnknownProduct = errors.New("catalog: unknown product")

type Product struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Filename string          `json:"filename,omitempty"`
}

// Catalog is the read-only product list loaded from the device configuration.
type Catalog struct {
	byID map[int64]Product
}

func New(products []Product) *Catalog {
	c := &Catalog{byID: make(map[int64]Product, len(products))}
	for _, p := range products {
		if p.ID == 0 {
			continue
		}
		c.byID[p.ID] = p
	}
	return c
}

func (c *Catalog) Get(id int64) (Product, error) {
	p, ok := c.byID[id]
	if !ok {
		return Product{}, ErrUnknownProduct
	}
	return p, nil
}

// All returns products ordered by id.
func (c *Catalog) All() []Product {
	out := make([]Product, 0, len(c.byID))
	for _, p := range c.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

package cart

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientStock = errors.New("cart: insufficient stock")
	ErrNotInCart         = errors.New("cart: product not in cart")
)

type Line struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Cart is the live shopping cart of the storefront. Lines keep insertion order.
type Cart struct {
	lines []Line
}

// Add puts one more unit of a product in the cart. stock is the product's current
// derived stock; the cart quantity never exceeds it.
func (c *Cart) Add(productID int64, name string, price decimal.Decimal, stock int) error {
	for i := range c.lines {
		if c.lines[i].ProductID != productID {
			continue
		}
		if c.lines[i].Quantity >= stock {
			return ErrInsufficientStock
		}
		c.lines[i].Quantity++
		return nil
	}
	if stock < 1 {
		return ErrInsufficientStock
	}
	c.lines = append(c.lines, Line{ProductID: productID, Name: name, Price: price, Quantity: 1})
	return nil
}

// Remove takes one unit out; the line goes away when it reaches zero.
func (c *Cart) Remove(productID int64) error {
	for i := range c.lines {
		if c.lines[i].ProductID != productID {
			continue
		}
		if c.lines[i].Quantity > 1 {
			c.lines[i].Quantity--
		} else {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
		}
		return nil
	}
	return ErrNotInCart
}

// Reconcile clamps a line to stock, dropping it when stock is zero.
// It reports whether the cart changed.
func (c *Cart) Reconcile(productID int64, stock int) bool {
	for i := range c.lines {
		if c.lines[i].ProductID != productID || c.lines[i].Quantity <= stock {
			continue
		}
		if stock <= 0 {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
		} else {
			c.lines[i].Quantity = stock
		}
		return true
	}
	return false
}

func (c *Cart) Clear() { c.lines = nil }

func (c *Cart) Lines() []Line { return append([]Line(nil), c.lines...) }

func (c *Cart) TotalItems() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

func (c *Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

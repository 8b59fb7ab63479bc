package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	domcart "github.com/yuguanpei/vending-machine/internal/domain/cart"
	domcatalog "github.com/yuguanpei/vending-machine/internal/domain/catalog"
	"github.com/yuguanpei/vending-machine/internal/observability"
	"github.com/yuguanpei/vending-machine/internal/observability/logctx"
)

type ProductLookup interface {
	Get(id int64) (domcatalog.Product, error)
}

type StockReader interface {
	StockOf(productID int64) int
}

type View struct {
	Lines      []domcart.Line  `json:"lines"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// Service guards the single storefront cart.
type Service struct {
	products ProductLookup
	stock    StockReader
	log      observability.Logger

	mu   sync.Mutex
	cart domcart.Cart
}

func NewService(products ProductLookup, stock StockReader, tel observability.Observability) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Service{
		products: products,
		stock:    stock,
		log:      tel.Logger().With(observability.F("service", "cart-service")),
	}
}

func (s *Service) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Service) viewLocked() View {
	lines := s.cart.Lines()
	if lines == nil {
		lines = []domcart.Line{}
	}
	return View{Lines: lines, TotalItems: s.cart.TotalItems(), TotalPrice: s.cart.TotalPrice()}
}

// Add puts one unit of a product in the cart, bounded by its current stock.
func (s *Service) Add(ctx context.Context, productID int64) (View, error) {
	p, err := s.products.Get(productID)
	if err != nil {
		return View{}, fmt.Errorf("%w: %d", err, productID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cart.Add(p.ID, p.Name, p.Price, s.stock.StockOf(p.ID)); err != nil {
		logctx.FromOr(ctx, s.log).Info("cart_add_rejected",
			observability.F("product_id", productID),
			observability.Err(err),
		)
		return s.viewLocked(), err
	}
	return s.viewLocked(), nil
}

// Remove takes one unit of a product out of the cart.
func (s *Service) Remove(ctx context.Context, productID int64) (View, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cart.Remove(productID); err != nil {
		return s.viewLocked(), err
	}
	return s.viewLocked(), nil
}

func (s *Service) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.cart.Lines()) > 0 {
		logctx.FromOr(ctx, s.log).Info("cart_cleared", observability.F("items", s.cart.TotalItems()))
	}
	s.cart.Clear()
}

// Reconcile clamps the cart line of a product to its remaining stock.
func (s *Service) Reconcile(ctx context.Context, productID int64, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cart.Reconcile(productID, stock) {
		logctx.FromOr(ctx, s.log).Info("cart_line_reconciled",
			observability.F("product_id", productID),
			observability.F("stock", stock),
		)
	}
}

// Lines returns the order lines for a cart checkout.
func (s *Service) Lines() []domcart.Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Lines()
}

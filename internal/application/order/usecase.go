package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yuguanpei/vending-machine/internal/application"
	domcatalog "github.com/yuguanpei/vending-machine/internal/domain/catalog"
	dominv "github.com/yuguanpei/vending-machine/internal/domain/inventory"
	domain "github.com/yuguanpei/vending-machine/internal/domain/order"
	domoutbox "github.com/yuguanpei/vending-machine/internal/domain/outbox"
	"github.com/yuguanpei/vending-machine/internal/observability"
	"github.com/yuguanpei/vending-machine/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderService       = "order-service"
	useCaseOrderCreate = "order.create"
)

var (
	ErrConflict   = domain.ErrConflict
	ErrNotFound   = domain.ErrNotFound
	ErrRepository = errors.New("order: repository failure")
	ErrValidation = errors.New("order: validation failed")
)

// CreateOrderUseCase prices the requested lines from the catalog, derives the
// order id and appends a pending order to today's ledger.
type CreateOrderUseCase struct {
	repo        domain.Repository
	idGenerator IDGenerator
	sealer      TokenSealer
	products    ProductLookup
	stock       StockReader
	publisher   domoutbox.Publisher
	vid         string
	now         func() time.Time
	ins         application.Instruments
}

var _ application.UseCase[CreateOrderInput, *CreateOrderResult] = (*CreateOrderUseCase)(nil)

type CreateOption func(*CreateOrderUseCase)

// WithTokenSealer attaches a payment token to every new order.
func WithTokenSealer(s TokenSealer) CreateOption {
	return func(uc *CreateOrderUseCase) { uc.sealer = s }
}

func WithClock(now func() time.Time) CreateOption {
	return func(uc *CreateOrderUseCase) {
		if now != nil {
			uc.now = now
		}
	}
}

func NewCreateOrderUseCase(
	repo domain.Repository,
	idGen IDGenerator,
	products ProductLookup,
	stock StockReader,
	publisher domoutbox.Publisher,
	vid string,
	tel observability.Observability,
	opts ...CreateOption,
) *CreateOrderUseCase {
	uc := &CreateOrderUseCase{
		repo:        repo,
		idGenerator: idGen,
		products:    products,
		stock:       stock,
		publisher:   publisher,
		vid:         vid,
		now:         time.Now,
		ins:         application.NewInstruments(tel, orderService),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

type LineInput struct {
	ProductID int64
	Quantity  int
}

type CreateOrderInput struct {
	Type  string
	Items []LineInput
}

type CreateOrderResult struct {
	Order *domain.Order
}

// Execute performs the order creation flow.
func (uc *CreateOrderUseCase) Execute(ctx context.Context, cmd CreateOrderInput) (_ *CreateOrderResult, err error) {
	logger := logctx.FromOr(ctx, uc.ins.Log).With(observability.F("use_case", useCaseOrderCreate))

	var orderID string

	ctx, span := uc.ins.Tracer.Start(ctx, application.SpanPrefix+"CreateOrder",
		attribute.String("use_case", useCaseOrderCreate),
		attribute.String("order.type", cmd.Type),
		attribute.Int("order.lines", len(cmd.Items)),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		var extra []observability.Field
		if orderID != "" {
			extra = append(extra, observability.F("order_id", orderID))
		}
		uc.ins.Done(ctx, span, logger, useCaseOrderCreate, start, outcome, statusText, err, extra...)
	}()

	provenance, err := domain.ParseProvenance(cmd.Type)
	if err != nil {
		outcome, statusText = "error", "TYPE_INVALID"
		return nil, err
	}
	if len(cmd.Items) == 0 {
		outcome, statusText = "error", "ITEMS_REQUIRED"
		return nil, domain.ErrNoItems
	}
	if provenance == domain.ProvenanceProduct && len(cmd.Items) != 1 {
		outcome, statusText = "error", "ITEMS_INVALID"
		return nil, newValidation("a product order carries exactly one line")
	}

	items := make([]domain.Item, 0, len(cmd.Items))
	for _, line := range cmd.Items {
		if line.Quantity < 1 {
			outcome, statusText = "error", "QUANTITY_INVALID"
			return nil, fmt.Errorf("%w: product %d", domain.ErrInvalidQuantity, line.ProductID)
		}
		p, perr := uc.products.Get(line.ProductID)
		if perr != nil {
			outcome, statusText = "error", "PRODUCT_UNKNOWN"
			return nil, fmt.Errorf("%w: %d", domcatalog.ErrUnknownProduct, line.ProductID)
		}
		if uc.stock != nil {
			if available := uc.stock.StockOf(line.ProductID); available < line.Quantity {
				outcome, statusText = "error", "INSUFFICIENT_STOCK"
				return nil, &dominv.InsufficientStockError{ProductID: line.ProductID, Requested: line.Quantity, Available: available}
			}
		}
		items = append(items, domain.Item{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  line.Quantity,
		})
	}
	if err := ctx.Err(); err != nil {
		outcome, statusText = "error", "CONTEXT_CANCELED"
		return nil, err
	}

	createdAt := uc.now()
	orderID, err = uc.idGenerator.NewOrderID(items, uc.vid, createdAt)
	if err != nil {
		outcome, statusText = "error", "ID_DERIVATION_FAILED"
		return nil, err
	}
	entity, err := domain.New(orderID, items, provenance, uc.vid, createdAt)
	if err != nil {
		outcome, statusText = "error", "DOMAIN_CONSTRUCTION_FAILED"
		return nil, fmt.Errorf("order: construct: %w", err)
	}

	if uc.sealer != nil {
		token, serr := uc.sealer.SealOrder(entity)
		if serr != nil {
			outcome, statusText = "error", "TOKEN_SEAL_FAILED"
			return nil, fmt.Errorf("order: seal token: %w", serr)
		}
		entity.Token = token
	}

	if err = uc.repo.Insert(ctx, entity); err != nil {
		outcome, statusText = "error", "REPO_INSERT_FAILED"
		return nil, wrapRepositoryError(err)
	}

	if perr := uc.ins.Publish(ctx, logger, uc.publisher, domain.NewOrderCreatedEvent(entity)); perr != nil {
		span.RecordError(perr)
		statusText = "EVENT_PUBLISH_FAILED"
	}

	span.SetAttributes(attribute.String("order.status", string(entity.Status)))
	span.AddEvent("order.created",
		trace.WithAttributes(
			attribute.String("order.id", orderID),
		),
	)

	return &CreateOrderResult{Order: entity.Clone()}, nil
}

func wrapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, domain.ErrConflict):
		return ErrConflict
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}

func newValidation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

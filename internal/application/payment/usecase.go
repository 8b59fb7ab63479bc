package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yuguanpei/vending-machine/internal/application"
	appdispense "github.com/yuguanpei/vending-machine/internal/application/dispense"
	dominv "github.com/yuguanpei/vending-machine/internal/domain/inventory"
	domorder "github.com/yuguanpei/vending-machine/internal/domain/order"
	dompay "github.com/yuguanpei/vending-machine/internal/domain/payment"
	"github.com/yuguanpei/vending-machine/internal/observability"
	"github.com/yuguanpei/vending-machine/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	paymentService      = "payment-gate"
	useCaseVerify       = "payment.verify"
	verifierPeer        = "totp"
	verifierEndpoint    = "verify"
	messageVerified     = "payment verified, dispensing"
	messageInvalidCode  = "invalid verification code"
	messageNotPayable   = "order is not awaiting payment"
	messageNoSecret     = "payment verification is not configured"
	messageInsufficient = "not enough stock to fulfil the order"
)

var ErrValidation = errors.New("payment: validation failed")

type VerifyPaymentInput struct {
	OrderID string
	Code    string
}

// VerifyPaymentResult is returned for every verification attempt that reached
// the order; only Success triggers dispensing.
type VerifyPaymentResult struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Reason  dompay.FailureReason `json:"reason,omitempty"`
	Units   int                  `json:"units,omitempty"`
}

// VerifyPaymentUseCase checks the proof code of a pending order and, on success,
// hands the paid order to the dispenser.
type VerifyPaymentUseCase struct {
	ledger     Ledger
	verifier   dompay.Verifier
	inventory  Inventory
	dispatcher Dispatcher
	runner     application.Runner
	now        func() time.Time
	ins        application.Instruments
	checks     observability.Counter // payment_verifications_total{result}
}

var _ application.UseCase[VerifyPaymentInput, *VerifyPaymentResult] = (*VerifyPaymentUseCase)(nil)

func NewVerifyPaymentUseCase(
	ledger Ledger,
	verifier dompay.Verifier,
	inventory Inventory,
	dispatcher Dispatcher,
	runner application.Runner,
	tel observability.Observability,
) *VerifyPaymentUseCase {
	if runner == nil {
		runner = application.InlineRunner{}
	}
	if tel == nil {
		tel = observability.Nop()
	}
	return &VerifyPaymentUseCase{
		ledger:     ledger,
		verifier:   verifier,
		inventory:  inventory,
		dispatcher: dispatcher,
		runner:     runner,
		now:        time.Now,
		ins:        application.NewInstruments(tel, paymentService),
		checks:     tel.Metrics().Counter(observability.MPaymentVerifications),
	}
}

func (uc *VerifyPaymentUseCase) Execute(ctx context.Context, cmd VerifyPaymentInput) (_ *VerifyPaymentResult, err error) {
	logger := logctx.FromOr(ctx, uc.ins.Log).With(
		observability.F("use_case", useCaseVerify),
		observability.F("order_id", cmd.OrderID),
	)
	ctx, span := uc.ins.Tracer.Start(ctx, application.SpanPrefix+"VerifyPayment",
		attribute.String("use_case", useCaseVerify),
		attribute.String("order.id", cmd.OrderID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	defer func() {
		uc.ins.Done(ctx, span, logger, useCaseVerify, start, outcome, statusText, err)
	}()

	code := strings.TrimSpace(cmd.Code)
	if cmd.OrderID == "" {
		outcome, statusText = "error", "ORDER_ID_REQUIRED"
		return nil, fmt.Errorf("%w: order id is required", ErrValidation)
	}
	if code == "" {
		outcome, statusText = "error", "CODE_REQUIRED"
		return nil, fmt.Errorf("%w: code is required", ErrValidation)
	}

	o, err := uc.ledger.Get(ctx, cmd.OrderID)
	if err != nil {
		outcome, statusText = "error", "ORDER_LOAD_FAILED"
		return nil, err
	}
	if o.Status != domorder.StatusPending {
		outcome, statusText = "rejected", "NOT_PAYABLE"
		return &VerifyPaymentResult{Message: messageNotPayable, Reason: dompay.ReasonNotPayable}, nil
	}

	verifyStart := time.Now()
	valid, verr := uc.verifier.Verify(o.ID, code, uc.now())
	switch {
	case errors.Is(verr, dompay.ErrNoSecret):
		uc.ins.External(verifierPeer, verifierEndpoint, "error", verifyStart)
		uc.checks.Add(1, observability.L("result", "no_secret"))
		outcome, statusText = "rejected", "NO_SECRET"
		logger.Warn("payment_secret_missing")
		return &VerifyPaymentResult{Message: messageNoSecret, Reason: dompay.ReasonInvalidCode}, nil
	case verr != nil || !valid:
		uc.ins.External(verifierPeer, verifierEndpoint, "rejected", verifyStart)
		uc.checks.Add(1, observability.L("result", "invalid"))
		outcome, statusText = "rejected", "INVALID_CODE"
		return &VerifyPaymentResult{Message: messageInvalidCode, Reason: dompay.ReasonInvalidCode}, nil
	}
	uc.ins.External(verifierPeer, verifierEndpoint, "success", verifyStart)
	uc.checks.Add(1, observability.L("result", "valid"))

	paid, err := uc.ledger.MarkPaid(ctx, o.ID)
	if errors.Is(err, domorder.ErrInvalidStateTransition) {
		// Closed or paid by a concurrent request between load and verify.
		err = nil
		outcome, statusText = "rejected", "NOT_PAYABLE"
		return &VerifyPaymentResult{Message: messageNotPayable, Reason: dompay.ReasonNotPayable}, nil
	}
	if err != nil {
		outcome, statusText = "error", "MARK_PAID_FAILED"
		return nil, err
	}
	span.AddEvent("order.paid", trace.WithAttributes(attribute.String("order.id", paid.ID)))

	tx, err := uc.inventory.BeginBatch(ctx)
	if err != nil {
		outcome, statusText = "error", "INVENTORY_UNAVAILABLE"
		return nil, err
	}

	sequence, err := dominv.Plan(tx.Grid(), requirements(paid))
	if err != nil {
		tx.Release()
		var short *dominv.InsufficientStockError
		if errors.As(err, &short) {
			err = nil
			outcome, statusText = "rejected", "INSUFFICIENT_STOCK"
			logger.Warn("allocation_failed",
				observability.F("product_id", short.ProductID),
				observability.F("requested", short.Requested),
				observability.F("available", short.Available),
			)
			return &VerifyPaymentResult{
				Message: fmt.Sprintf("%s: product %d", messageInsufficient, short.ProductID),
				Reason:  dompay.ReasonInsufficientStock,
			}, nil
		}
		outcome, statusText = "error", "PLAN_FAILED"
		return nil, err
	}

	batch := appdispense.Batch{
		OrderID:    paid.ID,
		Provenance: paid.Type,
		Sequence:   sequence,
		Grid:       tx,
	}
	uc.runner.Go(ctx, func(ctx context.Context) {
		defer tx.Release()
		ctx = logctx.WithFields(ctx, uc.ins.Log, observability.F("trigger", useCaseVerify))
		if _, derr := uc.dispatcher.Dispense(ctx, batch); derr != nil {
			logctx.FromOr(ctx, uc.ins.Log).Error("dispense_batch_failed",
				observability.F("order_id", batch.OrderID),
				observability.Err(derr),
			)
		}
	})

	span.SetAttributes(attribute.Int("dispense.units", len(sequence)))
	return &VerifyPaymentResult{Success: true, Message: messageVerified, Units: len(sequence)}, nil
}

func requirements(o *domorder.Order) []dominv.Requirement {
	reqs := make([]dominv.Requirement, 0, len(o.Items))
	for _, it := range o.Items {
		reqs = append(reqs, dominv.Requirement{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return reqs
}

package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/yuguanpei/vending-machine/internal/application"
	dominv "github.com/yuguanpei/vending-machine/internal/domain/inventory"
	"github.com/yuguanpei/vending-machine/internal/observability"
	"github.com/yuguanpei/vending-machine/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseSetChannel  = "inventory.set_channel"
	useCaseRemoveLayer = "inventory.remove_layer"
)

type SetChannelInput struct {
	Channel string
	// Remove drops the channel; ProductID and Quantity are ignored.
	Remove    bool
	ProductID int64
	Quantity  int
}

type SetChannelResult struct {
	Channel string
	Layout  dominv.Layout
}

// SetChannelUseCase is the operator path for editing one channel of the grid.
type SetChannelUseCase struct {
	svc *Service
	ins application.Instruments
}

var _ application.UseCase[SetChannelInput, *SetChannelResult] = (*SetChannelUseCase)(nil)

func NewSetChannelUseCase(svc *Service, tel observability.Observability) *SetChannelUseCase {
	return &SetChannelUseCase{svc: svc, ins: application.NewInstruments(tel, inventoryService)}
}

func (uc *SetChannelUseCase) Execute(ctx context.Context, cmd SetChannelInput) (_ *SetChannelResult, err error) {
	logger := logctx.FromOr(ctx, uc.ins.Log).With(
		observability.F("use_case", useCaseSetChannel),
		observability.F("channel", cmd.Channel),
	)
	ctx, span := uc.ins.Tracer.Start(ctx, application.SpanPrefix+"SetChannel",
		attribute.String("use_case", useCaseSetChannel),
		attribute.String("inventory.channel", cmd.Channel),
		attribute.Bool("inventory.remove", cmd.Remove),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	defer func() {
		uc.ins.Done(ctx, span, logger, useCaseSetChannel, start, outcome, statusText, err)
	}()

	id, err := dominv.ParseChannelID(cmd.Channel)
	if err != nil {
		outcome, statusText = "error", "CHANNEL_INVALID"
		return nil, err
	}

	var data *dominv.Channel
	if !cmd.Remove {
		data = &dominv.Channel{ProductID: cmd.ProductID, Quantity: cmd.Quantity}
	}

	tx, err := uc.svc.Begin(ctx)
	if err != nil {
		outcome, statusText = "error", "WRITER_UNAVAILABLE"
		return nil, err
	}
	defer tx.Release()

	if err = tx.SetChannel(ctx, id, data); err != nil {
		outcome, statusText = "error", classify(err)
		return nil, err
	}
	if cmd.Remove {
		statusText = "REMOVED"
	}

	return &SetChannelResult{Channel: id.String(), Layout: tx.Grid().Layout()}, nil
}

type RemoveLayerInput struct {
	Layer string
}

type RemoveLayerUseCase struct {
	svc *Service
	ins application.Instruments
}

var _ application.UseCase[RemoveLayerInput, dominv.Layout] = (*RemoveLayerUseCase)(nil)

func NewRemoveLayerUseCase(svc *Service, tel observability.Observability) *RemoveLayerUseCase {
	return &RemoveLayerUseCase{svc: svc, ins: application.NewInstruments(tel, inventoryService)}
}

func (uc *RemoveLayerUseCase) Execute(ctx context.Context, cmd RemoveLayerInput) (_ dominv.Layout, err error) {
	logger := logctx.FromOr(ctx, uc.ins.Log).With(
		observability.F("use_case", useCaseRemoveLayer),
		observability.F("layer", cmd.Layer),
	)
	ctx, span := uc.ins.Tracer.Start(ctx, application.SpanPrefix+"RemoveLayer",
		attribute.String("use_case", useCaseRemoveLayer),
		attribute.String("inventory.layer", cmd.Layer),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	defer func() {
		uc.ins.Done(ctx, span, logger, useCaseRemoveLayer, start, outcome, statusText, err)
	}()

	tx, err := uc.svc.Begin(ctx)
	if err != nil {
		outcome, statusText = "error", "WRITER_UNAVAILABLE"
		return nil, err
	}
	defer tx.Release()

	if err = tx.RemoveLayer(ctx, cmd.Layer); err != nil {
		outcome, statusText = "error", classify(err)
		return nil, err
	}
	return tx.Grid().Layout(), nil
}

func classify(err error) string {
	switch {
	case errors.Is(err, dominv.ErrStructural):
		return "STRUCTURAL_ERROR"
	case errors.Is(err, dominv.ErrInvalidChannel):
		return "CHANNEL_INVALID"
	case errors.Is(err, dominv.ErrChannelNotFound):
		return "CHANNEL_NOT_FOUND"
	case errors.Is(err, dominv.ErrInvalidQuantity):
		return "QUANTITY_INVALID"
	case errors.Is(err, ErrRepository):
		return "REPO_SAVE_FAILED"
	default:
		return "UNEXPECTED_ERROR"
	}
}

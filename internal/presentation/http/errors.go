package httppresentation

import (
	"context"
	"errors"
	"net/http"

	apporder "github.com/yuguanpei/vending-machine/internal/application/order"
	apppayment "github.com/yuguanpei/vending-machine/internal/application/payment"
	domcart "github.com/yuguanpei/vending-machine/internal/domain/cart"
	domcatalog "github.com/yuguanpei/vending-machine/internal/domain/catalog"
	domdispense "github.com/yuguanpei/vending-machine/internal/domain/dispense"
	dominv "github.com/yuguanpei/vending-machine/internal/domain/inventory"
	domorder "github.com/yuguanpei/vending-machine/internal/domain/order"
)

var (
	errBadRequest        = errors.New("malformed request")
	errAdminDisabled     = errors.New("admin password is not configured")
	errAdminUnauthorized = errors.New("admin password required")
)

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, dominv.ErrChannelNotFound),
		errors.Is(err, domcatalog.ErrUnknownProduct),
		errors.Is(err, domcart.ErrNotInCart):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, errBadRequest),
		errors.Is(err, apporder.ErrValidation),
		errors.Is(err, apppayment.ErrValidation),
		errors.Is(err, domorder.ErrNoItems),
		errors.Is(err, domorder.ErrInvalidQuantity),
		errors.Is(err, domorder.ErrInvalidPrice),
		errors.Is(err, domorder.ErrInvalidProvenance),
		errors.Is(err, domorder.ErrInvalidStatus),
		errors.Is(err, dominv.ErrInvalidChannel),
		errors.Is(err, dominv.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, dominv.ErrInsufficientStock),
		errors.Is(err, domcart.ErrInsufficientStock),
		errors.Is(err, dominv.ErrStructural),
		errors.Is(err, dominv.ErrChannelEmpty),
		errors.Is(err, domorder.ErrInvalidStateTransition),
		errors.Is(err, domorder.ErrConflict),
		errors.Is(err, domdispense.ErrBusy):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

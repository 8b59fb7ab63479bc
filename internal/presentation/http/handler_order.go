package httppresentation

import (
	"net/http"

	apporder "github.com/yuguanpei/vending-machine/internal/application/order"
	apppayment "github.com/yuguanpei/vending-machine/internal/application/payment"
	domorder "github.com/yuguanpei/vending-machine/internal/domain/order"
)

type createOrderRequest struct {
	Type      string `json:"type"`
	ProductID int64  `json:"productId,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
}

type orderResponse struct {
	*domorder.Order
	PaymentURL string `json:"paymentUrl,omitempty"`
	Resumable  bool   `json:"resumable"`
}

func (h *Handler) orderView(o *domorder.Order) orderResponse {
	resp := orderResponse{Order: o, Resumable: o.Resumable()}
	if h.deps.Device != nil && o.Status == domorder.StatusPending {
		resp.PaymentURL = h.deps.Device.PaymentURL(o.Token)
	}
	return resp
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r.Context(), w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	input := apporder.CreateOrderInput{Type: req.Type}
	switch domorder.Provenance(req.Type) {
	case domorder.ProvenanceCart:
		for _, line := range h.deps.Cart.Lines() {
			input.Items = append(input.Items, apporder.LineInput{ProductID: line.ProductID, Quantity: line.Quantity})
		}
	case domorder.ProvenanceProduct:
		input.Items = []apporder.LineInput{{ProductID: req.ProductID, Quantity: req.Quantity}}
	}

	res, err := h.deps.CreateOrder.Execute(r.Context(), input)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.orderView(res.Order))
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.deps.Ledger.ListToday(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) handleLookupOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.deps.Ledger.FindBySuffix(r.Context(), r.PathValue("suffix"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.orderView(o))
}

type verifyRequest struct {
	Code string `json:"code"`
}

func (h *Handler) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r.Context(), w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	res, err := h.deps.Verify.Execute(r.Context(), apppayment.VerifyPaymentInput{
		OrderID: r.PathValue("id"),
		Code:    req.Code,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleCloseOrder(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r.Context(), w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	status, err := domorder.ParseStatus(req.Status)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	o, err := h.deps.Ledger.Close(r.Context(), r.PathValue("id"), status)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.orderView(o))
}

func (h *Handler) handleResumeOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.deps.Ledger.Resume(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.orderView(o))
}

type updateStatusResponse struct {
	Updated bool            `json:"updated"`
	Order   *domorder.Order `json:"order,omitempty"`
}

func (h *Handler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r.Context(), w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	res, err := h.deps.Ledger.UpdateStatus(r.Context(), r.PathValue("id"), domorder.Status(req.Status))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	// A miss is reported through Updated, not as an error: the ledger is left as it was.
	writeJSON(w, http.StatusOK, updateStatusResponse{Updated: res.Updated, Order: res.Order})
}


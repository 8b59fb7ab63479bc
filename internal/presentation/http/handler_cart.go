package httppresentation

import "net/http"

type addCartItemRequest struct {
	ProductID int64 `json:"productId"`
}

func (h *Handler) handleGetCart(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Cart.View())
}

func (h *Handler) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if err := decodeJSON(r.Context(), w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	view, err := h.deps.Cart.Add(r.Context(), req.ProductID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	productID, err := pathInt64(r, "productId")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	view, err := h.deps.Cart.Remove(r.Context(), productID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	h.deps.Cart.Clear(r.Context())
	writeJSON(w, http.StatusOK, h.deps.Cart.View())
}

package httppresentation

import (
	"net/http"

	"github.com/shopspring/decimal"

	appinventory "github.com/yuguanpei/vending-machine/internal/application/inventory"
	dominv "github.com/yuguanpei/vending-machine/internal/domain/inventory"
)

type productResponse struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Filename string          `json:"filename,omitempty"`
	Stock    int             `json:"stock"`
}

func (h *Handler) handleListProducts(w http.ResponseWriter, _ *http.Request) {
	products := h.deps.Catalog.All()
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, productResponse{
			ID:       p.ID,
			Name:     p.Name,
			Price:    p.Price,
			Filename: p.Filename,
			Stock:    h.deps.Inventory.StockOf(p.ID),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleInventory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Inventory.Snapshot().Layout())
}

type stockResponse struct {
	ProductID int64 `json:"productId"`
	Stock     int   `json:"stock"`
}

func (h *Handler) handleStockOf(w http.ResponseWriter, r *http.Request) {
	productID, err := pathInt64(r, "productId")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stockResponse{ProductID: productID, Stock: h.deps.Inventory.StockOf(productID)})
}

type putChannelRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

func (h *Handler) handlePutChannel(w http.ResponseWriter, r *http.Request) {
	var req putChannelRequest
	if err := decodeJSON(r.Context(), w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	res, err := h.deps.SetChannel.Execute(r.Context(), appinventory.SetChannelInput{
		Channel:   r.PathValue("channel"),
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Layout)
}

func (h *Handler) handleDeleteChannel(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.SetChannel.Execute(r.Context(), appinventory.SetChannelInput{
		Channel: r.PathValue("channel"),
		Remove:  true,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Layout)
}

func (h *Handler) handleDeleteLayer(w http.ResponseWriter, r *http.Request) {
	layout, err := h.deps.RemoveLayer.Execute(r.Context(), appinventory.RemoveLayerInput{Layer: r.PathValue("layer")})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, layout)
}

func (h *Handler) handleTestChannel(w http.ResponseWriter, r *http.Request) {
	id, err := dominv.ParseChannelID(r.PathValue("channel"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	rec, err := h.deps.Orchestrator.TestChannel(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleDispenseStatus(w http.ResponseWriter, _ *http.Request) {
	status := h.deps.Board.Status()
	status.Busy = status.Busy || h.deps.Orchestrator.Busy()
	writeJSON(w, http.StatusOK, status)
}

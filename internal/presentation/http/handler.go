package httppresentation

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	appcart "github.com/yuguanpei/vending-machine/internal/application/cart"
	appdispense "github.com/yuguanpei/vending-machine/internal/application/dispense"
	appinventory "github.com/yuguanpei/vending-machine/internal/application/inventory"
	apporder "github.com/yuguanpei/vending-machine/internal/application/order"
	apppayment "github.com/yuguanpei/vending-machine/internal/application/payment"
	domcatalog "github.com/yuguanpei/vending-machine/internal/domain/catalog"
	"github.com/yuguanpei/vending-machine/internal/observability"
	"github.com/yuguanpei/vending-machine/internal/observability/logctx"
)

const (
	componentHTTPHandler = "http_server"
	headerAdminPassword  = "X-Admin-Password"
	tracerName           = "vending-machine.http"
	maxBodyBytes         = 1 << 20
)

// Device is the part of the device configuration the HTTP surface needs.
type Device interface {
	AdminPassword() string
	PaymentURL(token string) string
}

// Dependencies lists everything the routes call into.
type Dependencies struct {
	Catalog      *domcatalog.Catalog
	Inventory    *appinventory.Service
	SetChannel   *appinventory.SetChannelUseCase
	RemoveLayer  *appinventory.RemoveLayerUseCase
	Cart         *appcart.Service
	CreateOrder  *apporder.CreateOrderUseCase
	Ledger       *apporder.Ledger
	Verify       *apppayment.VerifyPaymentUseCase
	Orchestrator *appdispense.Orchestrator
	Board        *appdispense.Board
	Device       Device
	// Metrics serves the Prometheus exposition; nil disables /metrics.
	Metrics http.Handler
}

type Handler struct {
	deps Dependencies
	log  observability.Logger

	reqCounter   observability.Counter   // http_requests_total{method,route,status}
	durHistogram observability.Histogram // http_request_duration_seconds{method,route,status}
}

func NewHandler(deps Dependencies, tel observability.Observability) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		deps:         deps,
		log:          tel.Logger().With(observability.F("component", componentHTTPHandler)),
		reqCounter:   tel.Metrics().Counter(observability.MHTTPRequests),
		durHistogram: tel.Metrics().Histogram(observability.MHTTPRequestDuration),
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// Trace → request logger → HTTP metrics → access log → handler
	h.muxHandle(mux, "GET /health", h.handleHealth)
	if h.deps.Metrics != nil {
		mux.Handle("GET /metrics", h.deps.Metrics)
	}

	h.muxHandle(mux, "GET /products", h.handleListProducts)
	h.muxHandle(mux, "GET /inventory", h.handleInventory)
	h.muxHandle(mux, "GET /inventory/stock/{productId}", h.handleStockOf)

	h.muxHandle(mux, "PUT /admin/channels/{channel}", h.admin(h.handlePutChannel))
	h.muxHandle(mux, "DELETE /admin/channels/{channel}", h.admin(h.handleDeleteChannel))
	h.muxHandle(mux, "DELETE /admin/layers/{layer}", h.admin(h.handleDeleteLayer))
	h.muxHandle(mux, "POST /admin/channels/{channel}/test", h.admin(h.handleTestChannel))

	h.muxHandle(mux, "GET /cart", h.handleGetCart)
	h.muxHandle(mux, "POST /cart/items", h.handleAddCartItem)
	h.muxHandle(mux, "DELETE /cart/items/{productId}", h.handleRemoveCartItem)
	h.muxHandle(mux, "DELETE /cart", h.handleClearCart)

	h.muxHandle(mux, "POST /orders", h.handleCreateOrder)
	h.muxHandle(mux, "GET /orders", h.handleListOrders)
	h.muxHandle(mux, "GET /orders/lookup/{suffix}", h.handleLookupOrder)
	h.muxHandle(mux, "POST /orders/{id}/verify", h.handleVerifyPayment)
	h.muxHandle(mux, "POST /orders/{id}/close", h.handleCloseOrder)
	h.muxHandle(mux, "POST /orders/{id}/resume", h.handleResumeOrder)
	h.muxHandle(mux, "PUT /orders/{id}/status", h.admin(h.handleUpdateOrderStatus))

	h.muxHandle(mux, "GET /dispense/status", h.handleDispenseStatus)

	return mux
}

func (h *Handler) muxHandle(mux *http.ServeMux, pattern string, handler http.HandlerFunc) {
	wrapped := h.withTrace(pattern,
		ObservabilityMiddleware(h.log)(
			h.withHTTPMetrics(pattern,
				h.withAccessLog(pattern, handler),
			),
		),
	)
	mux.Handle(pattern, wrapped)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// admin guards operator routes with the device password.
func (h *Handler) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		want := ""
		if h.deps.Device != nil {
			want = h.deps.Device.AdminPassword()
		}
		if want == "" {
			writeError(w, http.StatusForbidden, errAdminDisabled)
			return
		}
		got := r.Header.Get(headerAdminPassword)
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			logctx.FromOr(r.Context(), h.log).Warn("admin_auth_failed",
				observability.F("path", r.URL.Path),
			)
			writeError(w, http.StatusUnauthorized, errAdminUnauthorized)
			return
		}
		next(w, r)
	}
}

// withAccessLog writes a single access log after the handler completes.
func (h *Handler) withAccessLog(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", route),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using W3C propagation.
func (h *Handler) withTrace(route string, next http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		ctx, span := tracer.Start(parentCtx, route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) withHTTPMetrics(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		labels := []observability.Label{
			observability.L("method", r.Method),
			observability.L("route", route),
			observability.L("status", strconv.Itoa(lrw.status)),
		}
		h.reqCounter.Add(1, labels...)
		h.durHistogram.Observe(time.Since(start).Seconds(), labels...)
	})
}

func decodeJSON(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) error {
	_ = ctx
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func pathInt64(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || v <= 0 {
		return 0, errors.Join(errBadRequest, errors.New(name+" must be a positive integer"))
	}
	return v, nil
}

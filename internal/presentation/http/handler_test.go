package httppresentation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuguanpei/vending-machine/internal/application"
	appcart "github.com/yuguanpei/vending-machine/internal/application/cart"
	appdispense "github.com/yuguanpei/vending-machine/internal/application/dispense"
	appinventory "github.com/yuguanpei/vending-machine/internal/application/inventory"
	apporder "github.com/yuguanpei/vending-machine/internal/application/order"
	apppayment "github.com/yuguanpei/vending-machine/internal/application/payment"
	domcatalog "github.com/yuguanpei/vending-machine/internal/domain/catalog"
	dominv "github.com/yuguanpei/vending-machine/internal/domain/inventory"
	domorder "github.com/yuguanpei/vending-machine/internal/domain/order"
	"github.com/yuguanpei/vending-machine/internal/infrastructure/deviceconfig"
	"github.com/yuguanpei/vending-machine/internal/infrastructure/hardware"
	"github.com/yuguanpei/vending-machine/internal/infrastructure/id"
	"github.com/yuguanpei/vending-machine/internal/infrastructure/memory"
	"github.com/yuguanpei/vending-machine/internal/infrastructure/totp"
)

const testSecret = "secret"

type testServer struct {
	*httptest.Server
	orders *memory.OrderRepository
	ledger *apporder.Ledger
}

func newTestServer(t *testing.T, password string) *testServer {
	t.Helper()
	ctx := context.Background()

	device := &deviceconfig.Device{
		VID:      "vm-1",
		Secret:   testSecret,
		Password: deviceconfig.Password(password),
		Base:     "https://pay.example/p",
		Products: []deviceconfig.Product{
			{ID: 1, Name: "Cola", Price: decimal.RequireFromString("2.5")},
			{ID: 2, Name: "Chips", Price: decimal.RequireFromString("1")},
		},
	}
	catalog := device.Catalog()

	grid, err := dominv.FromLayout(dominv.Layout{
		"A": {"01": {ProductID: 1, Quantity: 2}, "02": {ProductID: 2, Quantity: 1}},
	})
	require.NoError(t, err)
	inventory, err := appinventory.NewService(ctx, memory.NewGridRepository(grid), nil, nil)
	require.NoError(t, err)

	orders := memory.NewOrderRepository()
	ledger := apporder.NewLedger(orders, nil, nil)
	cart := appcart.NewService(catalog, inventory, nil)
	orchestrator := appdispense.NewOrchestrator(hardware.NewSimulator(0), ledger, cart, catalog, nil, nil)

	verify := apppayment.NewVerifyPaymentUseCase(ledger, totp.NewVerifier(testSecret),
		apppayment.InventoryFunc(func(ctx context.Context) (apppayment.GridTx, error) {
			tx, err := inventory.Begin(ctx)
			if err != nil {
				return nil, err
			}
			return tx, nil
		}),
		orchestrator, application.InlineRunner{}, nil)

	h := NewHandler(Dependencies{
		Catalog:      catalog,
		Inventory:    inventory,
		SetChannel:   appinventory.NewSetChannelUseCase(inventory, nil),
		RemoveLayer:  appinventory.NewRemoveLayerUseCase(inventory, nil),
		Cart:         cart,
		CreateOrder:  apporder.NewCreateOrderUseCase(orders, id.NewGenerator(), catalog, inventory, nil, device.VID, nil),
		Ledger:       ledger,
		Verify:       verify,
		Orchestrator: orchestrator,
		Board:        appdispense.NewBoard(nil, nil),
		Device:       device,
	}, nil)

	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, orders: orders, ledger: ledger}
}

func (s *testServer) do(t *testing.T, method, path string, body any, header ...string) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (s *testServer) list(t *testing.T, path string) []map[string]any {
	t.Helper()
	resp, err := s.Client().Get(s.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestProductsCarryStock(t *testing.T) {
	s := newTestServer(t, "")

	products := s.list(t, "/products")
	require.Len(t, products, 2)
	assert.Equal(t, "Cola", products[0]["name"])
	assert.EqualValues(t, 2, products[0]["stock"])

	resp, body := s.do(t, http.MethodGet, "/inventory/stock/2", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["stock"])

	resp, _ = s.do(t, http.MethodGet, "/inventory/stock/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t, "")

	resp, _ := s.do(t, http.MethodGet, "/health", nil, "X-Request-ID", "req-42")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "req-42", resp.Header.Get("X-Request-ID"))

	resp, _ = s.do(t, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestCartCheckoutAndPayment(t *testing.T) {
	s := newTestServer(t, "")

	resp, body := s.do(t, http.MethodPost, "/cart/items", map[string]any{"productId": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["totalItems"])
	s.do(t, http.MethodPost, "/cart/items", map[string]any{"productId": 1})
	resp, _ = s.do(t, http.MethodPost, "/cart/items", map[string]any{"productId": 1})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "cart is bounded by stock")

	resp, body = s.do(t, http.MethodPost, "/orders", map[string]any{"type": "cart"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	orderID := body["id"].(string)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "5", body["total"])
	assert.Contains(t, body["paymentUrl"], "https://pay.example/p?vid=vm-1&token=")
	assert.Equal(t, true, body["resumable"])

	resp, body = s.do(t, http.MethodPost, "/orders/"+orderID+"/verify", map[string]any{"code": "000000"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "invalid_code", body["reason"])

	code, err := totp.Code(testSecret, orderID, time.Now())
	require.NoError(t, err)
	resp, body = s.do(t, http.MethodPost, "/orders/"+orderID+"/verify", map[string]any{"code": code})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["success"], body)
	assert.EqualValues(t, 2, body["units"])

	o, err := s.ledger.Get(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusDispensed, o.Status)

	_, cart := s.do(t, http.MethodGet, "/cart", nil)
	assert.EqualValues(t, 0, cart["totalItems"])

	products := s.list(t, "/products")
	assert.EqualValues(t, 0, products[0]["stock"])

	resp, body = s.do(t, http.MethodGet, "/orders/lookup/"+orderID[len(orderID)-id.SuffixLen:], nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, orderID, body["id"])
	assert.Equal(t, false, body["resumable"])
	assert.Nil(t, body["paymentUrl"])
}

func TestProductOrderValidation(t *testing.T) {
	s := newTestServer(t, "")

	resp, _ := s.do(t, http.MethodPost, "/orders", map[string]any{"type": "product", "productId": 2, "quantity": 2})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/orders", map[string]any{"type": "product", "productId": 9, "quantity": 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/orders", map[string]any{"type": "vending"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/orders", map[string]any{"type": "cart"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "empty cart")

	resp, _ = s.do(t, http.MethodPost, "/orders", map[string]any{"type": "product", "unknown": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCloseAndResume(t *testing.T) {
	s := newTestServer(t, "")

	_, body := s.do(t, http.MethodPost, "/orders", map[string]any{"type": "product", "productId": 1, "quantity": 1})
	orderID := body["id"].(string)

	resp, body := s.do(t, http.MethodPost, "/orders/"+orderID+"/close", map[string]any{"status": "cancel"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancel", body["status"])

	resp, _ = s.do(t, http.MethodPost, "/orders/"+orderID+"/close", map[string]any{"status": "paid"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, "/orders/"+orderID+"/resume", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pending", body["status"])

	resp, _ = s.do(t, http.MethodPost, "/orders/missing/resume", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	orders := s.list(t, "/orders")
	require.Len(t, orders, 1)
}

func TestAdminRoutesNeedPassword(t *testing.T) {
	disabled := newTestServer(t, "")
	resp, _ := disabled.do(t, http.MethodPut, "/admin/channels/A03", map[string]any{"productId": 2, "quantity": 5})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	s := newTestServer(t, "1234")
	resp, _ = s.do(t, http.MethodPut, "/admin/channels/A03", map[string]any{"productId": 2, "quantity": 5}, headerAdminPassword, "nope")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := s.do(t, http.MethodPut, "/admin/channels/A03", map[string]any{"productId": 2, "quantity": 5}, headerAdminPassword, "1234")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["A"], "03")

	resp, _ = s.do(t, http.MethodPut, "/admin/channels/A05", map[string]any{"productId": 2, "quantity": 5}, headerAdminPassword, "1234")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPut, "/admin/channels/A04", map[string]any{"productId": 2, "quantity": 11}, headerAdminPassword, "1234")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodDelete, "/admin/channels/A01", nil, headerAdminPassword, "1234")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = s.do(t, http.MethodDelete, "/admin/channels/A03", nil, headerAdminPassword, "1234")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, "/admin/channels/A01/test", nil, headerAdminPassword, "1234")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "A01", body["slot"])

	resp, _ = s.do(t, http.MethodDelete, "/admin/layers/A", nil, headerAdminPassword, "1234")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, s.list(t, "/products")[0]["stock"])
}

func TestUpdateStatusMissIsReported(t *testing.T) {
	s := newTestServer(t, "pw")

	resp, body := s.do(t, http.MethodPut, "/orders/ghost/status", map[string]any{"status": "cancel"}, headerAdminPassword, "pw")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["updated"])
	assert.Nil(t, body["order"])
}

func TestDispenseStatus(t *testing.T) {
	s := newTestServer(t, "")

	resp, body := s.do(t, http.MethodGet, "/dispense/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["busy"])
	assert.NotNil(t, body["notices"])
}

func TestWriteDomainErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domorder.ErrNotFound, http.StatusNotFound},
		{&dominv.InsufficientStockError{ProductID: 1}, http.StatusConflict},
		{dominv.ErrStructural, http.StatusConflict},
		{domcatalog.ErrUnknownProduct, http.StatusNotFound},
		{apporder.ErrValidation, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeDomainError(rec, tc.err)
		assert.Equal(t, tc.want, rec.Code, tc.err.Error())
	}
}

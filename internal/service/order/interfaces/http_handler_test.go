package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"demoshop/internal/service/order/application"
	"demoshop/internal/service/order/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

// stubReader 实现展示路径的只读库存口
type stubReader struct {
	stock       map[string]int
	invalidated int
}

func (r *stubReader) GetQuantity(_ context.Context, productID string) int {
	return r.stock[productID]
}

func (r *stubReader) GetQuantities(_ context.Context, productIDs []string) map[string]int {
	out := make(map[string]int, len(productIDs))
	for _, id := range productIDs {
		out[id] = r.stock[id]
	}
	return out
}

func (r *stubReader) Invalidate() { r.invalidated++ }

func newOrderTestServer(t *testing.T, repo *memOrderRepo, stock map[string]int) *httptest.Server {
	t.Helper()
	server, _ := newOrderTestServerWithReader(t, repo, stock)
	return server
}

func newOrderTestServerWithReader(t *testing.T, repo *memOrderRepo, stock map[string]int) (*httptest.Server, *stubReader) {
	t.Helper()
	appSvc := application.NewOrderApplicationService(
		repo, &stubInventory{stock: stock}, noopGuard{},
		time.Second, "CashOnDelivery",
		noop.NewTracerProvider().Tracer("test"),
	)
	reader := &stubReader{stock: stock}
	handler := NewOrderHTTPHandler(appSvc, reader, noop.NewTracerProvider().Tracer("test"))
	mux := http.NewServeMux()
	handler.Register(mux)
	return httptest.NewServer(mux), reader
}

func fulfillOrder(t *testing.T, repo *memOrderRepo, stock map[string]int, eventKey string) {
	t.Helper()
	appSvc := application.NewOrderApplicationService(
		repo, &stubInventory{stock: stock}, noopGuard{},
		time.Second, "CashOnDelivery",
		noop.NewTracerProvider().Tracer("test"),
	)
	err := appSvc.HandleCheckoutEvent(context.Background(), &domain.CheckoutEvent{
		EventID: eventKey,
		UserID:  testUserID,
		Items:   []domain.CheckoutEventItem{{ProductID: "p1", Quantity: 1}},
	}, eventKey)
	require.NoError(t, err)
}

func TestOrderHTTP_GetByID(t *testing.T) {
	repo := newMemOrderRepo()
	fulfillOrder(t, repo, map[string]int{"p1": 5}, "evt-1")
	server := newOrderTestServer(t, repo, map[string]int{"p1": 5})
	defer server.Close()

	orderID := repo.orders["evt-1"].ID

	resp, err := http.Get(server.URL + "/orders/get?id=" + orderID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body orderDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, orderID, body.ID)
	assert.Equal(t, string(domain.StateCompleted), body.State)
	assert.Equal(t, "CashOnDelivery", body.PaymentMethod)
}

func TestOrderHTTP_GetByID_NotFound(t *testing.T) {
	server := newOrderTestServer(t, newMemOrderRepo(), map[string]int{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/orders/get?id=ghost")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOrderHTTP_GetByID_MissingParam(t *testing.T) {
	server := newOrderTestServer(t, newMemOrderRepo(), map[string]int{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/orders/get")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOrderHTTP_Availability(t *testing.T) {
	server, _ := newOrderTestServerWithReader(t, newMemOrderRepo(), map[string]int{"p1": 7, "p2": 3})
	defer server.Close()

	resp, err := http.Get(server.URL + "/orders/availability?productId=p1&productId=p2&productId=ghost")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var items []availabilityItem
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	assert.Equal(t, []availabilityItem{
		{ProductID: "p1", Quantity: 7},
		{ProductID: "p2", Quantity: 3},
		{ProductID: "ghost", Quantity: 0},
	}, items)
}

func TestOrderHTTP_Availability_MissingParam(t *testing.T) {
	server := newOrderTestServer(t, newMemOrderRepo(), map[string]int{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/orders/availability")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOrderHTTP_Availability_FreshBypassesCache(t *testing.T) {
	server, reader := newOrderTestServerWithReader(t, newMemOrderRepo(), map[string]int{"p1": 7})
	defer server.Close()

	resp, err := http.Get(server.URL + "/orders/availability?productId=p1&fresh=true")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, reader.invalidated)
}

func TestOrderHTTP_CollectionRejectsPost(t *testing.T) {
	server := newOrderTestServer(t, newMemOrderRepo(), map[string]int{})
	defer server.Close()

	resp, err := http.Post(server.URL+"/orders", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, "orders are only created through the queue")
}

package upstream_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pasarlokal/backend-pasar/internal/common"
	"github.com/pasarlokal/backend-pasar/internal/resilience"
	"github.com/pasarlokal/backend-pasar/internal/upstream"
)

func newClient(srv *httptest.Server) *upstream.Client {
	return &upstream.Client{
		BaseURL: srv.URL,
		Reads:   resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 1},
		Writes:  resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 1},
	}
}

func TestGetProductUnwrapsTwoLevels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/products/p1", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"success","data":{"data":{"_id":"p1","name":"Kaos","price":80}}}`))
	}))
	defer srv.Close()

	p, err := newClient(srv).GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, "p1", p.ID)
	require.Equal(t, "Kaos", p.Name)
	require.Equal(t, "80", p.Price.String())
}

func TestGetProductNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newClient(srv).GetProduct(context.Background(), "missing")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestCreateOrderUnwrapsThreeLevels(t *testing.T) {
	var received upstream.OrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"status":"success","data":{"data":{"data":{"_id":"ord-42"}}}}`))
	}))
	defer srv.Close()

	req := upstream.OrderRequest{
		Products:    []string{"p1"},
		TotalAmount: json.Number("65.00"),
		User:        "u1",
		Status:      upstream.StatusPending,
		Location:    upstream.PointAt(-6.2, 106.8),
		Address:     "Jl. Merdeka 1",
	}
	id, err := newClient(srv).CreateOrder(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "ord-42", id)
	require.Equal(t, [2]float64{106.8, -6.2}, received.Location.Coordinates)
	require.Equal(t, "pending", received.Status)
}

func TestUpstreamErrorCarriesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"status":"fail","message":"store is closed"}`))
	}))
	defer srv.Close()

	err := newClient(srv).CreateOrderItem(context.Background(), upstream.OrderItemRequest{})
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "store is closed", appErr.Message)
	require.Equal(t, "UPSTREAM", appErr.Code)
}

func TestUpdateOrderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/api/v1/orders/ord-42", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "cancelled", body["status"])
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	require.NoError(t, newClient(srv).UpdateOrderStatus(context.Background(), "ord-42", upstream.StatusCancelled))
}

package cart_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/pasarlokal/backend-pasar/internal/cart"
	"github.com/pasarlokal/backend-pasar/internal/catalog"
	"github.com/pasarlokal/backend-pasar/internal/common"
)

type staticProducts struct {
	byID map[string]*catalog.Product
}

func (s staticProducts) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	p, ok := s.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return p, nil
}

func asUser(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(common.WithUserID(r.Context(), userID)))
		})
	}
}

func newRouter(t *testing.T) chi.Router {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var burger catalog.Product
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"p1","name":"Burger","price":50}`), &burger))

	svc := &cart.Service{
		Store:    &cart.Store{RDB: client},
		Products: staticProducts{byID: map[string]*catalog.Product{"p1": &burger}},
	}
	handler := cart.NewHandler(cart.HandlerConfig{Service: svc})

	r := chi.NewRouter()
	r.Route("/api/v1/cart", func(c chi.Router) {
		c.Use(asUser("u1"))
		c.Get("/", handler.Get)
		c.Delete("/", handler.Clear)
		c.Post("/items", handler.AddItem)
		c.Patch("/items/{lineId}", handler.UpdateItem)
		c.Delete("/items/{lineId}", handler.RemoveItem)
	})
	return r
}

func TestCartEndpoints(t *testing.T) {
	r := newRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"productId":"p1","quantity":2}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data cart.View `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Len(t, created.Data.Lines, 1)
	require.Equal(t, "100.00", created.Data.Total)
	lineID := created.Data.Lines[0].ID

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/"+lineID, strings.NewReader(`{"quantity":3}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"total":"150.00"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/"+lineID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/"+lineID, nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddItemValidation(t *testing.T) {
	r := newRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"quantity":1}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "VALIDATION")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"productId":"ghost"}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "PRODUCT_NOT_FOUND")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`not json`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartRequiresUser(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	handler := cart.NewHandler(cart.HandlerConfig{Service: &cart.Service{
		Store:    &cart.Store{RDB: client},
		Products: staticProducts{},
	}})

	rec := httptest.NewRecorder()
	handler.Get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

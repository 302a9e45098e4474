package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pasarlokal/backend-pasar/internal/common"
	"github.com/pasarlokal/backend-pasar/internal/geo"
)

// Handler exposes public catalog endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Products handles GET /api/v1/products with an optional search filter.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// ProductDetail handles GET /api/v1/products/{id}.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// ProductsNearby handles GET /api/v1/products/nearby?lat=..&lng=..
func (h *Handler) ProductsNearby(w http.ResponseWriter, r *http.Request) {
	origin, ok := parseOrigin(w, r)
	if !ok {
		return
	}
	items, err := h.service.ProductsNearby(r.Context(), origin)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// ServicesNearby handles GET /api/v1/services/nearby?lat=..&lng=..
func (h *Handler) ServicesNearby(w http.ResponseWriter, r *http.Request) {
	origin, ok := parseOrigin(w, r)
	if !ok {
		return
	}
	items, err := h.service.ServicesNearby(r.Context(), origin)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// Geocode handles GET /api/v1/geocode?q=..
func (h *Handler) Geocode(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "query parameter q is required", nil)
		return
	}
	loc, err := h.service.Geocode(r.Context(), query)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": loc})
}

func parseOrigin(w http.ResponseWriter, r *http.Request) (geo.Point, bool) {
	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if latErr != nil || lngErr != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "lat and lng query parameters are required", nil)
		return geo.Point{}, false
	}
	return geo.Point{Lat: lat, Lng: lng}, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, common.ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
		return
	}
	if common.WriteAppError(w, err) {
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}

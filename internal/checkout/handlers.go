package checkout

import (
	"encoding/json"
	"net/http"

	validator "github.com/go-playground/validator/v10"

	"github.com/pasarlokal/backend-pasar/internal/common"
)

// Handler exposes POST /api/v1/checkout.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service  *Service
	Validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	v := cfg.Validate
	if v == nil {
		v = validator.New()
	}
	return &Handler{service: cfg.Service, validate: v}
}

// Checkout handles POST /api/v1/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid checkout payload", map[string]any{"reason": err.Error()})
		return
	}

	out, err := h.service.Checkout(r.Context(), userID, in)
	if err != nil {
		if common.WriteAppError(w, err) {
			return
		}
		common.JSONError(w, http.StatusBadGateway, "UPSTREAM", "order submission failed", nil)
		return
	}

	status := http.StatusCreated
	if out.Compensating {
		status = http.StatusBadGateway
	}
	common.JSON(w, status, map[string]any{"data": out})
}

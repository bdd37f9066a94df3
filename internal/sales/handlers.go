package sales

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/kuropos/backend-pos/internal/cart"
	"github.com/kuropos/backend-pos/internal/common"
)

// Handler exposes the commit endpoint.
type Handler struct {
	Svc      *Service
	Registry *cart.Registry
	Validate *validator.Validate
}

type commitRequest struct {
	CartID  string        `json:"cartId" validate:"required"`
	Payment commitPayment `json:"payment" validate:"required"`
}

type commitPayment struct {
	Mode           Mode    `json:"mode" validate:"required,oneof=cash credit"`
	ReceivedAmount int64   `json:"receivedAmount"`
	CustomerID     *string `json:"customerId"`
}

// Commit handles POST /api/v1/sales. The cart is cleared only after the
// commit fully succeeds; a mid-sequence persistence failure leaves the
// cart intact so the operator can retry.
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Registry == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "sales service not configured", nil)
		return
	}
	operatorID, ok := common.OperatorID(r.Context())
	if !ok || operatorID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var payload commitRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid JSON body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.WriteError(w, common.ValidationError(err.Error()))
			return
		}
	}
	c, found := h.Registry.Get(payload.CartID)
	if !found {
		common.WriteError(w, common.NotFoundError("cart not found"))
		return
	}

	out, err := h.Svc.Commit(r.Context(), operatorID, Input{
		Lines: c.Lines(),
		Payment: Payment{
			Mode:           payload.Payment.Mode,
			ReceivedAmount: payload.Payment.ReceivedAmount,
			CustomerID:     payload.Payment.CustomerID,
		},
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	c.Clear()
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}

// Get handles GET /api/v1/sales/{saleID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "sales service not configured", nil)
		return
	}
	receipt, err := h.Svc.GetSale(r.Context(), chi.URLParam(r, "saleID"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": receipt})
}

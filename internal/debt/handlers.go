package debt

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/kuropos/backend-pos/internal/common"
	"github.com/kuropos/backend-pos/internal/pricing"
)

// Handler exposes the debt ledger endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// ListDebts handles GET /api/v1/customers/{customerID}/debts.
func (h *Handler) ListDebts(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "debt service not configured", nil)
		return
	}
	entries, total, err := h.Svc.ListPending(r.Context(), chi.URLParam(r, "customerID"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"debts":        entries,
			"totalPending": total,
		},
	})
}

// ListCustomers handles GET /api/v1/customers.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "debt service not configured", nil)
		return
	}
	customers, err := h.Svc.ListCustomers(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": customers})
}

// ListPayments handles GET /api/v1/debts/{debtID}/payments.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "debt service not configured", nil)
		return
	}
	payments, err := h.Svc.ListPayments(r.Context(), chi.URLParam(r, "debtID"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": payments})
}

type allocateRequest struct {
	Amount pricing.Money `json:"amount" validate:"required,gt=0"`
}

// AllocatePayment handles POST /api/v1/customers/{customerID}/payments.
func (h *Handler) AllocatePayment(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "debt service not configured", nil)
		return
	}
	operatorID, ok := common.OperatorID(r.Context())
	if !ok || operatorID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var payload allocateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid JSON body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.WriteError(w, common.ValidationError("amount must be a positive number of cents"))
			return
		}
	}
	alloc, err := h.Svc.AllocatePayment(r.Context(), operatorID, chi.URLParam(r, "customerID"), payload.Amount)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": alloc})
}

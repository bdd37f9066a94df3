package catalog

import (
	"encoding/json"
	"net/http"

	validator "github.com/go-playground/validator/v10"

	"github.com/kuropos/backend-pos/internal/common"
	"github.com/kuropos/backend-pos/internal/store"
)

// Handler exposes product resolution endpoints.
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
	return &Handler{service: cfg.Service, validate: cfg.Validate}
}

// SearchProducts handles GET /api/v1/products/search. A failing lookup
// degrades to an empty result list with a warning so the register keeps
// accepting input.
func (h *Handler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog service not configured", nil)
		return
	}
	products, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		common.JSONWarning(w, http.StatusOK, []store.Product{}, "product lookup unavailable")
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": products})
}

type resolveRequest struct {
	Query string `json:"query" validate:"required"`
}

// ResolveProduct handles POST /api/v1/products/resolve: a complete query
// (typically a scanned barcode) mapped to exactly one product.
func (h *Handler) ResolveProduct(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog service not configured", nil)
		return
	}
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid JSON body", nil)
		return
	}
	if h.validate != nil {
		if err := h.validate.Struct(req); err != nil {
			common.WriteError(w, common.ValidationError("query is required"))
			return
		}
	}

	product, found, err := h.service.ResolveExact(r.Context(), req.Query)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if !found {
		common.WriteError(w, common.NotFoundError("product not found"))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": product})
}

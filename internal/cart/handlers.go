package cart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/kuropos/backend-pos/internal/common"
	"github.com/kuropos/backend-pos/internal/pricing"
	"github.com/kuropos/backend-pos/internal/store"
)

type productGetter interface {
	GetByID(ctx context.Context, id string) (store.Product, error)
}

// Handler exposes cart endpoints. Every mutation responds with the full
// cart snapshot so the register can re-render from a single payload.
type Handler struct {
	registry *Registry
	products productGetter
	validate *validator.Validate
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Registry *Registry
	Products productGetter
	Validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{registry: cfg.Registry, products: cfg.Products, validate: cfg.Validate}
}

// Create handles POST /api/v1/carts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "cart registry not configured", nil)
		return
	}
	c := h.registry.Create()
	common.JSON(w, http.StatusCreated, map[string]any{"data": c.State()})
}

// Get handles GET /api/v1/carts/{cartID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": c.State()})
}

// Delete handles DELETE /api/v1/carts/{cartID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "cart registry not configured", nil)
		return
	}
	h.registry.Delete(chi.URLParam(r, "cartID"))
	w.WriteHeader(http.StatusNoContent)
}

type addItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
}

// AddItem handles POST /api/v1/carts/{cartID}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	product, err := h.products.GetByID(r.Context(), req.ProductID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.WriteError(w, common.NotFoundError("product not found"))
			return
		}
		common.WriteError(w, common.NewAppError(common.CodeLookup, "product lookup failed", http.StatusServiceUnavailable, err))
		return
	}
	if !product.IsActive {
		common.WriteError(w, common.NotFoundError("product not found"))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": c.AddOrIncrement(product)})
}

type setQuantityRequest struct {
	Quantity float64 `json:"quantity"`
}

// SetQuantity handles PUT /api/v1/carts/{cartID}/items/{productID}/quantity.
func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req setQuantityRequest
	if !h.decode(w, r, &req) {
		return
	}
	state, err := c.SetQuantity(chi.URLParam(r, "productID"), req.Quantity)
	h.writeState(w, state, err)
}

type setTotalRequest struct {
	Total pricing.Money `json:"total"`
}

// SetLineTotal handles PUT /api/v1/carts/{cartID}/items/{productID}/total.
func (h *Handler) SetLineTotal(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req setTotalRequest
	if !h.decode(w, r, &req) {
		return
	}
	state, err := c.SetLineTotal(chi.URLParam(r, "productID"), req.Total)
	h.writeState(w, state, err)
}

// RemoveItem handles DELETE /api/v1/carts/{cartID}/items/{productID}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}
	state, err := c.Remove(chi.URLParam(r, "productID"))
	h.writeState(w, state, err)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*Cart, bool) {
	if h.registry == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "cart registry not configured", nil)
		return nil, false
	}
	c, ok := h.registry.Get(chi.URLParam(r, "cartID"))
	if !ok {
		common.WriteError(w, common.NotFoundError("cart not found"))
		return nil, false
	}
	return c, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid JSON body", nil)
		return false
	}
	if h.validate != nil {
		if err := h.validate.Struct(dst); err != nil {
			common.WriteError(w, common.ValidationError(err.Error()))
			return false
		}
	}
	return true
}

func (h *Handler) writeState(w http.ResponseWriter, state State, err error) {
	if err != nil {
		if errors.Is(err, ErrLineNotFound) {
			common.WriteError(w, common.NotFoundError("cart line not found"))
			return
		}
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": state})
}

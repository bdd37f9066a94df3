package notify

import (
	"context"
	"encoding/json"
	"net/http"

	validator "github.com/go-playground/validator/v10"

	"github.com/kuropos/backend-pos/internal/common"
	"github.com/kuropos/backend-pos/internal/store"
)

type endpointWriter interface {
	InsertEndpoint(ctx context.Context, ep store.WebhookEndpoint) (store.WebhookEndpoint, error)
}

// AdminHandler manages webhook endpoint registration.
type AdminHandler struct {
	Webhooks endpointWriter
	Validate *validator.Validate
}

type createEndpointRequest struct {
	URL    string   `json:"url" validate:"required,url"`
	Secret string   `json:"secret" validate:"required,min=16"`
	Topics []string `json:"topics" validate:"required,min=1,dive,required"`
}

// CreateEndpoint handles POST /api/v1/webhooks.
func (h *AdminHandler) CreateEndpoint(w http.ResponseWriter, r *http.Request) {
	var req createEndpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "malformed request body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, common.CodeValidation, err.Error(), nil)
			return
		}
	}
	if err := validateURL(req.URL); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, common.CodeValidation, err.Error(), nil)
		return
	}
	ep, err := h.Webhooks.InsertEndpoint(r.Context(), store.WebhookEndpoint{
		URL:      req.URL,
		Secret:   req.Secret,
		Topics:   req.Topics,
		IsActive: true,
	})
	if err != nil {
		common.WriteError(w, common.PersistenceError("webhook_endpoint", err))
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": ep})
}

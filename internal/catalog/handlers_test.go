package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	validator "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/kuropos/backend-pos/internal/store"
)

func newTestHandler(t *testing.T, products *stubProducts) *Handler {
	t.Helper()
	svc, err := NewService(ServiceConfig{Products: products})
	require.NoError(t, err)
	return NewHandler(HandlerConfig{Service: svc, Validate: validator.New()})
}

func TestSearchProductsOK(t *testing.T) {
	milk := store.Product{ID: "p1", Code: "MILK1", Name: "Milk 1L", BasePrice: 2000}
	h := newTestHandler(t, &stubProducts{
		searchFn: func(context.Context, string, int) ([]store.Product, error) {
			return []store.Product{milk}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/search?q=milk", nil)
	rec := httptest.NewRecorder()
	h.SearchProducts(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []store.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, "MILK1", body.Data[0].Code)
}

func TestSearchProductsDegradesOnLookupFailure(t *testing.T) {
	h := newTestHandler(t, &stubProducts{
		searchFn: func(context.Context, string, int) ([]store.Product, error) {
			return nil, errors.New("db down")
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/search?q=milk", nil)
	rec := httptest.NewRecorder()
	h.SearchProducts(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "lookup failure must not break the register")
	var body struct {
		Data    []store.Product `json:"data"`
		Warning string          `json:"warning"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Empty(t, body.Data)
	require.NotEmpty(t, body.Warning)
}

func TestResolveProductOK(t *testing.T) {
	exact := store.Product{ID: "p1", Code: "8991234", Name: "Milk 1L"}
	h := newTestHandler(t, &stubProducts{
		byCodeFn: func(context.Context, string) (store.Product, error) {
			return exact, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/resolve", strings.NewReader(`{"query":"8991234"}`))
	rec := httptest.NewRecorder()
	h.ResolveProduct(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data store.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "8991234", body.Data.Code)
}

func TestResolveProductNotFound(t *testing.T) {
	h := newTestHandler(t, &stubProducts{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/resolve", strings.NewReader(`{"query":"unknown"}`))
	rec := httptest.NewRecorder()
	h.ResolveProduct(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResolveProductMissingQuery(t *testing.T) {
	h := newTestHandler(t, &stubProducts{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/resolve", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.ResolveProduct(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestResolveProductMalformedBody(t *testing.T) {
	h := newTestHandler(t, &stubProducts{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/resolve", strings.NewReader(`{"query":`))
	rec := httptest.NewRecorder()
	h.ResolveProduct(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

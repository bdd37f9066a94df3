package sales

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/kuropos/backend-pos/internal/cart"
	"github.com/kuropos/backend-pos/internal/common"
	"github.com/kuropos/backend-pos/internal/store"
)

func seededCart(t *testing.T, registry *cart.Registry) *cart.Cart {
	t.Helper()
	c := registry.Create()
	c.AddOrIncrement(store.Product{ID: "p1", Code: "MILK1", Name: "Milk 1L", BasePrice: 1000, IsActive: true})
	c.AddOrIncrement(store.Product{ID: "p1", Code: "MILK1", Name: "Milk 1L", BasePrice: 1000, IsActive: true})
	return c
}

func commitRequestFor(cartID, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(strings.ReplaceAll(body, "{cart}", cartID)))
	return req.WithContext(common.WithOperatorID(req.Context(), "op1"))
}

func TestCommitHandlerClearsCartOnSuccess(t *testing.T) {
	registry := cart.NewRegistry(0)
	c := seededCart(t, registry)
	h := &Handler{
		Svc:      &Service{Sales: &stubSales{}, Debts: &stubDebts{}, Customers: creditCustomer()},
		Registry: registry,
		Validate: validator.New(),
	}

	rec := httptest.NewRecorder()
	h.Commit(rec, commitRequestFor(c.ID(), `{"cartId":"{cart}","payment":{"mode":"cash","receivedAmount":2300}}`))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Zero(t, c.Len(), "cart must be cleared after a successful commit")
}

func TestCommitHandlerKeepsCartOnValidationFailure(t *testing.T) {
	registry := cart.NewRegistry(0)
	c := seededCart(t, registry)
	h := &Handler{
		Svc:      &Service{Sales: &stubSales{}, Debts: &stubDebts{}, Customers: creditCustomer()},
		Registry: registry,
		Validate: validator.New(),
	}

	rec := httptest.NewRecorder()
	h.Commit(rec, commitRequestFor(c.ID(), `{"cartId":"{cart}","payment":{"mode":"cash","receivedAmount":100}}`))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, 1, c.Len(), "a rejected commit must leave the cart intact")
}

func TestCommitHandlerRequiresOperator(t *testing.T) {
	registry := cart.NewRegistry(0)
	c := seededCart(t, registry)
	h := &Handler{
		Svc:      &Service{Sales: &stubSales{}, Debts: &stubDebts{}, Customers: creditCustomer()},
		Registry: registry,
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(`{"cartId":"`+c.ID()+`","payment":{"mode":"cash","receivedAmount":2300}}`))
	h.Commit(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetHandlerReturnsReceipt(t *testing.T) {
	registry := cart.NewRegistry(0)
	c := seededCart(t, registry)
	h := &Handler{
		Svc:      &Service{Sales: &stubSales{}, Debts: &stubDebts{}, Customers: creditCustomer()},
		Registry: registry,
		Validate: validator.New(),
	}

	rec := httptest.NewRecorder()
	h.Commit(rec, commitRequestFor(c.ID(), `{"cartId":"{cart}","payment":{"mode":"cash","receivedAmount":2300}}`))
	require.Equal(t, http.StatusCreated, rec.Code)

	var committed struct {
		Data Output `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &committed))

	router := chi.NewRouter()
	router.Get("/api/v1/sales/{saleID}", h.Get)

	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, httptest.NewRequest(http.MethodGet, "/api/v1/sales/"+committed.Data.Sale.ID, nil))
	require.Equal(t, http.StatusOK, getRec.Code)

	var body struct {
		Data Receipt `json:"data"`
	}
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &body))
	require.Equal(t, committed.Data.Sale.ID, body.Data.Sale.ID)
	require.Len(t, body.Data.Details, 1)
}

func TestGetHandlerUnknownSale(t *testing.T) {
	h := &Handler{Svc: &Service{Sales: &stubSales{}, Debts: &stubDebts{}, Customers: creditCustomer()}}

	router := chi.NewRouter()
	router.Get("/api/v1/sales/{saleID}", h.Get)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sales/ghost", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCommitHandlerUnknownCart(t *testing.T) {
	h := &Handler{
		Svc:      &Service{Sales: &stubSales{}, Debts: &stubDebts{}, Customers: creditCustomer()},
		Registry: cart.NewRegistry(0),
		Validate: validator.New(),
	}

	rec := httptest.NewRecorder()
	h.Commit(rec, commitRequestFor("missing", `{"cartId":"{cart}","payment":{"mode":"cash","receivedAmount":2300}}`))

	require.Equal(t, http.StatusNotFound, rec.Code)
}

package sales

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/kuropos/backend-pos/internal/cart"
	"github.com/kuropos/backend-pos/internal/common"
	"github.com/kuropos/backend-pos/internal/store"
)

type stubSales struct {
	sales     []store.Sale
	details   []store.SaleDetail
	saleErr   error
	detailErr error
}

func (s *stubSales) InsertSale(_ context.Context, sale store.Sale) (store.Sale, error) {
	if s.saleErr != nil {
		return store.Sale{}, s.saleErr
	}
	sale.ID = uuid.NewString()
	sale.IsActive = true
	s.sales = append(s.sales, sale)
	return sale, nil
}

func (s *stubSales) GetSale(_ context.Context, id string) (store.Sale, error) {
	for _, sale := range s.sales {
		if sale.ID == id && sale.IsActive {
			return sale, nil
		}
	}
	return store.Sale{}, store.ErrNotFound
}

func (s *stubSales) ListDetails(_ context.Context, saleID string) ([]store.SaleDetail, error) {
	var out []store.SaleDetail
	for _, d := range s.details {
		if d.SaleID == saleID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *stubSales) InsertDetail(_ context.Context, d store.SaleDetail) (store.SaleDetail, error) {
	if s.detailErr != nil {
		return store.SaleDetail{}, s.detailErr
	}
	d.ID = uuid.NewString()
	s.details = append(s.details, d)
	return d, nil
}

type stubDebts struct {
	debts      []store.Debt
	payments   []store.DebtPayment
	debtErr    error
	paymentErr error
}

func (s *stubDebts) InsertDebt(_ context.Context, d store.Debt) (store.Debt, error) {
	if s.debtErr != nil {
		return store.Debt{}, s.debtErr
	}
	d.ID = uuid.NewString()
	s.debts = append(s.debts, d)
	return d, nil
}

func (s *stubDebts) InsertPayment(_ context.Context, p store.DebtPayment) (store.DebtPayment, error) {
	if s.paymentErr != nil {
		return store.DebtPayment{}, s.paymentErr
	}
	p.ID = uuid.NewString()
	s.payments = append(s.payments, p)
	return p, nil
}

type stubCustomers struct {
	customers map[string]store.Customer
}

func (s *stubCustomers) GetByID(_ context.Context, id string) (store.Customer, error) {
	c, ok := s.customers[id]
	if !ok {
		return store.Customer{}, store.ErrNotFound
	}
	return c, nil
}

func twoUnitCart() []cart.Line {
	return []cart.Line{{
		ProductID: "p1",
		Code:      "MILK1",
		Name:      "Milk 1L",
		UnitPrice: 1000,
		Quantity:  2,
		LineTotal: 2000,
	}}
}

func creditCustomer() *stubCustomers {
	return &stubCustomers{customers: map[string]store.Customer{
		"c1": {ID: "c1", Fullname: "Ana", AllowCredit: true, IsActive: true},
		"c2": {ID: "c2", Fullname: "Ben", AllowCredit: false, IsActive: true},
	}}
}

func TestCommitCashSale(t *testing.T) {
	salesStore := &stubSales{}
	debts := &stubDebts{}
	svc := &Service{Sales: salesStore, Debts: debts, Customers: creditCustomer()}

	out, err := svc.Commit(context.Background(), "op1", Input{
		Lines:   twoUnitCart(),
		Payment: Payment{Mode: ModeCash, ReceivedAmount: 2300},
	})
	require.NoError(t, err)
	require.Equal(t, int64(2300), out.Sale.TotalAmount)
	require.False(t, out.Sale.IsPartOfDebt)
	require.Zero(t, out.ChangeDue)
	require.Zero(t, out.ResidualDebt)

	require.Len(t, salesStore.details, 1)
	detail := salesStore.details[0]
	require.Equal(t, int64(2000), detail.Subtotal)
	require.Equal(t, int64(300), detail.TaxAmount)
	require.Equal(t, int64(2300), detail.LineTotal)
	require.Empty(t, debts.debts)
	require.Empty(t, debts.payments)
}

func TestGetSaleReturnsHeaderAndLines(t *testing.T) {
	salesStore := &stubSales{}
	svc := &Service{Sales: salesStore, Debts: &stubDebts{}, Customers: creditCustomer()}

	out, err := svc.Commit(context.Background(), "op1", Input{
		Lines:   twoUnitCart(),
		Payment: Payment{Mode: ModeCash, ReceivedAmount: 2300},
	})
	require.NoError(t, err)

	receipt, err := svc.GetSale(context.Background(), out.Sale.ID)
	require.NoError(t, err)
	require.Equal(t, out.Sale.ID, receipt.Sale.ID)
	require.Equal(t, int64(2300), receipt.Sale.TotalAmount)
	require.Len(t, receipt.Details, 1)
	require.Equal(t, int64(2300), receipt.Details[0].LineTotal)
}

func TestGetSaleHidesSoftDeleted(t *testing.T) {
	salesStore := &stubSales{sales: []store.Sale{{ID: "s1", TotalAmount: 2300, IsActive: false}}}
	svc := &Service{Sales: salesStore, Debts: &stubDebts{}, Customers: creditCustomer()}

	_, err := svc.GetSale(context.Background(), "s1")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeNotFound, appErr.Code)
}

func TestGetSaleUnknownID(t *testing.T) {
	svc := &Service{Sales: &stubSales{}, Debts: &stubDebts{}, Customers: creditCustomer()}

	_, err := svc.GetSale(context.Background(), "ghost")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeNotFound, appErr.Code)
}

func TestCommitCashChangeDue(t *testing.T) {
	svc := &Service{Sales: &stubSales{}, Debts: &stubDebts{}, Customers: creditCustomer()}

	out, err := svc.Commit(context.Background(), "op1", Input{
		Lines:   twoUnitCart(),
		Payment: Payment{Mode: ModeCash, ReceivedAmount: 2500},
	})
	require.NoError(t, err)
	require.Equal(t, int64(200), out.ChangeDue)
}

func TestCommitCashInsufficientReceived(t *testing.T) {
	salesStore := &stubSales{}
	svc := &Service{Sales: salesStore, Debts: &stubDebts{}, Customers: creditCustomer()}

	_, err := svc.Commit(context.Background(), "op1", Input{
		Lines:   twoUnitCart(),
		Payment: Payment{Mode: ModeCash, ReceivedAmount: 2000},
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeValidation, appErr.Code)
	require.Empty(t, salesStore.sales, "precondition failures must happen before any write")
}

func TestCommitEmptyCart(t *testing.T) {
	svc := &Service{Sales: &stubSales{}, Debts: &stubDebts{}, Customers: creditCustomer()}

	_, err := svc.Commit(context.Background(), "op1", Input{
		Payment: Payment{Mode: ModeCash, ReceivedAmount: 100},
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeValidation, appErr.Code)
}

func TestCommitCreditUnderPaid(t *testing.T) {
	salesStore := &stubSales{}
	debts := &stubDebts{}
	customerID := "c1"
	svc := &Service{Sales: salesStore, Debts: debts, Customers: creditCustomer()}

	out, err := svc.Commit(context.Background(), "op1", Input{
		Lines:   twoUnitCart(),
		Payment: Payment{Mode: ModeCredit, ReceivedAmount: 1000, CustomerID: &customerID},
	})
	require.NoError(t, err)
	require.True(t, out.Sale.IsPartOfDebt)
	require.Equal(t, int64(2300), out.Sale.TotalAmount)

	require.Len(t, debts.debts, 1)
	require.Equal(t, int64(1300), debts.debts[0].Amount)
	require.Len(t, debts.payments, 1)
	require.Equal(t, int64(1000), debts.payments[0].AmountPaid)
	require.Equal(t, debts.debts[0].ID, debts.payments[0].DebtID)
	require.Equal(t, int64(300), out.ResidualDebt)
}

func TestCommitCreditNoUpfrontPayment(t *testing.T) {
	debts := &stubDebts{}
	customerID := "c1"
	svc := &Service{Sales: &stubSales{}, Debts: debts, Customers: creditCustomer()}

	out, err := svc.Commit(context.Background(), "op1", Input{
		Lines:   twoUnitCart(),
		Payment: Payment{Mode: ModeCredit, ReceivedAmount: 0, CustomerID: &customerID},
	})
	require.NoError(t, err)
	require.Len(t, debts.debts, 1)
	require.Equal(t, int64(2300), debts.debts[0].Amount)
	require.Empty(t, debts.payments)
	require.Equal(t, int64(2300), out.ResidualDebt)
}

func TestCommitCreditFullyPaid(t *testing.T) {
	debts := &stubDebts{}
	customerID := "c1"
	svc := &Service{Sales: &stubSales{}, Debts: debts, Customers: creditCustomer()}

	out, err := svc.Commit(context.Background(), "op1", Input{
		Lines:   twoUnitCart(),
		Payment: Payment{Mode: ModeCredit, ReceivedAmount: 2300, CustomerID: &customerID},
	})
	require.NoError(t, err)
	require.True(t, out.Sale.IsPartOfDebt)
	require.Empty(t, debts.debts, "a fully paid credit sale creates no debt")
	require.Empty(t, debts.payments)
	require.Zero(t, out.ResidualDebt)
}

func TestCommitCreditRequiresEligibleCustomer(t *testing.T) {
	svc := &Service{Sales: &stubSales{}, Debts: &stubDebts{}, Customers: creditCustomer()}

	missing := "nope"
	_, err := svc.Commit(context.Background(), "op1", Input{
		Lines:   twoUnitCart(),
		Payment: Payment{Mode: ModeCredit, CustomerID: &missing},
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeNotFound, appErr.Code)

	disabled := "c2"
	_, err = svc.Commit(context.Background(), "op1", Input{
		Lines:   twoUnitCart(),
		Payment: Payment{Mode: ModeCredit, CustomerID: &disabled},
	})
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeValidation, appErr.Code)
}

func TestCommitPersistenceFailureNamesStep(t *testing.T) {
	salesStore := &stubSales{detailErr: errors.New("disk full")}
	svc := &Service{Sales: salesStore, Debts: &stubDebts{}, Customers: creditCustomer()}

	_, err := svc.Commit(context.Background(), "op1", Input{
		Lines:   twoUnitCart(),
		Payment: Payment{Mode: ModeCash, ReceivedAmount: 2300},
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodePersistence, appErr.Code)
	require.Equal(t, map[string]string{"step": "sale_detail"}, appErr.Details)
	require.Len(t, salesStore.sales, 1, "the sale row written before the failure stays in place")
}

func TestCommitDebtFailureKeepsSale(t *testing.T) {
	salesStore := &stubSales{}
	debts := &stubDebts{debtErr: errors.New("disk full")}
	customerID := "c1"
	svc := &Service{Sales: salesStore, Debts: debts, Customers: creditCustomer()}

	_, err := svc.Commit(context.Background(), "op1", Input{
		Lines:   twoUnitCart(),
		Payment: Payment{Mode: ModeCredit, ReceivedAmount: 1000, CustomerID: &customerID},
	})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodePersistence, appErr.Code)
	require.Equal(t, map[string]string{"step": "debt"}, appErr.Details)
	require.Len(t, salesStore.sales, 1)
	require.Len(t, salesStore.details, 1)
}

package sales

import (
	"context"
	"errors"
	"strings"

	"github.com/kuropos/backend-pos/internal/cart"
	"github.com/kuropos/backend-pos/internal/common"
	"github.com/kuropos/backend-pos/internal/events"
	"github.com/kuropos/backend-pos/internal/obs"
	"github.com/kuropos/backend-pos/internal/pricing"
	"github.com/kuropos/backend-pos/internal/store"
)

// Mode is the payment mode of a sale.
type Mode string

const (
	ModeCash   Mode = "cash"
	ModeCredit Mode = "credit"
)

// Payment describes how the operator settled the sale at the register.
type Payment struct {
	Mode           Mode          `json:"mode"`
	ReceivedAmount pricing.Money `json:"receivedAmount"`
	CustomerID     *string       `json:"customerId,omitempty"`
}

// Input is one commit request: the cart lines as captured plus the payment.
type Input struct {
	Lines   []cart.Line
	Payment Payment
}

// Output reports the committed sale and the amount the operator displays:
// change due for cash, the residual debt for an under-paid credit sale.
type Output struct {
	Sale         store.Sale      `json:"sale"`
	Summary      pricing.Summary `json:"summary"`
	ChangeDue    pricing.Money   `json:"changeDue"`
	ResidualDebt pricing.Money   `json:"residualDebt"`
	DebtID       string          `json:"debtId,omitempty"`
}

type saleStore interface {
	InsertSale(ctx context.Context, sale store.Sale) (store.Sale, error)
	InsertDetail(ctx context.Context, d store.SaleDetail) (store.SaleDetail, error)
	GetSale(ctx context.Context, id string) (store.Sale, error)
	ListDetails(ctx context.Context, saleID string) ([]store.SaleDetail, error)
}

type debtWriter interface {
	InsertDebt(ctx context.Context, d store.Debt) (store.Debt, error)
	InsertPayment(ctx context.Context, p store.DebtPayment) (store.DebtPayment, error)
}

type customerReader interface {
	GetByID(ctx context.Context, id string) (store.Customer, error)
}

// Service commits captured carts as immutable sales. Writes are sequential
// and deliberately not wrapped in a transaction: each step either succeeds
// or surfaces a persistence error naming the step that failed, leaving the
// rows written by earlier steps in place.
type Service struct {
	Sales     saleStore
	Debts     debtWriter
	Customers customerReader
	Events    *events.Bus
}

// Receipt is a committed sale with its lines.
type Receipt struct {
	Sale    store.Sale         `json:"sale"`
	Details []store.SaleDetail `json:"details"`
}

// GetSale returns the header and lines of one committed sale. Soft-deleted
// sales read as not found.
func (s *Service) GetSale(ctx context.Context, id string) (Receipt, error) {
	if s == nil || s.Sales == nil {
		return Receipt{}, errors.New("sales service not configured")
	}
	if strings.TrimSpace(id) == "" {
		return Receipt{}, common.ValidationError("sale id is required")
	}
	sale, err := s.Sales.GetSale(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Receipt{}, common.NotFoundError("sale not found")
		}
		return Receipt{}, common.PersistenceError("sale_lookup", err)
	}
	details, err := s.Sales.ListDetails(ctx, sale.ID)
	if err != nil {
		return Receipt{}, common.PersistenceError("sale_details", err)
	}
	return Receipt{Sale: sale, Details: details}, nil
}

// Commit validates the request, then writes Sale, SaleDetails, and for an
// under-paid credit sale the Debt and its initial DebtPayment.
func (s *Service) Commit(ctx context.Context, operatorID string, in Input) (Output, error) {
	if s == nil || s.Sales == nil {
		return Output{}, errors.New("sales service not configured")
	}
	if strings.TrimSpace(operatorID) == "" {
		return Output{}, common.ValidationError("operator is required")
	}
	if len(in.Lines) == 0 {
		return Output{}, common.ValidationError("cart is empty")
	}

	priced := make([]pricing.Line, 0, len(in.Lines))
	for _, l := range in.Lines {
		if l.Quantity <= 0 {
			return Output{}, common.ValidationError("cart line quantity must be positive")
		}
		priced = append(priced, pricing.Line{Quantity: l.Quantity, UnitPrice: l.UnitPrice, LineTotal: l.LineTotal})
	}
	summary := pricing.Compute(priced)
	total := summary.Total
	received := in.Payment.ReceivedAmount

	var customerID *string
	switch in.Payment.Mode {
	case ModeCash:
		if received < total {
			return Output{}, common.ValidationError("received amount is less than total")
		}
		customerID = in.Payment.CustomerID
	case ModeCredit:
		if in.Payment.CustomerID == nil || strings.TrimSpace(*in.Payment.CustomerID) == "" {
			return Output{}, common.ValidationError("credit sale requires a customer")
		}
		customer, err := s.lookupCustomer(ctx, *in.Payment.CustomerID)
		if err != nil {
			return Output{}, err
		}
		if !customer.AllowCredit {
			return Output{}, common.ValidationError("customer is not enabled for credit")
		}
		// No credit-limit check here: the stated limit is advisory and
		// enforcing it is the caller's responsibility before commit.
		customerID = &customer.ID
	default:
		return Output{}, common.ValidationError("payment mode must be cash or credit")
	}
	if received < 0 {
		return Output{}, common.ValidationError("received amount must not be negative")
	}

	sale, err := s.Sales.InsertSale(ctx, store.Sale{
		OperatorID:   operatorID,
		CustomerID:   customerID,
		TotalAmount:  total,
		IsPartOfDebt: in.Payment.Mode == ModeCredit,
		IsActive:     true,
	})
	if err != nil {
		s.recordCommit(in.Payment.Mode, "error")
		return Output{}, common.PersistenceError("sale", err)
	}

	for _, l := range in.Lines {
		tax := pricing.Tax(l.LineTotal)
		if _, err := s.Sales.InsertDetail(ctx, store.SaleDetail{
			SaleID:    sale.ID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.LineTotal,
			TaxAmount: tax,
			LineTotal: l.LineTotal + tax,
		}); err != nil {
			s.recordCommit(in.Payment.Mode, "error")
			return Output{}, common.PersistenceError("sale_detail", err)
		}
	}

	out := Output{Sale: sale, Summary: summary}
	if in.Payment.Mode == ModeCash {
		out.ChangeDue = received - total
	}

	if in.Payment.Mode == ModeCredit && received < total {
		debt, err := s.Debts.InsertDebt(ctx, store.Debt{
			CustomerID: *customerID,
			Amount:     total - received,
		})
		if err != nil {
			s.recordCommit(in.Payment.Mode, "error")
			return Output{}, common.PersistenceError("debt", err)
		}
		out.DebtID = debt.ID
		// Residual is the principal minus the initial payment recorded below.
		out.ResidualDebt = debt.Amount - received
		if obs.DebtsCreatedTotal != nil {
			obs.DebtsCreatedTotal.Inc()
		}
		s.emit(ctx, events.TopicDebtCreated, debt.ID, map[string]any{
			"debtId":     debt.ID,
			"customerId": debt.CustomerID,
			"saleId":     sale.ID,
			"amount":     debt.Amount,
		})

		if received > 0 {
			if _, err := s.Debts.InsertPayment(ctx, store.DebtPayment{
				DebtID:     debt.ID,
				OperatorID: operatorID,
				AmountPaid: received,
			}); err != nil {
				s.recordCommit(in.Payment.Mode, "error")
				return Output{}, common.PersistenceError("debt_payment", err)
			}
			if obs.DebtPaymentsTotal != nil {
				obs.DebtPaymentsTotal.WithLabelValues("sale").Inc()
			}
		}
	}

	s.recordCommit(in.Payment.Mode, "ok")
	if obs.SaleAmountCents != nil {
		obs.SaleAmountCents.WithLabelValues(string(in.Payment.Mode)).Observe(float64(total))
	}
	s.emit(ctx, events.TopicSaleCommitted, sale.ID, map[string]any{
		"saleId":     sale.ID,
		"operatorId": operatorID,
		"mode":       in.Payment.Mode,
		"total":      total,
	})
	return out, nil
}

func (s *Service) lookupCustomer(ctx context.Context, id string) (store.Customer, error) {
	if s.Customers == nil {
		return store.Customer{}, errors.New("sales service not configured")
	}
	customer, err := s.Customers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Customer{}, common.NotFoundError("customer not found")
		}
		return store.Customer{}, common.PersistenceError("customer_lookup", err)
	}
	return customer, nil
}

// emit publishes best-effort: a failed event must not fail the committed sale.
func (s *Service) emit(ctx context.Context, topic, aggregateID string, payload any) {
	if s.Events == nil {
		return
	}
	_, _ = s.Events.Emit(ctx, topic, aggregateID, payload)
}

func (s *Service) recordCommit(mode Mode, result string) {
	if obs.SalesCommittedTotal != nil {
		obs.SalesCommittedTotal.WithLabelValues(string(mode), result).Inc()
	}
}

package debt

import (
	"context"
	"errors"
	"strings"

	"github.com/kuropos/backend-pos/internal/common"
	"github.com/kuropos/backend-pos/internal/events"
	"github.com/kuropos/backend-pos/internal/obs"
	"github.com/kuropos/backend-pos/internal/pricing"
	"github.com/kuropos/backend-pos/internal/store"
)

type ledger interface {
	ListByCustomer(ctx context.Context, customerID string) ([]store.DebtWithPaid, error)
	ListPayments(ctx context.Context, debtID string) ([]store.DebtPayment, error)
	InsertPayment(ctx context.Context, p store.DebtPayment) (store.DebtPayment, error)
}

type customerReader interface {
	GetByID(ctx context.Context, id string) (store.Customer, error)
	List(ctx context.Context) ([]store.Customer, error)
}

// Entry is a debt with its derived balance.
type Entry struct {
	store.Debt
	Paid    pricing.Money `json:"paid"`
	Pending pricing.Money `json:"pending"`
}

// Allocation reports the result of one settlement call. Debts lists every
// debt that was open going in, with its balance after the allocation;
// debts settled by this very call appear with pending zero.
type Allocation struct {
	Payments      []store.DebtPayment `json:"payments"`
	Debts         []Entry             `json:"debts"`
	Allocated     pricing.Money       `json:"allocated"`
	PendingBefore pricing.Money       `json:"pendingBefore"`
	PendingAfter  pricing.Money       `json:"pendingAfter"`
}

// Pending derives a debt's outstanding balance. It is never stored; every
// read re-sums the payments.
func Pending(d store.DebtWithPaid) pricing.Money {
	return d.Amount - d.Paid
}

// Service is the debt ledger and settlement engine. Payments are
// append-only; settling spreads a single received amount across the
// customer's open debts, oldest first.
type Service struct {
	Debts     ledger
	Customers customerReader
	Events    *events.Bus
}

// ListPending returns the customer's open debts (pending > 0, settled
// debts excluded) and the total outstanding balance.
func (s *Service) ListPending(ctx context.Context, customerID string) ([]Entry, pricing.Money, error) {
	if s == nil || s.Debts == nil {
		return nil, 0, errors.New("debt service not configured")
	}
	if _, err := s.lookupCustomer(ctx, customerID); err != nil {
		return nil, 0, err
	}
	rows, err := s.Debts.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, 0, common.PersistenceError("debt_list", err)
	}
	entries := make([]Entry, 0, len(rows))
	var total pricing.Money
	for _, d := range rows {
		pending := Pending(d)
		if pending <= 0 {
			continue
		}
		entries = append(entries, Entry{Debt: d.Debt, Paid: d.Paid, Pending: pending})
		total += pending
	}
	return entries, total, nil
}

// ListCustomers returns the active customers the register can charge a
// credit sale or settlement against.
func (s *Service) ListCustomers(ctx context.Context) ([]store.Customer, error) {
	if s == nil || s.Customers == nil {
		return nil, errors.New("debt service not configured")
	}
	customers, err := s.Customers.List(ctx)
	if err != nil {
		return nil, common.PersistenceError("customer_list", err)
	}
	return customers, nil
}

// ListPayments returns the settlement history of one debt, oldest first.
func (s *Service) ListPayments(ctx context.Context, debtID string) ([]store.DebtPayment, error) {
	if s == nil || s.Debts == nil {
		return nil, errors.New("debt service not configured")
	}
	if strings.TrimSpace(debtID) == "" {
		return nil, common.ValidationError("debt id is required")
	}
	payments, err := s.Debts.ListPayments(ctx, debtID)
	if err != nil {
		return nil, common.PersistenceError("debt_payments", err)
	}
	return payments, nil
}

// AllocatePayment spreads amount across the customer's open debts in
// creation order: each debt absorbs at most its pending balance, one
// payment row per affected debt, until the amount is exhausted. The
// allocation is rejected outright when it exceeds the total outstanding
// balance; nothing is written in that case.
func (s *Service) AllocatePayment(ctx context.Context, operatorID, customerID string, amount pricing.Money) (Allocation, error) {
	if s == nil || s.Debts == nil {
		return Allocation{}, errors.New("debt service not configured")
	}
	if strings.TrimSpace(operatorID) == "" {
		return Allocation{}, common.ValidationError("operator is required")
	}
	if amount <= 0 {
		return Allocation{}, common.ValidationError("payment amount must be positive")
	}

	open, totalPending, err := s.ListPending(ctx, customerID)
	if err != nil {
		return Allocation{}, err
	}
	if totalPending == 0 {
		return Allocation{}, common.ValidationError("customer has no pending debt")
	}
	if amount > totalPending {
		return Allocation{}, common.ValidationError("payment exceeds total pending debt")
	}

	alloc := Allocation{PendingBefore: totalPending}
	remaining := amount
	for _, entry := range open {
		apply := entry.Pending
		if remaining < apply {
			apply = remaining
		}
		if apply > 0 {
			payment, err := s.Debts.InsertPayment(ctx, store.DebtPayment{
				DebtID:     entry.ID,
				OperatorID: operatorID,
				AmountPaid: apply,
			})
			if err != nil {
				return alloc, common.PersistenceError("debt_payment", err)
			}
			alloc.Payments = append(alloc.Payments, payment)
			alloc.Allocated += apply
			remaining -= apply

			if obs.DebtPaymentsTotal != nil {
				obs.DebtPaymentsTotal.WithLabelValues("settlement").Inc()
			}
			s.emit(ctx, payment, customerID)
		}
		entry.Paid += apply
		entry.Pending -= apply
		alloc.Debts = append(alloc.Debts, entry)
	}
	alloc.PendingAfter = totalPending - alloc.Allocated
	return alloc, nil
}

func (s *Service) lookupCustomer(ctx context.Context, id string) (store.Customer, error) {
	if s.Customers == nil {
		return store.Customer{}, errors.New("debt service not configured")
	}
	if strings.TrimSpace(id) == "" {
		return store.Customer{}, common.ValidationError("customer id is required")
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

func (s *Service) emit(ctx context.Context, payment store.DebtPayment, customerID string) {
	if s.Events == nil {
		return
	}
	_, _ = s.Events.Emit(ctx, events.TopicDebtPaymentRecorded, payment.DebtID, map[string]any{
		"debtId":     payment.DebtID,
		"paymentId":  payment.ID,
		"customerId": customerID,
		"amountPaid": payment.AmountPaid,
	})
}

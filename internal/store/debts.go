package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DebtStore persists debts and their append-only payments. Payments are
// never edited or deleted; a debt's balance is re-summed on every read.
type DebtStore struct {
	pool *pgxpool.Pool
}

// InsertDebt writes a new debt for an under-paid credit sale.
func (s DebtStore) InsertDebt(ctx context.Context, d Debt) (Debt, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	err := s.pool.QueryRow(ctx, `
INSERT INTO debts (id, customer_id, amount)
VALUES ($1, $2, $3)
RETURNING created_at, updated_at`,
		d.ID, d.CustomerID, d.Amount,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return Debt{}, translateError(err)
	}
	return d, nil
}

// InsertPayment appends a settlement payment against one debt.
func (s DebtStore) InsertPayment(ctx context.Context, p DebtPayment) (DebtPayment, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.PaymentDate.IsZero() {
		p.PaymentDate = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx, `
INSERT INTO debt_payments (id, debt_id, operator_id, amount_paid, payment_date)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at, updated_at`,
		p.ID, p.DebtID, p.OperatorID, p.AmountPaid, p.PaymentDate,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return DebtPayment{}, translateError(err)
	}
	return p, nil
}

// ListByCustomer returns every debt of a customer with the current sum of
// its payments, oldest first. The sum is recomputed on each call.
func (s DebtStore) ListByCustomer(ctx context.Context, customerID string) ([]DebtWithPaid, error) {
	rows, err := s.pool.Query(ctx, `
SELECT d.id::text, d.customer_id::text, d.amount, d.created_at, d.updated_at,
       COALESCE(SUM(p.amount_paid), 0) AS paid
FROM debts d
LEFT JOIN debt_payments p ON p.debt_id = d.id
WHERE d.customer_id = $1
GROUP BY d.id
ORDER BY d.created_at, d.id`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []DebtWithPaid
	for rows.Next() {
		var d DebtWithPaid
		if err := rows.Scan(&d.ID, &d.CustomerID, &d.Amount, &d.CreatedAt, &d.UpdatedAt, &d.Paid); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// ListPayments returns the payments recorded against one debt, oldest first.
func (s DebtStore) ListPayments(ctx context.Context, debtID string) ([]DebtPayment, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id::text, debt_id::text, operator_id, amount_paid, payment_date, created_at, updated_at
FROM debt_payments
WHERE debt_id = $1
ORDER BY created_at, id`, debtID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []DebtPayment
	for rows.Next() {
		var p DebtPayment
		if err := rows.Scan(&p.ID, &p.DebtID, &p.OperatorID, &p.AmountPaid, &p.PaymentDate, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

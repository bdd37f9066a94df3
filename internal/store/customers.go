package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CustomerStore reads and seeds customer rows.
type CustomerStore struct {
	pool *pgxpool.Pool
}

const customerColumns = `id::text, fullname, COALESCE(phone, ''), COALESCE(email, ''), COALESCE(address, ''), allow_credit, credit_limit, is_active, created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Fullname, &c.Phone, &c.Email, &c.Address, &c.AllowCredit, &c.CreditLimit, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// GetByID returns an active customer.
func (s CustomerStore) GetByID(ctx context.Context, id string) (Customer, error) {
	c, err := scanCustomer(s.pool.QueryRow(ctx, `
SELECT `+customerColumns+`
FROM customers
WHERE is_active AND id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	return c, err
}

// List returns active customers ordered by name.
func (s CustomerStore) List(ctx context.Context) ([]Customer, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+customerColumns+`
FROM customers
WHERE is_active
ORDER BY fullname`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// Insert persists a customer row, generating an id when absent.
func (s CustomerStore) Insert(ctx context.Context, c Customer) (Customer, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	err := s.pool.QueryRow(ctx, `
INSERT INTO customers (id, fullname, phone, email, address, allow_credit, credit_limit, is_active)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8)
RETURNING created_at, updated_at`,
		c.ID, c.Fullname, c.Phone, c.Email, c.Address, c.AllowCredit, c.CreditLimit, c.IsActive,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Customer{}, translateError(err)
	}
	return c, nil
}

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProductStore reads and seeds catalog rows.
type ProductStore struct {
	pool *pgxpool.Pool
}

const productColumns = `id::text, code, name, stock, base_price, allow_decimal_quantity, is_taxable, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Stock, &p.BasePrice, &p.AllowDecimalQuantity, &p.IsTaxable, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// Search returns active products whose code or name contains q, in the
// store's natural order, capped at limit.
func (s ProductStore) Search(ctx context.Context, q string, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
SELECT `+productColumns+`
FROM products
WHERE is_active AND (code ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%')
ORDER BY created_at, id
LIMIT $2`, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// GetByCode returns the active product with the exact (case-insensitive) code.
func (s ProductStore) GetByCode(ctx context.Context, code string) (Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx, `
SELECT `+productColumns+`
FROM products
WHERE is_active AND lower(code) = lower($1)`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

// GetByID returns a product regardless of active flag.
func (s ProductStore) GetByID(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx, `
SELECT `+productColumns+`
FROM products
WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

// Insert persists a product row, generating an id when absent.
func (s ProductStore) Insert(ctx context.Context, p Product) (Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := s.pool.QueryRow(ctx, `
INSERT INTO products (id, code, name, stock, base_price, allow_decimal_quantity, is_taxable, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING created_at, updated_at`,
		p.ID, p.Code, p.Name, p.Stock, p.BasePrice, p.AllowDecimalQuantity, p.IsTaxable, p.IsActive,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, translateError(err)
	}
	return p, nil
}

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SaleStore persists sale headers and their lines. Rows are written once;
// the commit sequence issues each insert as an independent operation.
type SaleStore struct {
	pool *pgxpool.Pool
}

// InsertSale writes the sale header.
func (s SaleStore) InsertSale(ctx context.Context, sale Sale) (Sale, error) {
	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	if sale.FiscalStatus == "" {
		sale.FiscalStatus = "pending"
	}
	err := s.pool.QueryRow(ctx, `
INSERT INTO sales (id, operator_id, customer_id, total_amount, is_part_of_debt, fiscal_status, is_active)
VALUES ($1, $2, $3, $4, $5, $6, true)
RETURNING created_at, updated_at`,
		sale.ID, sale.OperatorID, sale.CustomerID, sale.TotalAmount, sale.IsPartOfDebt, sale.FiscalStatus,
	).Scan(&sale.CreatedAt, &sale.UpdatedAt)
	if err != nil {
		return Sale{}, translateError(err)
	}
	sale.IsActive = true
	return sale, nil
}

// InsertDetail writes one sale line.
func (s SaleStore) InsertDetail(ctx context.Context, d SaleDetail) (SaleDetail, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO sale_details (id, sale_id, product_id, quantity, unit_price, subtotal, tax_amount, line_total)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.SaleID, d.ProductID, d.Quantity, d.UnitPrice, d.Subtotal, d.TaxAmount, d.LineTotal,
	)
	if err != nil {
		return SaleDetail{}, translateError(err)
	}
	return d, nil
}

// GetSale returns an active sale header.
func (s SaleStore) GetSale(ctx context.Context, id string) (Sale, error) {
	var sale Sale
	err := s.pool.QueryRow(ctx, `
SELECT id::text, operator_id, customer_id, total_amount, is_part_of_debt, fiscal_status, is_active, created_at, updated_at
FROM sales
WHERE is_active AND id = $1`, id,
	).Scan(&sale.ID, &sale.OperatorID, &sale.CustomerID, &sale.TotalAmount, &sale.IsPartOfDebt, &sale.FiscalStatus, &sale.IsActive, &sale.CreatedAt, &sale.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, ErrNotFound
	}
	return sale, err
}

// ListDetails returns the lines of one sale.
func (s SaleStore) ListDetails(ctx context.Context, saleID string) ([]SaleDetail, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id::text, sale_id::text, product_id::text, quantity, unit_price, subtotal, tax_amount, line_total
FROM sale_details
WHERE sale_id = $1
ORDER BY id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SaleDetail
	for rows.Next() {
		var d SaleDetail
		if err := rows.Scan(&d.ID, &d.SaleID, &d.ProductID, &d.Quantity, &d.UnitPrice, &d.Subtotal, &d.TaxAmount, &d.LineTotal); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

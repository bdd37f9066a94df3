package store

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicate indicates a unique constraint was violated.
var ErrDuplicate = errors.New("store: duplicate")

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store bundles the per-entity repositories sharing one connection pool.
type Store struct {
	Pool *pgxpool.Pool

	Products  ProductStore
	Customers CustomerStore
	Sales     SaleStore
	Debts     DebtStore
	Events    EventStore
	Webhooks  WebhookStore
}

// New constructs a Store around an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		Pool:      pool,
		Products:  ProductStore{pool: pool},
		Customers: CustomerStore{pool: pool},
		Sales:     SaleStore{pool: pool},
		Debts:     DebtStore{pool: pool},
		Events:    EventStore{pool: pool},
		Webhooks:  WebhookStore{pool: pool},
	}
}

// Migrate applies the embedded schema migrations against databaseURL.
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("open migrate: %w", err)
	}
	defer func() {
		_, _ = m.Close()
	}()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

// Ping probes the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.Pool == nil {
		return errors.New("store: pool not configured")
	}
	return s.Pool.Ping(ctx)
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"grocerystock/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) inTx(ctx context.Context, name string, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin %s tx: %w", name, err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s tx: %w", name, err)
	}
	return nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation &&
		(constraint == "" || pgErr.ConstraintName == constraint)
}

// mapProductWriteError turns tenant-scoped uniqueness violations into
// domain duplicates naming the offending field.
func mapProductWriteError(err error) error {
	switch {
	case isUniqueViolation(err, "products_tenant_sku_key"):
		return &domain.DuplicateError{Field: "SKU"}
	case isUniqueViolation(err, "products_tenant_barcode_key"):
		return &domain.DuplicateError{Field: "barcode"}
	case isUniqueViolation(err, ""):
		return fmt.Errorf("%w: %v", domain.ErrDuplicate, err)
	}
	return err
}

func notFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

package leave

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"hrportal/internal/platform/querier"
	"hrportal/internal/requestctx"
)

// Store is the Postgres Repository.
type Store struct {
	DB querier.Querier
	// pool is nil on transaction-scoped stores.
	pool querier.TxBeginner
}

func NewStore(db querier.TxBeginner) *Store {
	return &Store{DB: db, pool: db}
}

func (s *Store) WithTx(ctx context.Context, fn func(Repository) error) error {
	if s.pool == nil {
		return fn(s)
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	if err := fn(&Store{DB: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			requestctx.Logger(ctx).Warn().Err(rbErr).Msg("leave tx rollback failed")
		}
		return err
	}
	return tx.Commit(ctx)
}

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// mapUniqueViolation turns a unique-index violation into ErrConflict.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}

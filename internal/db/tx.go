package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WithinTx runs fn inside one transaction bounded by timeout. The transaction
// commits when fn returns nil and rolls back on error or panic. Returned
// errors are classified into the apperr kinds.
func WithinTx(ctx context.Context, b Beginner, timeout time.Duration, fn func(ctx context.Context, tx pgx.Tx) error) (err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, beginErr := b.Begin(ctx)
	if beginErr != nil {
		return Classify(fmt.Errorf("db: failed to begin transaction: %w", beginErr))
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Msg("db: panic recovered inside transaction, rolling back")
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				log.Error().Err(rbErr).Msg("db: failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				log.Error().Err(rbErr).Msg("db: failed to rollback transaction")
			}
			err = Classify(err)
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			log.Error().Err(commitErr).Msg("db: failed to commit transaction")
			err = Classify(fmt.Errorf("db: failed to commit transaction: %w", commitErr))
		}
	}()

	return fn(ctx, tx)
}

package inventory

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/vasiliy-maslov/order-intake/internal/db"
)

// Store runs units of work against the ledger and serves reads.
// WithinTx commits when fn returns nil and rolls back otherwise.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
	Reader
}

var _ Store = (*PostgresStore)(nil)

type PostgresStore struct {
	*SQLReader
	pg        *db.Postgres
	txTimeout time.Duration
}

func NewPostgresStore(pg *db.Postgres, txTimeout time.Duration) *PostgresStore {
	return &PostgresStore{
		SQLReader: NewSQLReader(pg.SQLX()),
		pg:        pg,
		txTimeout: txTimeout,
	}
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	return db.WithinTx(ctx, s.pg.Pool, s.txTimeout, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, NewPostgresRepository(tx))
	})
}

package order

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/vasiliy-maslov/order-intake/internal/db"
	"github.com/vasiliy-maslov/order-intake/internal/inventory"
)

// Tx exposes the repositories of one unit of work.
type Tx interface {
	Orders() Repository
	Inventory() inventory.Repository
}

// Store runs units of work spanning orders and the inventory ledger.
// WithinTx commits when fn returns nil and rolls back otherwise.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Reader
}

var _ Store = (*PostgresStore)(nil)

type postgresTx struct {
	orders    *PostgresRepository
	inventory *inventory.PostgresRepository
}

func (t postgresTx) Orders() Repository              { return t.orders }
func (t postgresTx) Inventory() inventory.Repository { return t.inventory }

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

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return db.WithinTx(ctx, s.pg.Pool, s.txTimeout, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, postgresTx{
			orders:    NewPostgresRepository(tx),
			inventory: inventory.NewPostgresRepository(tx),
		})
	})
}

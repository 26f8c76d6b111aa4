package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vasiliy-maslov/order-intake/internal/apperr"
)

var (
	ErrOrderNotFound         = fmt.Errorf("order %w", apperr.ErrNotFound)
	ErrDuplicateExternalCode = fmt.Errorf("%w: external code already exists", apperr.ErrConflict)
)

// Repository is the write side of orders, bound to one unit of work.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByExternalCode(ctx context.Context, code string) (*Order, error)
	// Lock loads the order and holds its row until the unit of work ends.
	Lock(ctx context.Context, id uuid.UUID) (*Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, stockDepleted bool, at time.Time) error
}

type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Repository = (*PostgresRepository)(nil)

type PostgresRepository struct {
	db DBTX
}

func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, o *Order) error {
	queryOrder := `
		INSERT INTO orders (id, external_code, customer_name, note, status, total_amount, stock_depleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, queryOrder,
		o.ID,
		o.ExternalCode,
		o.CustomerName,
		o.Note,
		string(o.Status),
		o.TotalAmount,
		o.StockDepleted,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order %s: %w", o.ID, err)
	}

	queryLine := `
		INSERT INTO order_items (id, order_id, position, sku, name, qty, unit_price, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for i := range o.Lines {
		l := &o.Lines[i]
		_, err = r.db.Exec(ctx, queryLine, l.ID, o.ID, l.Position, l.SKU, l.Name, l.Qty, l.UnitPrice, l.Total)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order item %d for order %s: %w", i, o.ID, err)
		}
	}
	return nil
}

const selectOrder = `
	SELECT id, external_code, customer_name, note, status, total_amount, stock_depleted, created_at, updated_at
	FROM orders
`

func (r *PostgresRepository) GetByExternalCode(ctx context.Context, code string) (*Order, error) {
	return r.get(ctx, selectOrder+` WHERE external_code = $1`, code)
}

func (r *PostgresRepository) Lock(ctx context.Context, id uuid.UUID) (*Order, error) {
	return r.get(ctx, selectOrder+` WHERE id = $1 FOR UPDATE`, id)
}

func (r *PostgresRepository) get(ctx context.Context, query string, arg any) (*Order, error) {
	var o Order
	var status string
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&o.ID,
		&o.ExternalCode,
		&o.CustomerName,
		&o.Note,
		&status,
		&o.TotalAmount,
		&o.StockDepleted,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to get order by %v: %w", arg, err)
	}
	o.Status = Status(status)

	if o.Lines, err = r.lines(ctx, o.ID); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *PostgresRepository) lines(ctx context.Context, orderID uuid.UUID) ([]Line, error) {
	query := `
		SELECT id, order_id, position, sku, name, qty, unit_price, total
		FROM order_items
		WHERE order_id = $1
		ORDER BY position
	`
	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query items of order %s: %w", orderID, err)
	}
	defer rows.Close()

	lines := []Line{}
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.Position, &l.SKU, &l.Name, &l.Qty, &l.UnitPrice, &l.Total); err != nil {
			return nil, fmt.Errorf("repository: failed to scan item of order %s: %w", orderID, err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed to read items of order %s: %w", orderID, err)
	}
	return lines, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, stockDepleted bool, at time.Time) error {
	query := `UPDATE orders SET status = $1, stock_depleted = $2, updated_at = $3 WHERE id = $4`
	cmdTag, err := r.db.Exec(ctx, query, string(status), stockDepleted, at, id)
	if err != nil {
		return fmt.Errorf("repository: failed to update status of order %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

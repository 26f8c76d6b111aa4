package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"
)

// Reader serves order lookups and listings outside any unit of work.
type Reader interface {
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	GetByExternalCode(ctx context.Context, code string) (*Order, error)
	// List returns orders newest first.
	List(ctx context.Context, filter ListFilter) ([]Order, error)
}

type SQLReader struct {
	db *sqlx.DB
}

func NewSQLReader(db *sqlx.DB) *SQLReader {
	return &SQLReader{db: db}
}

const readerSelect = `
	SELECT id, external_code, customer_name, note, status, total_amount, stock_depleted, created_at, updated_at
	FROM orders`

func (r *SQLReader) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	return r.getOne(ctx, readerSelect+` WHERE id = ?`, id)
}

func (r *SQLReader) GetByExternalCode(ctx context.Context, code string) (*Order, error) {
	return r.getOne(ctx, readerSelect+` WHERE external_code = ?`, code)
}

func (r *SQLReader) getOne(ctx context.Context, query string, arg any) (*Order, error) {
	var o Order
	if err := r.db.GetContext(ctx, &o, r.db.Rebind(query), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("reader: failed to get order by %v: %w", arg, err)
	}

	orders := []Order{o}
	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *SQLReader) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	query := readerSelect
	var args []any
	if filter.Status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*filter.Status))
	}
	query += ` ORDER BY created_at DESC, seq DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	orders := []Order{}
	if err := r.db.SelectContext(ctx, &orders, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("reader: failed to list orders: %w", err)
	}
	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *SQLReader) attachLines(ctx context.Context, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(orders))
	index := make(map[uuid.UUID]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
		orders[i].Lines = []Line{}
	}

	query, args, err := sqlx.In(`
		SELECT id, order_id, position, sku, name, qty, unit_price, total
		FROM order_items
		WHERE order_id IN (?)
		ORDER BY order_id, position`, ids)
	if err != nil {
		return fmt.Errorf("reader: failed to build order items query: %w", err)
	}

	var lines []Line
	if err := r.db.SelectContext(ctx, &lines, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("reader: failed to load order items: %w", err)
	}
	for _, l := range lines {
		i := index[l.OrderID]
		orders[i].Lines = append(orders[i].Lines, l)
	}
	return nil
}

package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"
)

// Reader serves listings and lookups outside any unit of work.
type Reader interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	ListBalances(ctx context.Context, filter BalanceFilter) ([]Balance, error)
	ListMovements(ctx context.Context, offset, limit int) ([]StockMovement, error)
}

type SQLReader struct {
	db *sqlx.DB
}

func NewSQLReader(db *sqlx.DB) *SQLReader {
	return &SQLReader{db: db}
}

func (r *SQLReader) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	var p Product
	query := r.db.Rebind(`SELECT id, sku, name, description, price, cost, active, created_at FROM products WHERE id = ?`)
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("reader: failed to get product %s: %w", id, err)
	}
	return &p, nil
}

func (r *SQLReader) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Search != "" {
		conds = append(conds, `(name ILIKE ? OR sku ILIKE ?)`)
		like := likePattern(filter.Search)
		args = append(args, like, like)
	}
	if filter.Active != nil {
		conds = append(conds, `active = ?`)
		args = append(args, *filter.Active)
	}

	query := `SELECT id, sku, name, description, price, cost, active, created_at FROM products`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY name ASC, sku ASC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	products := []Product{}
	if err := r.db.SelectContext(ctx, &products, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("reader: failed to list products: %w", err)
	}
	return products, nil
}

func (r *SQLReader) ListBalances(ctx context.Context, filter BalanceFilter) ([]Balance, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Search != "" {
		conds = append(conds, `(p.name ILIKE ? OR p.sku ILIKE ?)`)
		like := likePattern(filter.Search)
		args = append(args, like, like)
	}
	if filter.LowStockOnly {
		conds = append(conds, `si.quantity <= si.min_quantity`)
	}

	query := `
		SELECT si.id AS stock_item_id, p.id AS product_id, p.sku, p.name, si.unit,
		       si.quantity, si.min_quantity, si.quantity <= si.min_quantity AS below_minimum, si.updated_at
		FROM stock_items si
		JOIN products p ON p.id = si.product_id`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY p.name ASC, p.sku ASC`

	balances := []Balance{}
	if err := r.db.SelectContext(ctx, &balances, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("reader: failed to list balances: %w", err)
	}
	return balances, nil
}

func (r *SQLReader) ListMovements(ctx context.Context, offset, limit int) ([]StockMovement, error) {
	query := r.db.Rebind(`
		SELECT id, stock_item_id, product_id, movement_type, quantity, unit_price, reason, reference, created_at
		FROM stock_movements
		ORDER BY created_at DESC, seq DESC
		LIMIT ? OFFSET ?`)

	movements := []StockMovement{}
	if err := r.db.SelectContext(ctx, &movements, query, limit, offset); err != nil {
		return nil, fmt.Errorf("reader: failed to list movements: %w", err)
	}
	return movements, nil
}

// likePattern builds a case-insensitive substring pattern with LIKE
// metacharacters escaped.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

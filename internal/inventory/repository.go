package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/order-intake/internal/apperr"
)

var (
	ErrProductNotFound   = fmt.Errorf("product %w", apperr.ErrNotFound)
	ErrStockItemNotFound = fmt.Errorf("stock item %w", apperr.ErrNotFound)
	ErrDuplicateSKU      = fmt.Errorf("%w: sku already exists", apperr.ErrConflict)
)

// Repository is the write side of the ledger. Implementations are bound to
// one unit of work; LockStockItem holds the row until it ends.
type Repository interface {
	CreateProduct(ctx context.Context, p *Product) error
	CreateStockItem(ctx context.Context, s *StockItem) error
	GetProductBySKU(ctx context.Context, sku string) (*Product, error)
	GetStockItemByProduct(ctx context.Context, productID uuid.UUID) (*StockItem, error)
	LockStockItem(ctx context.Context, id uuid.UUID) (*StockItem, error)
	UpdateStockQuantity(ctx context.Context, id uuid.UUID, quantity decimal.Decimal, at time.Time) error
	InsertMovement(ctx context.Context, m *StockMovement) error
	// SumMovements returns the signed sum and the count of the movements
	// recorded against a stock item.
	SumMovements(ctx context.Context, stockItemID uuid.UUID) (decimal.Decimal, int, error)
}

type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Repository = (*PostgresRepository)(nil)

type PostgresRepository struct {
	db DBTX
}

func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateProduct(ctx context.Context, p *Product) error {
	query := `
		INSERT INTO products (id, sku, name, description, price, cost, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query, p.ID, p.SKU, p.Name, p.Description, p.Price, p.Cost, p.Active, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert product %s: %w", p.SKU, err)
	}
	return nil
}

func (r *PostgresRepository) CreateStockItem(ctx context.Context, s *StockItem) error {
	query := `
		INSERT INTO stock_items (id, product_id, unit, quantity, initial_quantity, min_quantity, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query, s.ID, s.ProductID, s.Unit, s.Quantity, s.InitialQuantity, s.MinQuantity, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert stock item for product %s: %w", s.ProductID, err)
	}
	return nil
}

func (r *PostgresRepository) GetProductBySKU(ctx context.Context, sku string) (*Product, error) {
	query := `
		SELECT id, sku, name, description, price, cost, active, created_at
		FROM products
		WHERE sku = $1
	`
	var p Product
	err := r.db.QueryRow(ctx, query, sku).Scan(
		&p.ID, &p.SKU, &p.Name, &p.Description, &p.Price, &p.Cost, &p.Active, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to get product by sku %s: %w", sku, err)
	}
	return &p, nil
}

func (r *PostgresRepository) GetStockItemByProduct(ctx context.Context, productID uuid.UUID) (*StockItem, error) {
	query := `
		SELECT id, product_id, unit, quantity, initial_quantity, min_quantity, updated_at
		FROM stock_items
		WHERE product_id = $1
	`
	return r.scanStockItem(r.db.QueryRow(ctx, query, productID), "product "+productID.String())
}

func (r *PostgresRepository) LockStockItem(ctx context.Context, id uuid.UUID) (*StockItem, error) {
	query := `
		SELECT id, product_id, unit, quantity, initial_quantity, min_quantity, updated_at
		FROM stock_items
		WHERE id = $1
		FOR UPDATE
	`
	return r.scanStockItem(r.db.QueryRow(ctx, query, id), id.String())
}

func (r *PostgresRepository) scanStockItem(row pgx.Row, key string) (*StockItem, error) {
	var s StockItem
	err := row.Scan(&s.ID, &s.ProductID, &s.Unit, &s.Quantity, &s.InitialQuantity, &s.MinQuantity, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStockItemNotFound
		}
		return nil, fmt.Errorf("repository: failed to get stock item %s: %w", key, err)
	}
	return &s, nil
}

func (r *PostgresRepository) UpdateStockQuantity(ctx context.Context, id uuid.UUID, quantity decimal.Decimal, at time.Time) error {
	query := `UPDATE stock_items SET quantity = $1, updated_at = $2 WHERE id = $3`
	cmdTag, err := r.db.Exec(ctx, query, quantity, at, id)
	if err != nil {
		return fmt.Errorf("repository: failed to update stock item %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrStockItemNotFound
	}
	return nil
}

func (r *PostgresRepository) InsertMovement(ctx context.Context, m *StockMovement) error {
	query := `
		INSERT INTO stock_movements (id, stock_item_id, product_id, movement_type, quantity, unit_price, reason, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		m.ID, m.StockItemID, m.ProductID, string(m.Kind), m.Quantity, m.UnitPrice, m.Reason, m.Reference, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert movement for stock item %s: %w", m.StockItemID, err)
	}
	return nil
}

func (r *PostgresRepository) SumMovements(ctx context.Context, stockItemID uuid.UUID) (decimal.Decimal, int, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN movement_type = 'OUT' THEN -quantity ELSE quantity END), 0), COUNT(*)
		FROM stock_movements
		WHERE stock_item_id = $1
	`
	var (
		sum   decimal.Decimal
		count int
	)
	if err := r.db.QueryRow(ctx, query, stockItemID).Scan(&sum, &count); err != nil {
		return decimal.Zero, 0, fmt.Errorf("repository: failed to sum movements of %s: %w", stockItemID, err)
	}
	return sum, count, nil
}

package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/order-intake/internal/apperr"
)

// Post records one movement inside the caller's unit of work: it locks the
// stock item, applies the signed delta and appends the movement. The balance
// may go negative.
func Post(ctx context.Context, repo Repository, in MovementInput) (*StockMovement, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	item, err := repo.LockStockItem(ctx, in.StockItemID)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to generate movement id: %w", err)
	}
	now := time.Now().UTC()

	balance := item.Quantity.Add(in.Kind.Delta(in.Quantity))
	if err := CheckStored(balance); err != nil {
		return nil, fmt.Errorf("%w: resulting balance of stock item %s %s", apperr.ErrInvalidArgument, item.ID, err)
	}
	if err := repo.UpdateStockQuantity(ctx, item.ID, balance, now); err != nil {
		return nil, err
	}

	movement := &StockMovement{
		ID:          id,
		StockItemID: item.ID,
		ProductID:   item.ProductID,
		Kind:        in.Kind,
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
		Reason:      in.Reason,
		Reference:   in.Reference,
		CreatedAt:   now,
	}
	if err := repo.InsertMovement(ctx, movement); err != nil {
		return nil, err
	}

	if balance.IsNegative() {
		log.Warn().
			Stringer("stock_item_id", item.ID).
			Stringer("balance", balance).
			Msg("ledger: stock balance went negative")
	}

	return movement, nil
}

// ResolveBySKU finds the stock item of the product with the given SKU.
func ResolveBySKU(ctx context.Context, repo Repository, sku string) (*StockItem, error) {
	product, err := repo.GetProductBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	return repo.GetStockItemByProduct(ctx, product.ID)
}

type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

func (l *Ledger) CreateProduct(ctx context.Context, in ProductInput) (*ProductStock, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	productID, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to generate product id: %w", err)
	}
	stockID, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to generate stock item id: %w", err)
	}

	unit := strings.TrimSpace(in.Unit)
	if unit == "" {
		unit = DefaultUnit
	}
	now := time.Now().UTC()

	out := &ProductStock{
		Product: Product{
			ID:          productID,
			SKU:         strings.TrimSpace(in.SKU),
			Name:        strings.TrimSpace(in.Name),
			Description: in.Description,
			Price:       in.Price,
			Cost:        in.Cost,
			Active:      true,
			CreatedAt:   now,
		},
		StockItem: StockItem{
			ID:              stockID,
			ProductID:       productID,
			Unit:            unit,
			Quantity:        in.InitialQuantity,
			InitialQuantity: in.InitialQuantity,
			MinQuantity:     in.MinQuantity,
			UpdatedAt:       now,
		},
	}

	err = l.store.WithinTx(ctx, func(ctx context.Context, repo Repository) error {
		if _, err := repo.GetProductBySKU(ctx, out.Product.SKU); err == nil {
			return ErrDuplicateSKU
		} else if !errors.Is(err, ErrProductNotFound) {
			return err
		}
		if err := repo.CreateProduct(ctx, &out.Product); err != nil {
			return err
		}
		return repo.CreateStockItem(ctx, &out.StockItem)
	})
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			log.Warn().Err(err).Str("sku", out.Product.SKU).Msg("ledger: duplicate sku")
			return nil, fmt.Errorf("ledger: product %s: %w", out.Product.SKU, err)
		}
		log.Error().Err(err).Str("sku", out.Product.SKU).Msg("ledger: failed to create product")
		return nil, fmt.Errorf("ledger: failed to create product: %w", err)
	}

	log.Info().Stringer("product_id", productID).Str("sku", out.Product.SKU).Msg("ledger: product created")
	return out, nil
}

func (l *Ledger) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	p, err := l.store.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	return p, nil
}

func (l *Ledger) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	offset, limit, err := Page(filter.Offset, filter.Limit, DefaultProductLimit, MaxProductLimit)
	if err != nil {
		return nil, err
	}
	filter.Offset, filter.Limit = offset, limit
	filter.Search = strings.TrimSpace(filter.Search)

	products, err := l.store.ListProducts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	return products, nil
}

func (l *Ledger) PostMovement(ctx context.Context, in MovementInput) (*StockMovement, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var movement *StockMovement
	err := l.store.WithinTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		movement, err = Post(ctx, repo, in)
		return err
	})
	if err != nil {
		return nil, postError(err, in.StockItemID.String(), in)
	}

	log.Info().
		Stringer("movement_id", movement.ID).
		Stringer("stock_item_id", movement.StockItemID).
		Stringer("movement_type", movement.Kind).
		Stringer("quantity", movement.Quantity).
		Msg("ledger: movement posted")
	return movement, nil
}

// PostMovementBySKU resolves the stock item of sku and posts in against it.
// in.StockItemID is ignored.
func (l *Ledger) PostMovementBySKU(ctx context.Context, sku string, in MovementInput) (*StockMovement, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, fmt.Errorf("%w: sku is required", apperr.ErrInvalidArgument)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var movement *StockMovement
	err := l.store.WithinTx(ctx, func(ctx context.Context, repo Repository) error {
		item, err := ResolveBySKU(ctx, repo, sku)
		if err != nil {
			return err
		}
		in.StockItemID = item.ID
		movement, err = Post(ctx, repo, in)
		return err
	})
	if err != nil {
		return nil, postError(err, sku, in)
	}

	log.Info().
		Stringer("movement_id", movement.ID).
		Str("sku", sku).
		Stringer("movement_type", movement.Kind).
		Stringer("quantity", movement.Quantity).
		Msg("ledger: movement posted")
	return movement, nil
}

func postError(err error, target string, in MovementInput) error {
	if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrInvalidArgument) {
		log.Warn().Err(err).Str("target", target).Stringer("movement_type", in.Kind).Msg("ledger: movement rejected")
		return fmt.Errorf("ledger: %w", err)
	}
	log.Error().Err(err).Str("target", target).Msg("ledger: failed to post movement")
	return fmt.Errorf("ledger: failed to post movement: %w", err)
}

// ListMovements returns movements newest first.
func (l *Ledger) ListMovements(ctx context.Context, offset, limit int) ([]StockMovement, error) {
	offset, limit, err := Page(offset, limit, DefaultMovementLimit, MaxMovementLimit)
	if err != nil {
		return nil, err
	}
	movements, err := l.store.ListMovements(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	return movements, nil
}

func (l *Ledger) ListBalances(ctx context.Context, filter BalanceFilter) ([]Balance, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	balances, err := l.store.ListBalances(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	return balances, nil
}

// Reconcile compares a stock item's balance with its initial quantity plus
// the signed sum of its movements. The item is locked while both are read.
func (l *Ledger) Reconcile(ctx context.Context, stockItemID uuid.UUID) (*Reconciliation, error) {
	var rec *Reconciliation
	err := l.store.WithinTx(ctx, func(ctx context.Context, repo Repository) error {
		item, err := repo.LockStockItem(ctx, stockItemID)
		if err != nil {
			return err
		}
		sum, count, err := repo.SumMovements(ctx, stockItemID)
		if err != nil {
			return err
		}
		expected := item.InitialQuantity.Add(sum)
		rec = &Reconciliation{
			StockItemID:     item.ID,
			InitialQuantity: item.InitialQuantity,
			MovementSum:     sum,
			MovementCount:   count,
			Expected:        expected,
			Actual:          item.Quantity,
			Balanced:        expected.Equal(item.Quantity),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}

	if !rec.Balanced {
		log.Error().
			Stringer("stock_item_id", rec.StockItemID).
			Stringer("expected", rec.Expected).
			Stringer("actual", rec.Actual).
			Msg("ledger: stock balance does not reconcile with movements")
	}
	return rec, nil
}

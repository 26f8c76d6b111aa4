package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/order-intake/internal/apperr"
)

type MovementKind string

const (
	MovementIn     MovementKind = "IN"
	MovementOut    MovementKind = "OUT"
	MovementAdjust MovementKind = "ADJUST"
)

func (k MovementKind) String() string {
	return string(k)
}

func (k MovementKind) Valid() bool {
	switch k {
	case MovementIn, MovementOut, MovementAdjust:
		return true
	}
	return false
}

// Delta returns the signed balance change of a movement of qty units.
// ADJUST adds, exactly like IN.
func (k MovementKind) Delta(qty decimal.Decimal) decimal.Decimal {
	if k == MovementOut {
		return qty.Neg()
	}
	return qty
}

func ParseMovementKind(s string) (MovementKind, error) {
	k := MovementKind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: unknown movement type %q", apperr.ErrInvalidArgument, s)
	}
	return k, nil
}

type Product struct {
	ID          uuid.UUID           `json:"id" db:"id"`
	SKU         string              `json:"sku" db:"sku"`
	Name        string              `json:"name" db:"name"`
	Description *string             `json:"description,omitempty" db:"description"`
	Price       decimal.Decimal     `json:"price" db:"price"`
	Cost        decimal.NullDecimal `json:"cost" db:"cost"`
	Active      bool                `json:"active" db:"active"`
	CreatedAt   time.Time           `json:"created_at" db:"created_at"`
}

type StockItem struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	ProductID       uuid.UUID       `json:"product_id" db:"product_id"`
	Unit            string          `json:"unit" db:"unit"`
	Quantity        decimal.Decimal `json:"quantity" db:"quantity"`
	InitialQuantity decimal.Decimal `json:"initial_quantity" db:"initial_quantity"`
	MinQuantity     decimal.Decimal `json:"min_quantity" db:"min_quantity"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// StockMovement is immutable once stored. Quantity is always positive; Kind
// carries the sign.
type StockMovement struct {
	ID          uuid.UUID           `json:"id" db:"id"`
	StockItemID uuid.UUID           `json:"stock_item_id" db:"stock_item_id"`
	ProductID   uuid.UUID           `json:"product_id" db:"product_id"`
	Kind        MovementKind        `json:"movement_type" db:"movement_type"`
	Quantity    decimal.Decimal     `json:"quantity" db:"quantity"`
	UnitPrice   decimal.NullDecimal `json:"unit_price" db:"unit_price"`
	Reason      *string             `json:"reason,omitempty" db:"reason"`
	Reference   *string             `json:"reference,omitempty" db:"reference"`
	CreatedAt   time.Time           `json:"created_at" db:"created_at"`
}

type Balance struct {
	StockItemID  uuid.UUID       `json:"stock_item_id" db:"stock_item_id"`
	ProductID    uuid.UUID       `json:"product_id" db:"product_id"`
	SKU          string          `json:"sku" db:"sku"`
	Name         string          `json:"name" db:"name"`
	Unit         string          `json:"unit" db:"unit"`
	Quantity     decimal.Decimal `json:"quantity" db:"quantity"`
	MinQuantity  decimal.Decimal `json:"min_quantity" db:"min_quantity"`
	BelowMinimum bool            `json:"below_minimum" db:"below_minimum"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

type Reconciliation struct {
	StockItemID     uuid.UUID       `json:"stock_item_id"`
	InitialQuantity decimal.Decimal `json:"initial_quantity"`
	MovementSum     decimal.Decimal `json:"movement_sum"`
	MovementCount   int             `json:"movement_count"`
	Expected        decimal.Decimal `json:"expected"`
	Actual          decimal.Decimal `json:"actual"`
	Balanced        bool            `json:"balanced"`
}

// Quantities and amounts are stored as NUMERIC(18, 4).
const StoredScale = 4

var storedLimit = decimal.New(1, 18-StoredScale)

// CheckStored reports why d cannot be stored without rounding or overflow,
// or nil when it can.
func CheckStored(d decimal.Decimal) error {
	if !d.Equal(d.Truncate(StoredScale)) {
		return fmt.Errorf("has more than %d decimal places", StoredScale)
	}
	if d.Abs().GreaterThanOrEqual(storedLimit) {
		return fmt.Errorf("exceeds %s in magnitude", storedLimit.Sub(decimal.New(1, -StoredScale)))
	}
	return nil
}

type MovementInput struct {
	StockItemID uuid.UUID
	Kind        MovementKind
	Quantity    decimal.Decimal
	UnitPrice   decimal.NullDecimal
	Reason      *string
	Reference   *string
}

func (in MovementInput) Validate() error {
	if !in.Kind.Valid() {
		return fmt.Errorf("%w: unknown movement type %q", apperr.ErrInvalidArgument, in.Kind)
	}
	if !in.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive, got %s", apperr.ErrInvalidArgument, in.Quantity)
	}
	if err := CheckStored(in.Quantity); err != nil {
		return fmt.Errorf("%w: quantity %s", apperr.ErrInvalidArgument, err)
	}
	if in.UnitPrice.Valid {
		if in.UnitPrice.Decimal.IsNegative() {
			return fmt.Errorf("%w: unit price cannot be negative", apperr.ErrInvalidArgument)
		}
		if err := CheckStored(in.UnitPrice.Decimal); err != nil {
			return fmt.Errorf("%w: unit price %s", apperr.ErrInvalidArgument, err)
		}
	}
	return nil
}

type ProductInput struct {
	SKU             string
	Name            string
	Description     *string
	Price           decimal.Decimal
	Cost            decimal.NullDecimal
	Unit            string
	InitialQuantity decimal.Decimal
	MinQuantity     decimal.Decimal
}

const DefaultUnit = "UN"

func (in ProductInput) Validate() error {
	if strings.TrimSpace(in.SKU) == "" {
		return fmt.Errorf("%w: sku is required", apperr.ErrInvalidArgument)
	}
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", apperr.ErrInvalidArgument)
	}
	if in.Price.IsNegative() {
		return fmt.Errorf("%w: price cannot be negative", apperr.ErrInvalidArgument)
	}
	if in.Cost.Valid && in.Cost.Decimal.IsNegative() {
		return fmt.Errorf("%w: cost cannot be negative", apperr.ErrInvalidArgument)
	}
	if in.InitialQuantity.IsNegative() {
		return fmt.Errorf("%w: initial quantity cannot be negative", apperr.ErrInvalidArgument)
	}
	if in.MinQuantity.IsNegative() {
		return fmt.Errorf("%w: minimum quantity cannot be negative", apperr.ErrInvalidArgument)
	}
	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"price", in.Price},
		{"cost", in.Cost.Decimal},
		{"initial quantity", in.InitialQuantity},
		{"minimum quantity", in.MinQuantity},
	} {
		if err := CheckStored(f.value); err != nil {
			return fmt.Errorf("%w: %s %s", apperr.ErrInvalidArgument, f.name, err)
		}
	}
	return nil
}

type ProductStock struct {
	Product   Product   `json:"product"`
	StockItem StockItem `json:"stock_item"`
}

type ProductFilter struct {
	Search string
	Active *bool
	Offset int
	Limit  int
}

type BalanceFilter struct {
	Search       string
	LowStockOnly bool
}

const (
	DefaultMovementLimit = 100
	MaxMovementLimit     = 500
	DefaultProductLimit  = 100
	MaxProductLimit      = 500
)

// Page normalizes an offset/limit pair. A zero limit selects defLimit and
// limits above maxLimit are clamped.
func Page(offset, limit, defLimit, maxLimit int) (int, int, error) {
	if offset < 0 {
		return 0, 0, fmt.Errorf("%w: offset cannot be negative", apperr.ErrInvalidArgument)
	}
	if limit < 0 {
		return 0, 0, fmt.Errorf("%w: limit cannot be negative", apperr.ErrInvalidArgument)
	}
	if limit == 0 {
		limit = defLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return offset, limit, nil
}

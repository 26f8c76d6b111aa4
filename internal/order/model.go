package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/order-intake/internal/apperr"
	"github.com/vasiliy-maslov/order-intake/internal/inventory"
)

type Status string

const (
	StatusCreated       Status = "CREATED"
	StatusConfirmed     Status = "CONFIRMED"
	StatusInPreparation Status = "IN_PREPARATION"
	StatusReady         Status = "READY"
	StatusFulfilled     Status = "FULFILLED"
	StatusCancelled     Status = "CANCELLED"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) Terminal() bool {
	return s == StatusFulfilled || s == StatusCancelled
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown order status %q", apperr.ErrInvalidArgument, raw)
	}
	return s, nil
}

type Line struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	OrderID   uuid.UUID       `json:"-" db:"order_id"`
	Position  int             `json:"-" db:"position"`
	SKU       string          `json:"sku" db:"sku"`
	Name      string          `json:"name" db:"name"`
	Qty       int             `json:"qty" db:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
	Total     decimal.Decimal `json:"total" db:"total"`
}

type Order struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	ExternalCode  *string         `json:"external_code" db:"external_code"`
	CustomerName  string          `json:"customer_name" db:"customer_name"`
	Note          *string         `json:"note" db:"note"`
	Status        Status          `json:"status" db:"status"`
	TotalAmount   decimal.Decimal `json:"total_amount" db:"total_amount"`
	StockDepleted bool            `json:"stock_depleted" db:"stock_depleted"`
	Lines         []Line          `json:"items" db:"-"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// Draft is a validated order that has not been stored yet.
type Draft struct {
	ExternalCode *string
	CustomerName string
	Note         *string
	Lines        []DraftLine
}

type DraftLine struct {
	SKU       string
	Name      string
	Qty       int
	UnitPrice decimal.Decimal
}

func (l DraftLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Qty)))
}

func (d Draft) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range d.Lines {
		total = total.Add(l.Total())
	}
	return total
}

// Validate checks what every stored order relies on.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.CustomerName) == "" {
		return fmt.Errorf("%w: customer name is required", apperr.ErrInvalidArgument)
	}
	if d.ExternalCode != nil && strings.TrimSpace(*d.ExternalCode) == "" {
		return fmt.Errorf("%w: external code cannot be blank", apperr.ErrInvalidArgument)
	}
	if len(d.Lines) == 0 {
		return fmt.Errorf("%w: order must contain at least one item", apperr.ErrInvalidArgument)
	}
	for i, l := range d.Lines {
		switch {
		case strings.TrimSpace(l.SKU) == "":
			return &NormalizationError{Kind: apperr.ErrInvalidLine, Line: i, Field: "sku", Reason: "is required"}
		case strings.TrimSpace(l.Name) == "":
			return &NormalizationError{Kind: apperr.ErrInvalidLine, Line: i, Field: "name", Reason: "is required"}
		case l.Qty <= 0:
			return &NormalizationError{Kind: apperr.ErrInvalidLine, Line: i, Field: "qty", Reason: "must be a positive integer"}
		case l.UnitPrice.IsNegative():
			return &NormalizationError{Kind: apperr.ErrInvalidLine, Line: i, Field: "unit_price", Reason: "cannot be negative"}
		}
		if err := inventory.CheckStored(l.UnitPrice); err != nil {
			return &NormalizationError{Kind: apperr.ErrInvalidLine, Line: i, Field: "unit_price", Reason: err.Error()}
		}
		if err := inventory.CheckStored(l.Total()); err != nil {
			return &NormalizationError{Kind: apperr.ErrInvalidLine, Line: i, Field: "total", Reason: err.Error()}
		}
	}
	if err := inventory.CheckStored(d.Total()); err != nil {
		return fmt.Errorf("%w: order total %s", apperr.ErrInvalidArgument, err)
	}
	return nil
}

type ListFilter struct {
	Status *Status
	Offset int
	Limit  int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// StatusChange describes a committed status transition.
type StatusChange struct {
	OrderID         uuid.UUID `json:"order_id"`
	ExternalCode    *string   `json:"external_code,omitempty"`
	From            Status    `json:"from"`
	To              Status    `json:"to"`
	MovementsPosted int       `json:"movements_posted"`
	ChangedAt       time.Time `json:"changed_at"`
}

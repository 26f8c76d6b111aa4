package order

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/order-intake/internal/apperr"
	"github.com/vasiliy-maslov/order-intake/internal/inventory"
)

const depletionReason = "Order confirmed"

// EventPublisher receives committed status changes. Publication is best
// effort and never affects the committed state.
type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, change StatusChange) error
}

type nopPublisher struct{}

func (nopPublisher) PublishStatusChanged(context.Context, StatusChange) error { return nil }

// Coordinator owns the order lifecycle. It is the only writer of order
// status and the only caller that depletes stock for an order.
type Coordinator struct {
	store  Store
	events EventPublisher
}

func NewCoordinator(store Store, events EventPublisher) *Coordinator {
	if events == nil {
		events = nopPublisher{}
	}
	return &Coordinator{store: store, events: events}
}

func newOrder(d Draft) (*Order, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate order id: %w", err)
	}
	now := time.Now().UTC()

	o := &Order{
		ID:           id,
		ExternalCode: d.ExternalCode,
		CustomerName: strings.TrimSpace(d.CustomerName),
		Note:         d.Note,
		Status:       StatusCreated,
		TotalAmount:  decimal.Zero,
		Lines:        make([]Line, 0, len(d.Lines)),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for i, dl := range d.Lines {
		lineID, err := uuid.NewV4()
		if err != nil {
			return nil, fmt.Errorf("service: failed to generate order item id: %w", err)
		}
		total := dl.Total()
		o.Lines = append(o.Lines, Line{
			ID:        lineID,
			OrderID:   id,
			Position:  i,
			SKU:       strings.TrimSpace(dl.SKU),
			Name:      strings.TrimSpace(dl.Name),
			Qty:       dl.Qty,
			UnitPrice: dl.UnitPrice,
			Total:     total,
		})
		o.TotalAmount = o.TotalAmount.Add(total)
	}
	return o, nil
}

// CreateOrder stores a draft as a new CREATED order. A duplicate external
// code fails with apperr.ErrConflict.
func (c *Coordinator) CreateOrder(ctx context.Context, d Draft) (*Order, error) {
	if err := d.Validate(); err != nil {
		log.Warn().Err(err).Msg("service: rejected order draft")
		return nil, err
	}

	o, err := newOrder(d)
	if err != nil {
		return nil, err
	}

	err = c.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if o.ExternalCode != nil {
			if _, err := tx.Orders().GetByExternalCode(ctx, *o.ExternalCode); err == nil {
				return ErrDuplicateExternalCode
			} else if !errors.Is(err, ErrOrderNotFound) {
				return err
			}
		}
		return tx.Orders().Create(ctx, o)
	})
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			log.Warn().Err(err).Str("external_code", deref(o.ExternalCode)).Msg("service: duplicate order")
			return nil, fmt.Errorf("service: %w", err)
		}
		log.Error().Err(err).Msg("service: failed to create order in repository")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	log.Info().Stringer("order_id", o.ID).Stringer("total_amount", o.TotalAmount).Msg("service: order created")
	return o, nil
}

// IngestWebhook normalizes an external payload and stores it. A payload
// whose external code is already stored returns the existing order with
// created set to false.
func (c *Coordinator) IngestWebhook(ctx context.Context, payload any) (o *Order, created bool, err error) {
	d, err := Normalize(payload)
	if err != nil {
		log.Warn().Err(err).Msg("service: rejected webhook payload")
		return nil, false, err
	}

	o, err = c.CreateOrder(ctx, d)
	if err == nil {
		return o, true, nil
	}
	if d.ExternalCode == nil || !errors.Is(err, apperr.ErrConflict) {
		return nil, false, err
	}

	existing, getErr := c.store.GetByExternalCode(ctx, *d.ExternalCode)
	if getErr != nil {
		log.Error().Err(getErr).Str("external_code", *d.ExternalCode).Msg("service: failed to load replayed order")
		return nil, false, fmt.Errorf("service: failed to load order for external code %s: %w", *d.ExternalCode, getErr)
	}

	log.Info().Stringer("order_id", existing.ID).Str("external_code", *d.ExternalCode).Msg("service: webhook replay acknowledged")
	return existing, false, nil
}

func (c *Coordinator) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := c.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Err(err).Stringer("order_id", id).Msg("service: order not found by id")
			return nil, err
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order by id")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}
	return o, nil
}

func (c *Coordinator) ListOrders(ctx context.Context, filter ListFilter) ([]Order, error) {
	offset, limit, err := inventory.Page(filter.Offset, filter.Limit, DefaultListLimit, MaxListLimit)
	if err != nil {
		return nil, err
	}
	filter.Offset, filter.Limit = offset, limit
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown order status %q", apperr.ErrInvalidArgument, *filter.Status)
	}

	orders, err := c.store.List(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list orders")
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}
	return orders, nil
}

// SetStatus moves an order to newStatus. Entering CONFIRMED from any other
// status depletes stock in the same unit of work, at most once per order:
// the persisted StockDepleted marker keeps a path such as
// CONFIRMED -> READY -> CONFIRMED from depleting a second time, which is
// narrower than checking the previous status alone.
func (c *Coordinator) SetStatus(ctx context.Context, id uuid.UUID, newStatus Status) (*Order, error) {
	if !newStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown order status %q", apperr.ErrInvalidArgument, newStatus)
	}

	var (
		updated  *Order
		previous Status
		posted   int
	)
	err := c.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.Orders().Lock(ctx, id)
		if err != nil {
			return err
		}
		previous = o.Status

		effect, err := Evaluate(o.Status, newStatus)
		if err != nil {
			return err
		}

		if effect == EffectDeplete && !o.StockDepleted {
			if posted, err = deplete(ctx, tx.Inventory(), o); err != nil {
				return err
			}
			o.StockDepleted = true
		}

		o.Status = newStatus
		o.UpdatedAt = time.Now().UTC()
		if err := tx.Orders().UpdateStatus(ctx, o.ID, o.Status, o.StockDepleted, o.UpdatedAt); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			log.Warn().Err(err).Stringer("order_id", id).Stringer("new_status", newStatus).Msg("service: order not found, cannot update status")
			return nil, fmt.Errorf("service: %w", err)
		case errors.Is(err, apperr.ErrInvalidTransition):
			log.Warn().Err(err).Stringer("order_id", id).Stringer("current_status", previous).Stringer("new_status", newStatus).Msg("service: invalid status transition attempt")
			return nil, fmt.Errorf("service: %w", err)
		}
		log.Error().Err(err).Stringer("order_id", id).Stringer("new_status", newStatus).Msg("service: failed to update order status")
		return nil, fmt.Errorf("service: failed to update order status: %w", err)
	}

	log.Info().
		Stringer("order_id", id).
		Stringer("old_status", previous).
		Stringer("new_status", newStatus).
		Int("movements_posted", posted).
		Msg("service: order status updated")

	change := StatusChange{
		OrderID:         updated.ID,
		ExternalCode:    updated.ExternalCode,
		From:            previous,
		To:              newStatus,
		MovementsPosted: posted,
		ChangedAt:       updated.UpdatedAt,
	}
	if err := c.events.PublishStatusChanged(ctx, change); err != nil {
		log.Warn().Err(err).Stringer("order_id", id).Msg("service: failed to publish status change")
	}

	return updated, nil
}

type depletionTarget struct {
	line Line
	item *inventory.StockItem
}

// deplete posts one OUT movement per line whose SKU resolves to a stock
// item. Lines without a product or stock record are skipped. Stock rows are
// locked in ascending id order.
func deplete(ctx context.Context, repo inventory.Repository, o *Order) (int, error) {
	targets := make([]depletionTarget, 0, len(o.Lines))
	for _, l := range o.Lines {
		item, err := inventory.ResolveBySKU(ctx, repo, l.SKU)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				log.Debug().Stringer("order_id", o.ID).Str("sku", l.SKU).Msg("service: no stock record for sku, skipping line")
				continue
			}
			return 0, err
		}
		targets = append(targets, depletionTarget{line: l, item: item})
	}

	slices.SortStableFunc(targets, func(a, b depletionTarget) int {
		return bytes.Compare(a.item.ID.Bytes(), b.item.ID.Bytes())
	})

	reason := depletionReason
	reference := "ORDER " + o.ID.String()
	for _, t := range targets {
		_, err := inventory.Post(ctx, repo, inventory.MovementInput{
			StockItemID: t.item.ID,
			Kind:        inventory.MovementOut,
			Quantity:    decimal.NewFromInt(int64(t.line.Qty)),
			Reason:      &reason,
			Reference:   &reference,
		})
		if err != nil {
			return 0, fmt.Errorf("service: failed to deplete sku %s: %w", t.line.SKU, err)
		}
	}
	return len(targets), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

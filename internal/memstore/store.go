// Package memstore keeps orders and the inventory ledger in process memory
// with the same unit-of-work guarantees as the PostgreSQL store: row locks
// held until the unit ends, staged writes applied atomically on commit and
// unique keys checked at commit time.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/order-intake/internal/apperr"
	"github.com/vasiliy-maslov/order-intake/internal/db"
	"github.com/vasiliy-maslov/order-intake/internal/inventory"
	"github.com/vasiliy-maslov/order-intake/internal/order"
)

var (
	_ order.Store     = OrderStore{}
	_ inventory.Store = InventoryStore{}
	_ order.Tx        = (*unit)(nil)
)

type Store struct {
	locks     *lockTable
	txTimeout time.Duration

	mu             sync.RWMutex
	products       map[uuid.UUID]inventory.Product
	productsBySKU  map[string]uuid.UUID
	stock          map[uuid.UUID]inventory.StockItem
	stockByProduct map[uuid.UUID]uuid.UUID
	movements      []inventory.StockMovement
	orders         map[uuid.UUID]order.Order
	ordersByCode   map[string]uuid.UUID
	orderSeq       []uuid.UUID
}

func New(txTimeout time.Duration) *Store {
	return &Store{
		locks:          newLockTable(),
		txTimeout:      txTimeout,
		products:       make(map[uuid.UUID]inventory.Product),
		productsBySKU:  make(map[string]uuid.UUID),
		stock:          make(map[uuid.UUID]inventory.StockItem),
		stockByProduct: make(map[uuid.UUID]uuid.UUID),
		orders:         make(map[uuid.UUID]order.Order),
		ordersByCode:   make(map[string]uuid.UUID),
	}
}

// OrderStore is the order.Store view of s.
func (s *Store) OrderStore() OrderStore {
	return OrderStore{s}
}

// InventoryStore is the inventory.Store view of s.
func (s *Store) InventoryStore() InventoryStore {
	return InventoryStore{s}
}

type OrderStore struct{ *Store }

func (v OrderStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return v.run(ctx, func(ctx context.Context, t *unit) error { return fn(ctx, t) })
}

type InventoryStore struct{ *Store }

func (v InventoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repo inventory.Repository) error) error {
	return v.run(ctx, func(ctx context.Context, t *unit) error { return fn(ctx, t.Inventory()) })
}

func (s *Store) run(ctx context.Context, fn func(ctx context.Context, t *unit) error) (err error) {
	if s.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}

	t := newUnit(s)
	defer t.releaseLocks()
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Msg("memstore: panic recovered inside unit of work, discarding staged writes")
			panic(p)
		}
	}()

	if err := fn(ctx, t); err != nil {
		return db.Classify(err)
	}
	if err := ctx.Err(); err != nil {
		return db.Classify(fmt.Errorf("memstore: unit of work expired before commit: %w", err))
	}
	return t.commit()
}

func (s *Store) GetProduct(_ context.Context, id uuid.UUID) (*inventory.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, inventory.ErrProductNotFound
	}
	return &p, nil
}

func (s *Store) ListProducts(_ context.Context, filter inventory.ProductFilter) ([]inventory.Product, error) {
	s.mu.RLock()
	out := []inventory.Product{}
	for _, p := range s.products {
		if filter.Search != "" && !containsFold(p.Name, filter.Search) && !containsFold(p.SKU, filter.Search) {
			continue
		}
		if filter.Active != nil && p.Active != *filter.Active {
			continue
		}
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].SKU < out[j].SKU
	})
	return window(out, filter.Offset, filter.Limit), nil
}

func (s *Store) ListBalances(_ context.Context, filter inventory.BalanceFilter) ([]inventory.Balance, error) {
	s.mu.RLock()
	out := []inventory.Balance{}
	for _, si := range s.stock {
		p := s.products[si.ProductID]
		if filter.Search != "" && !containsFold(p.Name, filter.Search) && !containsFold(p.SKU, filter.Search) {
			continue
		}
		below := si.Quantity.LessThanOrEqual(si.MinQuantity)
		if filter.LowStockOnly && !below {
			continue
		}
		out = append(out, inventory.Balance{
			StockItemID:  si.ID,
			ProductID:    p.ID,
			SKU:          p.SKU,
			Name:         p.Name,
			Unit:         si.Unit,
			Quantity:     si.Quantity,
			MinQuantity:  si.MinQuantity,
			BelowMinimum: below,
			UpdatedAt:    si.UpdatedAt,
		})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].SKU < out[j].SKU
	})
	return out, nil
}

func (s *Store) ListMovements(_ context.Context, offset, limit int) ([]inventory.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]inventory.StockMovement, 0, len(s.movements))
	for i := len(s.movements) - 1; i >= 0; i-- {
		out = append(out, s.movements[i])
	}
	return window(out, offset, limit), nil
}

func (s *Store) Get(_ context.Context, id uuid.UUID) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (s *Store) GetByExternalCode(_ context.Context, code string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.ordersByCode[code]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return cloneOrder(s.orders[id]), nil
}

func (s *Store) List(_ context.Context, filter order.ListFilter) ([]order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []order.Order{}
	for i := len(s.orderSeq) - 1; i >= 0; i-- {
		o := s.orders[s.orderSeq[i]]
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	return window(out, filter.Offset, filter.Limit), nil
}

func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func cloneOrder(o order.Order) *order.Order {
	o.ExternalCode = cloneString(o.ExternalCode)
	o.Note = cloneString(o.Note)
	o.Lines = append([]order.Line(nil), o.Lines...)
	if o.Lines == nil {
		o.Lines = []order.Line{}
	}
	return &o
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperr.ErrConflict, fmt.Sprintf(format, args...))
}

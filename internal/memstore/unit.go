package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/order-intake/internal/apperr"
	"github.com/vasiliy-maslov/order-intake/internal/inventory"
	"github.com/vasiliy-maslov/order-intake/internal/order"
)

// unit is one unit of work. Reads see staged writes first and committed
// state second; nothing reaches the committed state before commit.
type unit struct {
	s    *Store
	held []string

	products     map[uuid.UUID]inventory.Product
	productOrder []uuid.UUID
	stock        map[uuid.UUID]inventory.StockItem
	stockOrder   []uuid.UUID
	movements    []inventory.StockMovement
	orders       map[uuid.UUID]order.Order
	orderOrder   []uuid.UUID
}

func newUnit(s *Store) *unit {
	return &unit{
		s:        s,
		products: make(map[uuid.UUID]inventory.Product),
		stock:    make(map[uuid.UUID]inventory.StockItem),
		orders:   make(map[uuid.UUID]order.Order),
	}
}

func (t *unit) Orders() order.Repository        { return orderRepo{t} }
func (t *unit) Inventory() inventory.Repository { return inventoryRepo{t} }

func (t *unit) lock(ctx context.Context, key string) error {
	for _, h := range t.held {
		if h == key {
			return nil
		}
	}
	if err := t.s.locks.acquire(ctx, key); err != nil {
		return fmt.Errorf("%w: memstore: failed to lock %s: %w", apperr.ErrStorage, key, err)
	}
	t.held = append(t.held, key)
	return nil
}

func (t *unit) releaseLocks() {
	for i := len(t.held) - 1; i >= 0; i-- {
		t.s.locks.release(t.held[i])
	}
	t.held = nil
}

func (t *unit) commit() error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	skus := make(map[string]bool)
	for _, id := range t.productOrder {
		p := t.products[id]
		if _, exists := s.productsBySKU[p.SKU]; exists || skus[p.SKU] {
			return conflict("sku %s already exists", p.SKU)
		}
		skus[p.SKU] = true
	}
	stocked := make(map[uuid.UUID]bool)
	for _, id := range t.stockOrder {
		si := t.stock[id]
		if _, exists := s.stockByProduct[si.ProductID]; exists || stocked[si.ProductID] {
			return conflict("stock item for product %s already exists", si.ProductID)
		}
		stocked[si.ProductID] = true
	}
	codes := make(map[string]bool)
	for _, id := range t.orderOrder {
		o := t.orders[id]
		if o.ExternalCode == nil {
			continue
		}
		if _, exists := s.ordersByCode[*o.ExternalCode]; exists || codes[*o.ExternalCode] {
			return conflict("external code %s already exists", *o.ExternalCode)
		}
		codes[*o.ExternalCode] = true
	}

	for id, p := range t.products {
		s.products[id] = p
		s.productsBySKU[p.SKU] = id
	}
	for id, si := range t.stock {
		s.stock[id] = si
		s.stockByProduct[si.ProductID] = id
	}
	s.movements = append(s.movements, t.movements...)
	for id, o := range t.orders {
		s.orders[id] = o
		if o.ExternalCode != nil {
			s.ordersByCode[*o.ExternalCode] = id
		}
	}
	s.orderSeq = append(s.orderSeq, t.orderOrder...)
	return nil
}

func (t *unit) findProduct(id uuid.UUID) (inventory.Product, bool) {
	if p, ok := t.products[id]; ok {
		return p, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	p, ok := t.s.products[id]
	return p, ok
}

func (t *unit) findStockItem(id uuid.UUID) (inventory.StockItem, bool) {
	if si, ok := t.stock[id]; ok {
		return si, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	si, ok := t.s.stock[id]
	return si, ok
}

func (t *unit) findOrder(id uuid.UUID) (order.Order, bool) {
	if o, ok := t.orders[id]; ok {
		return o, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	o, ok := t.s.orders[id]
	return o, ok
}

type inventoryRepo struct{ t *unit }

func (r inventoryRepo) CreateProduct(_ context.Context, p *inventory.Product) error {
	if _, ok := r.t.products[p.ID]; !ok {
		r.t.productOrder = append(r.t.productOrder, p.ID)
	}
	r.t.products[p.ID] = *p
	return nil
}

func (r inventoryRepo) CreateStockItem(_ context.Context, si *inventory.StockItem) error {
	if _, ok := r.t.findProduct(si.ProductID); !ok {
		return inventory.ErrProductNotFound
	}
	if _, ok := r.t.stock[si.ID]; !ok {
		r.t.stockOrder = append(r.t.stockOrder, si.ID)
	}
	r.t.stock[si.ID] = *si
	return nil
}

func (r inventoryRepo) GetProductBySKU(_ context.Context, sku string) (*inventory.Product, error) {
	for _, p := range r.t.products {
		if p.SKU == sku {
			return &p, nil
		}
	}
	r.t.s.mu.RLock()
	id, ok := r.t.s.productsBySKU[sku]
	p := r.t.s.products[id]
	r.t.s.mu.RUnlock()
	if !ok {
		return nil, inventory.ErrProductNotFound
	}
	return &p, nil
}

func (r inventoryRepo) GetStockItemByProduct(_ context.Context, productID uuid.UUID) (*inventory.StockItem, error) {
	for _, si := range r.t.stock {
		if si.ProductID == productID {
			return &si, nil
		}
	}
	r.t.s.mu.RLock()
	id, ok := r.t.s.stockByProduct[productID]
	si := r.t.s.stock[id]
	r.t.s.mu.RUnlock()
	if !ok {
		return nil, inventory.ErrStockItemNotFound
	}
	return &si, nil
}

func (r inventoryRepo) LockStockItem(ctx context.Context, id uuid.UUID) (*inventory.StockItem, error) {
	if err := r.t.lock(ctx, "stock:"+id.String()); err != nil {
		return nil, err
	}
	si, ok := r.t.findStockItem(id)
	if !ok {
		return nil, inventory.ErrStockItemNotFound
	}
	return &si, nil
}

func (r inventoryRepo) UpdateStockQuantity(_ context.Context, id uuid.UUID, quantity decimal.Decimal, at time.Time) error {
	si, ok := r.t.findStockItem(id)
	if !ok {
		return inventory.ErrStockItemNotFound
	}
	si.Quantity = quantity
	si.UpdatedAt = at
	r.t.stock[id] = si
	return nil
}

func (r inventoryRepo) InsertMovement(_ context.Context, m *inventory.StockMovement) error {
	if _, ok := r.t.findStockItem(m.StockItemID); !ok {
		return inventory.ErrStockItemNotFound
	}
	r.t.movements = append(r.t.movements, *m)
	return nil
}

func (r inventoryRepo) SumMovements(_ context.Context, stockItemID uuid.UUID) (decimal.Decimal, int, error) {
	sum, count := decimal.Zero, 0
	add := func(m inventory.StockMovement) {
		if m.StockItemID == stockItemID {
			sum = sum.Add(m.Kind.Delta(m.Quantity))
			count++
		}
	}

	r.t.s.mu.RLock()
	for _, m := range r.t.s.movements {
		add(m)
	}
	r.t.s.mu.RUnlock()
	for _, m := range r.t.movements {
		add(m)
	}
	return sum, count, nil
}

type orderRepo struct{ t *unit }

func (r orderRepo) Create(_ context.Context, o *order.Order) error {
	if _, ok := r.t.findOrder(o.ID); ok {
		return conflict("order %s already exists", o.ID)
	}
	r.t.orders[o.ID] = *cloneOrder(*o)
	r.t.orderOrder = append(r.t.orderOrder, o.ID)
	return nil
}

func (r orderRepo) GetByExternalCode(_ context.Context, code string) (*order.Order, error) {
	for _, o := range r.t.orders {
		if o.ExternalCode != nil && *o.ExternalCode == code {
			return cloneOrder(o), nil
		}
	}
	r.t.s.mu.RLock()
	defer r.t.s.mu.RUnlock()
	id, ok := r.t.s.ordersByCode[code]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return cloneOrder(r.t.s.orders[id]), nil
}

func (r orderRepo) Lock(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	if err := r.t.lock(ctx, "order:"+id.String()); err != nil {
		return nil, err
	}
	o, ok := r.t.findOrder(id)
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (r orderRepo) UpdateStatus(_ context.Context, id uuid.UUID, status order.Status, stockDepleted bool, at time.Time) error {
	o, ok := r.t.findOrder(id)
	if !ok {
		return order.ErrOrderNotFound
	}
	o = *cloneOrder(o)
	o.Status = status
	o.StockDepleted = stockDepleted
	o.UpdatedAt = at
	r.t.orders[id] = o
	return nil
}

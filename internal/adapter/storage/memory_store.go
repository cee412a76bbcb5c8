package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/hot-product/internal/core/domain"
	"github.com/rl1809/hot-product/internal/port"
)

// MemoryStore is an in-process port.Store. Every statement is atomic on its
// own; InTx undoes the statements of a failed transaction in reverse order.
// Like the MySQL adapter's row locks, it does not serialize whole transactions.
type MemoryStore struct {
	mu       sync.Mutex
	products map[int64]domain.Product
	orders   map[int64]domain.Order
	items    map[int64][]domain.OrderItem
	nextID   int64

	// set only on the transaction-scoped view
	undo *[]func()
	root *MemoryStore
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		products: make(map[int64]domain.Product),
		orders:   make(map[int64]domain.Order),
		items:    make(map[int64][]domain.OrderItem),
	}
	s.root = s
	return s
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(tx port.Store) error) error {
	if s.undo != nil {
		return fn(s)
	}

	var undo []func()
	tx := &MemoryStore{root: s.root, undo: &undo}
	if err := fn(tx); err != nil {
		r := s.root
		r.mu.Lock()
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		r.mu.Unlock()
		return err
	}
	return nil
}

// record registers a compensation; the caller holds root.mu.
func (s *MemoryStore) record(fn func()) {
	if s.undo != nil {
		*s.undo = append(*s.undo, fn)
	}
}

func (s *MemoryStore) lock() *MemoryStore {
	r := s.root
	r.mu.Lock()
	return r
}

func (s *MemoryStore) InsertProduct(ctx context.Context, p *domain.Product) error {
	r := s.lock()
	defer r.mu.Unlock()

	for _, existing := range r.products {
		if existing.Name == p.Name {
			return port.ErrDuplicateKey
		}
	}
	r.nextID++
	p.ID = r.nextID
	r.products[p.ID] = *p

	id := p.ID
	s.record(func() { delete(r.products, id) })
	return nil
}

func (s *MemoryStore) FindProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	r := s.lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *MemoryStore) FindAllProducts(ctx context.Context) ([]domain.Product, error) {
	r := s.lock()
	defer r.mu.Unlock()

	out := make([]domain.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetStock(ctx context.Context, id int64) (*int, error) {
	r := s.lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return nil, nil
	}
	stock := p.Stock
	return &stock, nil
}

func (s *MemoryStore) DecrementStock(ctx context.Context, id int64, quantity int) (int64, error) {
	return s.addStock(id, -quantity, true)
}

func (s *MemoryStore) IncrementStock(ctx context.Context, id int64, quantity int) (int64, error) {
	return s.addStock(id, quantity, false)
}

func (s *MemoryStore) addStock(id int64, delta int, guard bool) (int64, error) {
	r := s.lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok || (guard && p.Stock+delta < 0) {
		return 0, nil
	}
	p.Stock += delta
	r.products[id] = p

	s.record(func() {
		if cur, ok := r.products[id]; ok {
			cur.Stock -= delta
			r.products[id] = cur
		}
	})
	return 1, nil
}

func (s *MemoryStore) ExistsByName(ctx context.Context, name string) (bool, error) {
	return s.ExistsByNameExcludingID(ctx, name, 0)
}

func (s *MemoryStore) ExistsByNameExcludingID(ctx context.Context, name string, id int64) (bool, error) {
	r := s.lock()
	defer r.mu.Unlock()

	for _, p := range r.products {
		if p.Name == name && p.ID != id {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) UpdateSelective(ctx context.Context, id int64, patch domain.ProductPatch, updatedAt time.Time) (int64, error) {
	r := s.lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return 0, nil
	}
	if patch.Name != nil {
		for _, other := range r.products {
			if other.ID != id && other.Name == *patch.Name {
				return 0, port.ErrDuplicateKey
			}
		}
	}

	// undo restores only the touched columns so concurrent stock moves survive
	var prev domain.ProductPatch
	if patch.Name != nil {
		name := p.Name
		prev.Name = &name
	}
	if patch.Price != nil {
		price := p.Price
		prev.Price = &price
	}
	if patch.Stock != nil {
		stock := p.Stock
		prev.Stock = &stock
	}
	if patch.Description != nil {
		desc := p.Description
		prev.Description = &desc
	}
	prevUpdatedAt := p.UpdatedAt

	patch.ApplyTo(&p)
	p.UpdatedAt = updatedAt
	r.products[id] = p

	s.record(func() {
		if cur, ok := r.products[id]; ok {
			prev.ApplyTo(&cur)
			cur.UpdatedAt = prevUpdatedAt
			r.products[id] = cur
		}
	})
	return 1, nil
}

func (s *MemoryStore) InsertOrder(ctx context.Context, o *domain.Order) error {
	r := s.lock()
	defer r.mu.Unlock()

	for _, existing := range r.orders {
		if existing.OrderNumber == o.OrderNumber {
			return port.ErrDuplicateKey
		}
	}
	r.nextID++
	o.ID = r.nextID
	stored := *o
	stored.Items = nil
	r.orders[o.ID] = stored

	id := o.ID
	s.record(func() { delete(r.orders, id) })
	return nil
}

func (s *MemoryStore) UpdateOrderTotal(ctx context.Context, id int64, total decimal.Decimal) error {
	r := s.lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil
	}
	prev := o
	o.TotalAmount = total
	o.UpdatedAt = time.Now()
	r.orders[id] = o

	s.record(func() { r.orders[id] = prev })
	return nil
}

func (s *MemoryStore) UpdateOrderStatus(ctx context.Context, id int64, from, to domain.OrderStatus) (int64, error) {
	r := s.lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok || o.Status != from {
		return 0, nil
	}
	prev := o
	o.Status = to
	o.UpdatedAt = time.Now()
	r.orders[id] = o

	s.record(func() { r.orders[id] = prev })
	return 1, nil
}

func (s *MemoryStore) FindOrderByID(ctx context.Context, id int64) (*domain.Order, error) {
	r := s.lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	items := make([]domain.OrderItem, 0, len(r.items[id]))
	for _, it := range r.items[id] {
		if p, ok := r.products[it.ProductID]; ok {
			it.Product = &domain.ProductRef{Name: p.Name, Description: p.Description}
		}
		items = append(items, it)
	}
	o.Items = items
	return &o, nil
}

func (s *MemoryStore) FindOrdersByUserID(ctx context.Context, userID int64) ([]domain.Order, error) {
	r := s.lock()
	defer r.mu.Unlock()

	var out []domain.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) InsertOrderItem(ctx context.Context, it *domain.OrderItem) error {
	r := s.lock()
	defer r.mu.Unlock()

	r.nextID++
	it.ID = r.nextID
	orderID := it.OrderID
	r.items[orderID] = append(r.items[orderID], *it)

	s.record(func() {
		items := r.items[orderID]
		if len(items) > 0 {
			r.items[orderID] = items[:len(items)-1]
		}
	})
	return nil
}

func (s *MemoryStore) FindItemsByOrderID(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	r := s.lock()
	defer r.mu.Unlock()

	items := make([]domain.OrderItem, len(r.items[orderID]))
	copy(items, r.items[orderID])
	return items, nil
}

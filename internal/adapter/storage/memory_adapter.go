package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/crm/internal/core/domain"
	"github.com/rl1809/crm/internal/port"
)

var (
	_ port.EntityStore = (*MemoryAdapter)(nil)
	_ port.TxManager   = (*MemoryAdapter)(nil)
)

// MemoryAdapter keeps everything in process. Transactions take the write
// lock for their whole duration and restore a snapshot when fn fails.
type MemoryAdapter struct {
	mu    sync.RWMutex
	state memoryState
	last  time.Time
	now   func() time.Time
}

type memoryState struct {
	nextCustomerID int64
	nextProductID  int64
	nextOrderID    int64
	customers      map[int64]domain.Customer
	emails         map[string]int64
	products       map[int64]domain.Product
	orders         map[int64]domain.Order
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		state: memoryState{
			nextCustomerID: 1,
			nextProductID:  1,
			nextOrderID:    1,
			customers:      make(map[int64]domain.Customer),
			emails:         make(map[string]int64),
			products:       make(map[int64]domain.Product),
			orders:         make(map[int64]domain.Order),
		},
		now: time.Now,
	}
}

func (s memoryState) clone() memoryState {
	cp := s
	cp.customers = make(map[int64]domain.Customer, len(s.customers))
	for k, v := range s.customers {
		cp.customers[k] = v
	}
	cp.emails = make(map[string]int64, len(s.emails))
	for k, v := range s.emails {
		cp.emails[k] = v
	}
	cp.products = make(map[int64]domain.Product, len(s.products))
	for k, v := range s.products {
		cp.products[k] = v
	}
	cp.orders = make(map[int64]domain.Order, len(s.orders))
	for k, v := range s.orders {
		cp.orders[k] = v
	}
	return cp
}

type memTxKey struct{}

func (m *MemoryAdapter) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(memTxKey{}).(*MemoryAdapter)
	return owner == m
}

func (m *MemoryAdapter) rlock(ctx context.Context) {
	if !m.inTx(ctx) {
		m.mu.RLock()
	}
}
func (m *MemoryAdapter) runlock(ctx context.Context) {
	if !m.inTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *MemoryAdapter) wlock(ctx context.Context) {
	if !m.inTx(ctx) {
		m.mu.Lock()
	}
}
func (m *MemoryAdapter) wunlock(ctx context.Context) {
	if !m.inTx(ctx) {
		m.mu.Unlock()
	}
}

func (m *MemoryAdapter) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(context.WithValue(ctx, memTxKey{}, m)); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

// stamp returns a strictly increasing UTC time. Callers hold the write lock.
func (m *MemoryAdapter) stamp() time.Time {
	t := m.now().UTC()
	if !t.After(m.last) {
		t = m.last.Add(time.Microsecond)
	}
	m.last = t
	return t
}

func (m *MemoryAdapter) InsertCustomer(ctx context.Context, c *domain.Customer) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	if _, taken := m.state.emails[c.Email]; taken {
		return &domain.ConstraintError{Entity: "customer", Field: "email"}
	}
	c.ID = m.state.nextCustomerID
	m.state.nextCustomerID++
	c.CreatedAt = m.stamp()
	c.UpdatedAt = c.CreatedAt
	m.state.customers[c.ID] = *c
	m.state.emails[c.Email] = c.ID
	return nil
}

func (m *MemoryAdapter) InsertProduct(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	p.ID = m.state.nextProductID
	m.state.nextProductID++
	p.CreatedAt = m.stamp()
	p.UpdatedAt = p.CreatedAt
	m.state.products[p.ID] = *p
	return nil
}

func (m *MemoryAdapter) InsertOrder(ctx context.Context, o *domain.Order) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	if _, ok := m.state.customers[o.CustomerID]; !ok {
		return &domain.ConstraintError{Entity: "order", Field: "customer_id"}
	}
	for _, id := range o.ProductIDs {
		if _, ok := m.state.products[id]; !ok {
			return &domain.ConstraintError{Entity: "order_product", Field: "product_id"}
		}
	}

	o.ID = m.state.nextOrderID
	m.state.nextOrderID++
	o.CreatedAt = m.stamp()
	o.UpdatedAt = o.CreatedAt
	if o.OrderDate.IsZero() {
		o.OrderDate = o.CreatedAt
	}
	stored := *o
	stored.ProductIDs = append([]int64(nil), o.ProductIDs...)
	m.state.orders[o.ID] = stored
	return nil
}

func (m *MemoryAdapter) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	c, ok := m.state.customers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *MemoryAdapter) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	p, ok := m.state.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryAdapter) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	o, ok := m.state.orders[id]
	if !ok {
		return nil, nil
	}
	o.ProductIDs = append([]int64(nil), o.ProductIDs...)
	return &o, nil
}

func (m *MemoryAdapter) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	out := make([]domain.Customer, 0, len(m.state.customers))
	for _, c := range m.state.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (m *MemoryAdapter) ListProducts(ctx context.Context) ([]domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	out := make([]domain.Product, 0, len(m.state.products))
	for _, p := range m.state.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (m *MemoryAdapter) ListOrders(ctx context.Context) ([]domain.Order, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	out := make([]domain.Order, 0, len(m.state.orders))
	for _, o := range m.state.orders {
		o.ProductIDs = append([]int64(nil), o.ProductIDs...)
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].OrderDate, out[j].OrderDate, out[i].ID, out[j].ID) })
	return out, nil
}

func (m *MemoryAdapter) CustomerEmailExists(ctx context.Context, email string) (bool, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)

	_, ok := m.state.emails[email]
	return ok, nil
}

func (m *MemoryAdapter) UpdateProductStock(ctx context.Context, id int64, from, to int) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	p, ok := m.state.products[id]
	if !ok || p.Stock != from {
		return port.ErrOptimisticLock
	}
	p.Stock = to
	p.UpdatedAt = m.stamp()
	m.state.products[id] = p
	return nil
}

// DeleteProduct exists for tests that race a deletion against order creation.
func (m *MemoryAdapter) DeleteProduct(ctx context.Context, id int64) {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	delete(m.state.products, id)
	for oid, o := range m.state.orders {
		kept := o.ProductIDs[:0:0]
		for _, pid := range o.ProductIDs {
			if pid != id {
				kept = append(kept, pid)
			}
		}
		o.ProductIDs = kept
		m.state.orders[oid] = o
	}
}

// DeleteCustomer removes the customer and, like the SQL schema, its orders.
func (m *MemoryAdapter) DeleteCustomer(ctx context.Context, id int64) {
	m.wlock(ctx)
	defer m.wunlock(ctx)

	c, ok := m.state.customers[id]
	if !ok {
		return
	}
	delete(m.state.emails, c.Email)
	delete(m.state.customers, id)
	for oid, o := range m.state.orders {
		if o.CustomerID == id {
			delete(m.state.orders, oid)
		}
	}
}

func (m *MemoryAdapter) Ping(ctx context.Context) error {
	return ctx.Err()
}

func newer(a, b time.Time, idA, idB int64) bool {
	if a.Equal(b) {
		return idA > idB
	}
	return a.After(b)
}

package service

import (
	"context"
	"fmt"

	"github.com/rl1809/crm/internal/core/domain"
	"github.com/rl1809/crm/internal/port"
)

// QueryService is the read side. Get* return nil without an error when the
// id does not resolve; only store failures are errors.
type QueryService struct {
	store port.EntityStore
}

func NewQueryService(store port.EntityStore) *QueryService {
	return &QueryService{store: store}
}

func (q *QueryService) ListCustomers(ctx context.Context, f domain.CustomerFilter) ([]domain.Customer, error) {
	all, err := q.store.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	out := make([]domain.Customer, 0, len(all))
	for _, c := range all {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (q *QueryService) ListProducts(ctx context.Context, f domain.ProductFilter) ([]domain.Product, error) {
	all, err := q.store.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	out := make([]domain.Product, 0, len(all))
	for _, p := range all {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (q *QueryService) ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	all, err := q.store.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	var names *orderNames
	if f.NeedsNames() {
		if names, err = q.loadOrderNames(ctx); err != nil {
			return nil, err
		}
	}

	out := make([]domain.Order, 0, len(all))
	for _, o := range all {
		if !f.Match(o) {
			continue
		}
		if names != nil && !f.MatchNames(names.customers[o.CustomerID], names.productsOf(o)) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

type orderNames struct {
	customers map[int64]string
	products  map[int64]string
}

func (n *orderNames) productsOf(o domain.Order) []string {
	out := make([]string, 0, len(o.ProductIDs))
	for _, id := range o.ProductIDs {
		out = append(out, n.products[id])
	}
	return out
}

func (q *QueryService) loadOrderNames(ctx context.Context) (*orderNames, error) {
	customers, err := q.store.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	products, err := q.store.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	names := &orderNames{
		customers: make(map[int64]string, len(customers)),
		products:  make(map[int64]string, len(products)),
	}
	for _, c := range customers {
		names.customers[c.ID] = c.Name
	}
	for _, p := range products {
		names.products[p.ID] = p.Name
	}
	return names, nil
}

func (q *QueryService) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	c, err := q.store.GetCustomer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get customer %d: %w", id, err)
	}
	return c, nil
}

func (q *QueryService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := q.store.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

func (q *QueryService) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := q.store.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	return o, nil
}

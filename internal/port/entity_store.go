package port

import (
	"context"
	"errors"

	"github.com/rl1809/crm/internal/core/domain"
)

// ErrOptimisticLock is returned by compare-and-set updates that lost a race.
var ErrOptimisticLock = errors.New("optimistic lock conflict")

type EntityStore interface {
	// InsertCustomer assigns ID and timestamps. A duplicate email fails with
	// *domain.ConstraintError{Entity: "customer", Field: "email"}.
	InsertCustomer(ctx context.Context, c *domain.Customer) error

	InsertProduct(ctx context.Context, p *domain.Product) error

	// InsertOrder persists the order row and one association per product id.
	// Missing references fail with *domain.ConstraintError on
	// "order.customer_id" or "order_product.product_id".
	InsertOrder(ctx context.Context, o *domain.Order) error

	// Get* return nil, nil when the id does not resolve.
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)

	// List* return customers and products newest first, orders by order date descending.
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)

	// CustomerEmailExists is an exact, case-sensitive match.
	CustomerEmailExists(ctx context.Context, email string) (bool, error)

	// UpdateProductStock sets stock to `to` only if it still equals `from`,
	// otherwise ErrOptimisticLock.
	UpdateProductStock(ctx context.Context, id int64, from, to int) error

	Ping(ctx context.Context) error
}

type TxManager interface {
	// WithinTx runs fn atomically. Store calls made with the ctx passed to fn
	// join the transaction; a nested WithinTx joins the outer one.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rl1809/crm/internal/core/domain"
	"github.com/rl1809/crm/internal/core/validation"
	"github.com/rl1809/crm/internal/platform/logger"
	"github.com/rl1809/crm/internal/port"
)

const msgCustomerCreated = "Customer created successfully"

type MutationService struct {
	store port.EntityStore
	tx    port.TxManager
	guard port.EmailGuard
	rules *validation.Validator
	log   *logger.Logger
}

// NewMutationService wires the write path. guard may be nil.
func NewMutationService(store port.EntityStore, tx port.TxManager, guard port.EmailGuard, rules *validation.Validator, log *logger.Logger) *MutationService {
	if log == nil {
		log = logger.Nop()
	}
	return &MutationService{
		store: store,
		tx:    tx,
		guard: guard,
		rules: rules,
		log:   log.With("service", "MutationService"),
	}
}

type BulkResult struct {
	Customers []domain.Customer `json:"customers"`
	Errors    []string          `json:"errors"`
}

type RestockResult struct {
	Products []domain.Product `json:"products"`
	Message  string           `json:"message"`
}

func unexpected(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrUnexpectedPersistence, op, err)
}

func duplicateEmail() error {
	return domain.NewError(domain.ErrDuplicateEmail, "Email already exists")
}

func (s *MutationService) CreateCustomer(ctx context.Context, in CreateCustomerInput) (*domain.Customer, string, error) {
	c, err := s.createCustomer(ctx, in)
	if err != nil {
		return nil, "", err
	}
	return c, msgCustomerCreated, nil
}

func (s *MutationService) createCustomer(ctx context.Context, in CreateCustomerInput) (*domain.Customer, error) {
	if err := s.rules.CheckEmail(in.Email); err != nil {
		return nil, err
	}

	exists, err := s.store.CustomerEmailExists(ctx, in.Email)
	if err != nil {
		return nil, unexpected("check email", err)
	}
	if exists {
		return nil, duplicateEmail()
	}

	if err := s.rules.CheckPhone(in.Phone); err != nil {
		return nil, err
	}
	if err := s.rules.CheckName(in.Name); err != nil {
		return nil, err
	}

	release, err := s.reserveEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	defer release()

	c := &domain.Customer{Name: in.Name, Email: in.Email, Phone: in.Phone}
	if err := s.store.InsertCustomer(ctx, c); err != nil {
		if domain.IsConstraint(err, "customer", "email") {
			return nil, duplicateEmail()
		}
		return nil, unexpected("insert customer", err)
	}
	return c, nil
}

// reserveEmail takes the guard's reservation for the duration of an insert.
// Guard outages are logged and ignored since the store constraint still holds.
func (s *MutationService) reserveEmail(ctx context.Context, email string) (func(), error) {
	if s.guard == nil {
		return func() {}, nil
	}

	ok, err := s.guard.Reserve(ctx, email)
	if err != nil {
		s.log.Warn("email guard unavailable", "error", err)
		return func() {}, nil
	}
	if !ok {
		return nil, duplicateEmail()
	}
	return func() {
		if err := s.guard.Release(context.WithoutCancel(ctx), email); err != nil {
			s.log.Warn("release email reservation", "error", err)
		}
	}, nil
}

// BulkCreateCustomers creates each row in its own transaction. Row failures
// are reported in Errors and never abort the batch; only a cancelled or
// expired context does, returning what was created so far.
func (s *MutationService) BulkCreateCustomers(ctx context.Context, rows []CreateCustomerInput) (BulkResult, error) {
	res := BulkResult{
		Customers: make([]domain.Customer, 0, len(rows)),
		Errors:    make([]string, 0),
	}

	for i, row := range rows {
		n := i + 1
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("bulk create customers at row %d: %w", n, err)
		}

		var created *domain.Customer
		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			c, err := s.createCustomer(ctx, row)
			created = c
			return err
		})

		switch {
		case err == nil:
			res.Customers = append(res.Customers, *created)
		case ctx.Err() != nil:
			return res, fmt.Errorf("bulk create customers at row %d: %w", n, ctx.Err())
		case errors.Is(err, domain.ErrDuplicateEmail):
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d: Email '%s' already exists", n, row.Email))
		default:
			if errors.Is(err, domain.ErrUnexpectedPersistence) {
				s.log.Error("bulk create customer row failed", "row", n, "error", err)
			}
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d: %s", n, err.Error()))
		}
	}

	s.log.Info("bulk create customers", "rows", len(rows), "created", len(res.Customers), "failed", len(res.Errors))
	return res, nil
}

func (s *MutationService) CreateProduct(ctx context.Context, in CreateProductInput) (*domain.Product, error) {
	if err := s.rules.CheckPrice(in.Price); err != nil {
		return nil, err
	}
	stock, err := s.rules.NormalizeStock(in.Stock)
	if err != nil {
		return nil, err
	}
	if err := s.rules.CheckName(in.Name); err != nil {
		return nil, err
	}

	p := &domain.Product{Name: in.Name, Price: in.Price, Stock: stock}
	if err := s.store.InsertProduct(ctx, p); err != nil {
		return nil, unexpected("insert product", err)
	}
	return p, nil
}

// CreateOrder resolves the customer and every product and persists the
// order with its associations in a single transaction. The total is fixed
// here and never recomputed.
func (s *MutationService) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	var order *domain.Order

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		customer, err := s.store.GetCustomer(ctx, in.CustomerID)
		if err != nil {
			return unexpected("load customer", err)
		}
		if customer == nil {
			return domain.NewError(domain.ErrCustomerNotFound, "Invalid customer ID: %d", in.CustomerID)
		}

		if len(in.ProductIDs) == 0 {
			return domain.NewError(domain.ErrNoProductsSelected, "At least one product must be selected")
		}

		products := make([]domain.Product, 0, len(in.ProductIDs))
		for _, id := range in.ProductIDs {
			p, err := s.store.GetProduct(ctx, id)
			if err != nil {
				return unexpected("load product", err)
			}
			if p == nil {
				return domain.NewError(domain.ErrProductNotFound, "Invalid product ID: %d", id)
			}
			products = append(products, *p)
		}

		o := &domain.Order{
			CustomerID:  customer.ID,
			ProductIDs:  distinct(in.ProductIDs),
			TotalAmount: domain.SumPrices(products),
		}
		if in.OrderDate != nil {
			o.OrderDate = *in.OrderDate
		}

		if err := s.store.InsertOrder(ctx, o); err != nil {
			switch {
			case domain.IsConstraint(err, "order_product", "product_id"):
				return domain.NewError(domain.ErrProductNotFound, "Invalid product ID: a selected product no longer exists")
			case domain.IsConstraint(err, "order", "customer_id"):
				return domain.NewError(domain.ErrCustomerNotFound, "Invalid customer ID: %d", in.CustomerID)
			default:
				return unexpected("insert order", err)
			}
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// RestockLowStock raises every product below the low-stock threshold by the
// configured amount. Products whose stock changed concurrently are skipped.
func (s *MutationService) RestockLowStock(ctx context.Context) (RestockResult, error) {
	res := RestockResult{Products: make([]domain.Product, 0)}

	threshold := s.rules.LowStockThreshold()
	if threshold <= 0 {
		res.Message = "Updated 0 low-stock products"
		return res, nil
	}

	all, err := s.store.ListProducts(ctx)
	if err != nil {
		return res, unexpected("list products", err)
	}

	low := domain.ProductFilter{LowStockBelow: threshold}
	for _, p := range all {
		if !low.Match(p) {
			continue
		}

		to := p.Stock + s.rules.RestockAmount()
		var updated *domain.Product
		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.store.UpdateProductStock(ctx, p.ID, p.Stock, to); err != nil {
				return err
			}
			got, err := s.store.GetProduct(ctx, p.ID)
			updated = got
			return err
		})
		if errors.Is(err, port.ErrOptimisticLock) {
			s.log.Warn("restock skipped, stock changed concurrently", "product_id", p.ID)
			continue
		}
		if err != nil {
			return res, unexpected("restock product", err)
		}
		if updated != nil {
			res.Products = append(res.Products, *updated)
		}
	}

	res.Message = fmt.Sprintf("Updated %d low-stock products", len(res.Products))
	return res, nil
}

func distinct(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

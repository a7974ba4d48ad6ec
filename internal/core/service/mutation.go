package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/crm/internal/core/domain"
)

type MutationKind string

const (
	KindCreateCustomer      MutationKind = "create_customer"
	KindBulkCreateCustomers MutationKind = "bulk_create_customers"
	KindCreateProduct       MutationKind = "create_product"
	KindCreateOrder         MutationKind = "create_order"
	KindRestockLowStock     MutationKind = "restock_low_stock"
)

// Mutation is implemented only by the input types below.
type Mutation interface {
	Kind() MutationKind
}

type CreateCustomerInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type BulkCreateCustomersInput []CreateCustomerInput

type CreateProductInput struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock *int            `json:"stock,omitempty"`
}

type CreateOrderInput struct {
	CustomerID int64      `json:"customer_id"`
	ProductIDs []int64    `json:"product_ids"`
	OrderDate  *time.Time `json:"order_date,omitempty"`
}

type RestockLowStockInput struct{}

func (CreateCustomerInput) Kind() MutationKind      { return KindCreateCustomer }
func (BulkCreateCustomersInput) Kind() MutationKind { return KindBulkCreateCustomers }
func (CreateProductInput) Kind() MutationKind       { return KindCreateProduct }
func (CreateOrderInput) Kind() MutationKind         { return KindCreateOrder }
func (RestockLowStockInput) Kind() MutationKind     { return KindRestockLowStock }

// Result carries the payload of whichever mutation ran; unrelated fields stay empty.
type Result struct {
	Kind      MutationKind      `json:"kind"`
	Message   string            `json:"message,omitempty"`
	Customer  *domain.Customer  `json:"customer,omitempty"`
	Customers []domain.Customer `json:"customers,omitempty"`
	Errors    []string          `json:"errors,omitempty"`
	Product   *domain.Product   `json:"product,omitempty"`
	Products  []domain.Product  `json:"products,omitempty"`
	Order     *domain.Order     `json:"order,omitempty"`
}

// MarshalJSON always writes both lists of a bulk create, even when empty.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	if r.Kind != KindBulkCreateCustomers {
		return json.Marshal(plain(r))
	}
	return json.Marshal(struct {
		plain
		Customers []domain.Customer `json:"customers"`
		Errors    []string          `json:"errors"`
	}{plain(r), orEmpty(r.Customers), orEmpty(r.Errors)})
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Dispatch runs m through the matching operation.
func (s *MutationService) Dispatch(ctx context.Context, m Mutation) (*Result, error) {
	switch in := m.(type) {
	case CreateCustomerInput:
		c, msg, err := s.CreateCustomer(ctx, in)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: in.Kind(), Customer: c, Message: msg}, nil

	case BulkCreateCustomersInput:
		res, err := s.BulkCreateCustomers(ctx, in)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: in.Kind(), Customers: res.Customers, Errors: res.Errors}, nil

	case CreateProductInput:
		p, err := s.CreateProduct(ctx, in)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: in.Kind(), Product: p}, nil

	case CreateOrderInput:
		o, err := s.CreateOrder(ctx, in)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: in.Kind(), Order: o}, nil

	case RestockLowStockInput:
		res, err := s.RestockLowStock(ctx)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: in.Kind(), Products: res.Products, Message: res.Message}, nil

	default:
		return nil, fmt.Errorf("unsupported mutation %T", m)
	}
}

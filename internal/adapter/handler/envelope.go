package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/crm/internal/core/domain"
	"github.com/rl1809/crm/internal/core/service"
)

// ErrBadRequest marks requests that could not be decoded into an operation.
var ErrBadRequest = errors.New("bad request")

// MutationRequest is the tagged envelope shared by HTTP and gRPC.
type MutationRequest struct {
	Kind  service.MutationKind `json:"kind"`
	Input json.RawMessage      `json:"input"`
}

// QueryRequest selects an entity set. A non-zero ID fetches one record and
// ignores Filter.
type QueryRequest struct {
	Entity string          `json:"entity"`
	ID     int64           `json:"id,omitempty"`
	Filter json.RawMessage `json:"filter,omitempty"`
}

type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data"`
	Error   *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func ok(data any) *Response {
	return &Response{Success: true, Data: data}
}

func fail(err error) *Response {
	return &Response{Error: errorBody(err)}
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

func errorBody(err error) *ErrorBody {
	if errors.Is(err, ErrBadRequest) {
		return &ErrorBody{Kind: "BadRequest", Message: err.Error()}
	}
	kind := domain.KindName(err)
	if kind == "UnexpectedPersistenceError" {
		// store details stay in the logs
		return &ErrorBody{Kind: kind, Message: "internal error"}
	}
	return &ErrorBody{Kind: kind, Message: err.Error()}
}

// StatusFor maps an operation error to its HTTP status.
func StatusFor(err error) int {
	if errors.Is(err, ErrBadRequest) {
		return http.StatusBadRequest
	}
	switch domain.Kind(err) {
	case domain.ErrInvalidEmail, domain.ErrInvalidName, domain.ErrInvalidPhoneFormat,
		domain.ErrInvalidPrice, domain.ErrInvalidStock, domain.ErrNoProductsSelected:
		return http.StatusBadRequest
	case domain.ErrCustomerNotFound, domain.ErrProductNotFound:
		return http.StatusNotFound
	case domain.ErrDuplicateEmail, domain.ErrConstraintViolation:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// DecodeMutation turns a kind tag and its raw input into a typed mutation.
func DecodeMutation(kind service.MutationKind, raw json.RawMessage) (service.Mutation, error) {
	switch kind {
	case service.KindCreateCustomer:
		var in service.CreateCustomerInput
		if err := decodeInput(raw, &in); err != nil {
			return nil, err
		}
		return in, nil
	case service.KindBulkCreateCustomers:
		var in service.BulkCreateCustomersInput
		if err := decodeInput(raw, &in); err != nil {
			return nil, err
		}
		return in, nil
	case service.KindCreateProduct:
		var in service.CreateProductInput
		if err := decodeInput(raw, &in); err != nil {
			return nil, err
		}
		return in, nil
	case service.KindCreateOrder:
		var in service.CreateOrderInput
		if err := decodeInput(raw, &in); err != nil {
			return nil, err
		}
		return in, nil
	case service.KindRestockLowStock:
		return service.RestockLowStockInput{}, nil
	case "":
		return nil, badRequest("missing mutation kind")
	default:
		return nil, badRequest("unknown mutation kind %q", kind)
	}
}

func decodeInput(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return badRequest("missing input")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid input: %v", err)
	}
	return nil
}

// Wire filters. Decimal and time bounds travel as strings so both transports
// share one parser.
type CustomerQuery struct {
	Name          string `form:"name" json:"name"`
	Email         string `form:"email" json:"email"`
	PhonePrefix   string `form:"phone" json:"phone"`
	CreatedAfter  string `form:"created_after" json:"created_after"`
	CreatedBefore string `form:"created_before" json:"created_before"`
}

type ProductQuery struct {
	Name     string `form:"name" json:"name"`
	MinPrice string `form:"min_price" json:"min_price"`
	MaxPrice string `form:"max_price" json:"max_price"`
	MinStock *int   `form:"min_stock" json:"min_stock"`
	MaxStock *int   `form:"max_stock" json:"max_stock"`
	Stock    *int   `form:"stock" json:"stock"`
	LowStock bool   `form:"low_stock" json:"low_stock"`
}

type OrderQuery struct {
	MinTotal     string `form:"min_total" json:"min_total"`
	MaxTotal     string `form:"max_total" json:"max_total"`
	From         string `form:"from" json:"from"`
	To           string `form:"to" json:"to"`
	CustomerID   int64  `form:"customer_id" json:"customer_id"`
	ProductID    int64  `form:"product_id" json:"product_id"`
	CustomerName string `form:"customer_name" json:"customer_name"`
	ProductName  string `form:"product_name" json:"product_name"`
}

func (q CustomerQuery) filter() (domain.CustomerFilter, error) {
	f := domain.CustomerFilter{NameContains: q.Name, EmailContains: q.Email, PhonePrefix: q.PhonePrefix}
	var err error
	if f.CreatedAfter, err = parseTime("created_after", q.CreatedAfter); err != nil {
		return f, err
	}
	if f.CreatedBefore, err = parseTime("created_before", q.CreatedBefore); err != nil {
		return f, err
	}
	return f, nil
}

func (q ProductQuery) filter(lowStockThreshold int) (domain.ProductFilter, error) {
	f := domain.ProductFilter{NameContains: q.Name, MinStock: q.MinStock, MaxStock: q.MaxStock, Stock: q.Stock}
	if q.LowStock {
		f.LowStockBelow = lowStockThreshold
	}
	var err error
	if f.MinPrice, err = parseDecimal("min_price", q.MinPrice); err != nil {
		return f, err
	}
	if f.MaxPrice, err = parseDecimal("max_price", q.MaxPrice); err != nil {
		return f, err
	}
	return f, nil
}

func (q OrderQuery) filter() (domain.OrderFilter, error) {
	f := domain.OrderFilter{
		CustomerID:           q.CustomerID,
		ProductID:            q.ProductID,
		CustomerNameContains: q.CustomerName,
		ProductNameContains:  q.ProductName,
	}
	var err error
	if f.MinTotal, err = parseDecimal("min_total", q.MinTotal); err != nil {
		return f, err
	}
	if f.MaxTotal, err = parseDecimal("max_total", q.MaxTotal); err != nil {
		return f, err
	}
	if f.OrderedFrom, err = parseTime("from", q.From); err != nil {
		return f, err
	}
	if f.OrderedTo, err = parseTime("to", q.To); err != nil {
		return f, err
	}
	return f, nil
}

func parseDecimal(field, s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, badRequest("invalid %s %q", field, s)
	}
	return &d, nil
}

// parseTime accepts RFC 3339 timestamps or plain dates.
func parseTime(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, badRequest("invalid %s %q", field, s)
}

// Gateway runs decoded envelopes against the services. Both transports sit
// on top of it.
type Gateway struct {
	mutations         *service.MutationService
	queries           *service.QueryService
	lowStockThreshold int
}

func NewGateway(mutations *service.MutationService, queries *service.QueryService, lowStockThreshold int) *Gateway {
	return &Gateway{mutations: mutations, queries: queries, lowStockThreshold: lowStockThreshold}
}

func (g *Gateway) Mutate(ctx context.Context, req MutationRequest) (*service.Result, error) {
	m, err := DecodeMutation(req.Kind, req.Input)
	if err != nil {
		return nil, err
	}
	return g.mutations.Dispatch(ctx, m)
}

func (g *Gateway) Query(ctx context.Context, req QueryRequest) (any, error) {
	switch req.Entity {
	case "customers":
		if req.ID != 0 {
			return g.queries.GetCustomer(ctx, req.ID)
		}
		var q CustomerQuery
		if err := decodeFilter(req.Filter, &q); err != nil {
			return nil, err
		}
		return g.listCustomers(ctx, q)
	case "products":
		if req.ID != 0 {
			return g.queries.GetProduct(ctx, req.ID)
		}
		var q ProductQuery
		if err := decodeFilter(req.Filter, &q); err != nil {
			return nil, err
		}
		return g.listProducts(ctx, q)
	case "orders":
		if req.ID != 0 {
			return g.queries.GetOrder(ctx, req.ID)
		}
		var q OrderQuery
		if err := decodeFilter(req.Filter, &q); err != nil {
			return nil, err
		}
		return g.listOrders(ctx, q)
	default:
		return nil, badRequest("unknown entity %q", req.Entity)
	}
}

func decodeFilter(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	return decodeInput(raw, v)
}

func (g *Gateway) listCustomers(ctx context.Context, q CustomerQuery) ([]domain.Customer, error) {
	f, err := q.filter()
	if err != nil {
		return nil, err
	}
	return g.queries.ListCustomers(ctx, f)
}

func (g *Gateway) listProducts(ctx context.Context, q ProductQuery) ([]domain.Product, error) {
	f, err := q.filter(g.lowStockThreshold)
	if err != nil {
		return nil, err
	}
	return g.queries.ListProducts(ctx, f)
}

func (g *Gateway) listOrders(ctx context.Context, q OrderQuery) ([]domain.Order, error) {
	f, err := q.filter()
	if err != nil {
		return nil, err
	}
	return g.queries.ListOrders(ctx, f)
}

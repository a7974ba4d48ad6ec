package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CustomerFilter narrows customer listings. Zero values match everything.
type CustomerFilter struct {
	NameContains  string
	EmailContains string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	PhonePrefix   string
}

func (f CustomerFilter) Match(c Customer) bool {
	if !containsFold(c.Name, f.NameContains) || !containsFold(c.Email, f.EmailContains) {
		return false
	}
	if f.CreatedAfter != nil && c.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && c.CreatedAt.After(*f.CreatedBefore) {
		return false
	}
	return strings.HasPrefix(c.Phone, f.PhonePrefix)
}

type ProductFilter struct {
	NameContains string
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
	MinStock     *int
	MaxStock     *int
	Stock        *int
	// LowStockBelow keeps products whose stock is strictly below it when > 0.
	LowStockBelow int
}

func (f ProductFilter) Match(p Product) bool {
	if !containsFold(p.Name, f.NameContains) {
		return false
	}
	if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.MinStock != nil && p.Stock < *f.MinStock {
		return false
	}
	if f.MaxStock != nil && p.Stock > *f.MaxStock {
		return false
	}
	if f.Stock != nil && p.Stock != *f.Stock {
		return false
	}
	if f.LowStockBelow > 0 && p.Stock >= f.LowStockBelow {
		return false
	}
	return true
}

type OrderFilter struct {
	MinTotal    *decimal.Decimal
	MaxTotal    *decimal.Decimal
	OrderedFrom *time.Time
	OrderedTo   *time.Time
	CustomerID  int64
	ProductID   int64
	// Orders hold only ids, so the name conditions are checked with
	// MatchNames once the caller has resolved them.
	CustomerNameContains string
	ProductNameContains  string
}

func (f OrderFilter) Match(o Order) bool {
	if f.MinTotal != nil && o.TotalAmount.LessThan(*f.MinTotal) {
		return false
	}
	if f.MaxTotal != nil && o.TotalAmount.GreaterThan(*f.MaxTotal) {
		return false
	}
	if f.OrderedFrom != nil && o.OrderDate.Before(*f.OrderedFrom) {
		return false
	}
	if f.OrderedTo != nil && o.OrderDate.After(*f.OrderedTo) {
		return false
	}
	if f.CustomerID != 0 && o.CustomerID != f.CustomerID {
		return false
	}
	if f.ProductID != 0 {
		for _, id := range o.ProductIDs {
			if id == f.ProductID {
				return true
			}
		}
		return false
	}
	return true
}

// NeedsNames reports whether the filter has conditions on customer or
// product names.
func (f OrderFilter) NeedsNames() bool {
	return f.CustomerNameContains != "" || f.ProductNameContains != ""
}

// MatchNames checks the name conditions against the order's customer name
// and the names of its products. Any one product name may match.
func (f OrderFilter) MatchNames(customerName string, productNames []string) bool {
	if !containsFold(customerName, f.CustomerNameContains) {
		return false
	}
	if f.ProductNameContains == "" {
		return true
	}
	for _, name := range productNames {
		if containsFold(name, f.ProductNameContains) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

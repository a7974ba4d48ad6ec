package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Order references its products by id. TotalAmount is the sum of the
// product prices at creation time and is never recomputed.
type Order struct {
	ID          int64           `json:"id" db:"id"`
	CustomerID  int64           `json:"customer_id" db:"customer_id"`
	ProductIDs  []int64         `json:"product_ids" db:"-"`
	TotalAmount decimal.Decimal `json:"total_amount" db:"total_amount"`
	OrderDate   time.Time       `json:"order_date" db:"order_date"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// MarshalJSON renders the total with MoneyPlaces fractional digits.
func (o Order) MarshalJSON() ([]byte, error) {
	type plain Order
	return json.Marshal(struct {
		plain
		TotalAmount string `json:"total_amount"`
	}{plain(o), o.TotalAmount.StringFixed(MoneyPlaces)})
}

// SumPrices adds up product prices exactly.
func SumPrices(products []Product) decimal.Decimal {
	total := decimal.Zero
	for _, p := range products {
		total = total.Add(p.Price)
	}
	return total
}

package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rl1809/crm/internal/core/domain"
	"github.com/rl1809/crm/internal/platform/logger"
)

type Reminders struct {
	base
	reader Reader
	days   int
}

// NewReminders logs orders placed within the last days days.
func NewReminders(sink Sink, reader Reader, days int, log *logger.Logger) *Reminders {
	if days <= 0 {
		days = 7
	}
	return &Reminders{base: newBase("reminders", sink, log), reader: reader, days: days}
}

func (r *Reminders) Name() string { return "reminders" }

func (r *Reminders) Run(ctx context.Context) {
	now := r.now()
	ts := now.Format(reportLayout)
	since := now.AddDate(0, 0, -r.days)

	orders, err := r.reader.ListOrders(ctx, domain.OrderFilter{OrderedFrom: &since})
	if err != nil {
		r.log.Error("list recent orders", "error", err)
		r.write(fmt.Sprintf("[%s] Error processing order reminders: %v", ts, err))
		return
	}
	if len(orders) == 0 {
		r.write(fmt.Sprintf("[%s] No orders found in the last %d days", ts, r.days))
		return
	}

	for _, o := range orders {
		email := "N/A"
		c, err := r.reader.GetCustomer(ctx, o.CustomerID)
		if err != nil {
			r.log.Warn("load order customer", "order_id", o.ID, "error", err)
		} else if c != nil {
			email = c.Email
		}
		r.write(fmt.Sprintf("[%s] Order ID: %d, Customer Email: %s, Order Date: %s",
			ts, o.ID, email, o.OrderDate.Format(time.RFC3339)))
	}
	r.log.Info("order reminders processed", "orders", len(orders))
}

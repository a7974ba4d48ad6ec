package jobs

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rl1809/crm/internal/core/domain"
	"github.com/rl1809/crm/internal/platform/logger"
)

const reportLayout = "2006-01-02 15:04:05"

type ReportSummary struct {
	Customers int
	Orders    int
	Revenue   decimal.Decimal
}

// Report writes a weekly count of customers and orders with total revenue.
type Report struct {
	base
	reader Reader
}

func NewReport(sink Sink, reader Reader, log *logger.Logger) *Report {
	return &Report{base: newBase("report", sink, log), reader: reader}
}

func (r *Report) Name() string { return "report" }

func (r *Report) Run(ctx context.Context) {
	ts := r.now().Format(reportLayout)

	sum, err := r.Summarize(ctx)
	if err != nil {
		r.log.Error("generate report", "error", err)
		r.write(fmt.Sprintf("%s - Error generating CRM report: %v", ts, err))
		return
	}
	r.write(fmt.Sprintf("%s - Report: %d customers, %d orders, %s revenue",
		ts, sum.Customers, sum.Orders, sum.Revenue.StringFixed(2)))
}

func (r *Report) Summarize(ctx context.Context) (ReportSummary, error) {
	customers, err := r.reader.ListCustomers(ctx, domain.CustomerFilter{})
	if err != nil {
		return ReportSummary{}, err
	}
	orders, err := r.reader.ListOrders(ctx, domain.OrderFilter{})
	if err != nil {
		return ReportSummary{}, err
	}

	revenue := decimal.Zero
	for _, o := range orders {
		revenue = revenue.Add(o.TotalAmount)
	}
	return ReportSummary{Customers: len(customers), Orders: len(orders), Revenue: revenue}, nil
}

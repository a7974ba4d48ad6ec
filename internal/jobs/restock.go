package jobs

import (
	"context"
	"fmt"

	"github.com/rl1809/crm/internal/platform/logger"
)

type Restock struct {
	base
	restocker Restocker
}

func NewRestock(sink Sink, restocker Restocker, log *logger.Logger) *Restock {
	return &Restock{base: newBase("restock", sink, log), restocker: restocker}
}

func (r *Restock) Name() string { return "restock" }

func (r *Restock) Run(ctx context.Context) {
	ts := r.now().Format(reportLayout)

	res, err := r.restocker.RestockLowStock(ctx)
	if err != nil {
		r.log.Error("restock low-stock products", "error", err)
		r.write(fmt.Sprintf("%s - Error updating low-stock products: %v", ts, err))
		return
	}
	if len(res.Products) == 0 {
		r.write(fmt.Sprintf("%s - No low-stock products", ts))
		return
	}
	for _, p := range res.Products {
		r.write(fmt.Sprintf("%s - Updated %s stock to %d", ts, p.Name, p.Stock))
	}
	r.log.Info(res.Message)
}

// Package jobs holds the scheduled collaborators. Each job reads or mutates
// through the services, writes its result lines to a Sink and never returns
// an error to the scheduler.
package jobs

import (
	"context"
	"time"

	"github.com/rl1809/crm/internal/core/domain"
	"github.com/rl1809/crm/internal/core/service"
	"github.com/rl1809/crm/internal/platform/logger"
)

type Job interface {
	Name() string
	Run(ctx context.Context)
}

// Reader is the read side the jobs need; *service.QueryService satisfies it.
type Reader interface {
	ListCustomers(ctx context.Context, f domain.CustomerFilter) ([]domain.Customer, error)
	ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error)
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
}

// Restocker is satisfied by *service.MutationService.
type Restocker interface {
	RestockLowStock(ctx context.Context) (service.RestockResult, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Probe is a named dependency checked by the heartbeat.
type Probe struct {
	Name   string
	Pinger Pinger
}

// base carries what every job shares.
type base struct {
	sink Sink
	log  *logger.Logger
	now  func() time.Time
}

func newBase(name string, sink Sink, log *logger.Logger) base {
	if log == nil {
		log = logger.Nop()
	}
	return base{sink: sink, log: log.With("job", name), now: time.Now}
}

func (b base) write(line string) {
	if err := b.sink.WriteLine(line); err != nil {
		b.log.Error("write job log", "error", err)
	}
}

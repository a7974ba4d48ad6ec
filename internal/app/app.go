package app

import (
	"context"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/crm/internal/adapter/storage"
	"github.com/rl1809/crm/internal/config"
	"github.com/rl1809/crm/internal/core/service"
	"github.com/rl1809/crm/internal/core/validation"
	"github.com/rl1809/crm/internal/jobs"
	"github.com/rl1809/crm/internal/platform/logger"
	"github.com/rl1809/crm/internal/port"
)

// Store is what the services need from a backend.
type Store interface {
	port.EntityStore
	port.TxManager
}

type App struct {
	Log       *logger.Logger
	Cfg       config.Config
	Store     Store
	Mutations *service.MutationService
	Queries   *service.QueryService
	Probes    []jobs.Probe

	closers []func() error
}

// New opens the configured store and email guard and wires the services.
// The guard is optional; an unreachable Redis is logged and skipped.
func New(ctx context.Context, cfg config.Config, log *logger.Logger) (*App, error) {
	a := &App{Log: log, Cfg: cfg}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store
	a.Probes = append(a.Probes, jobs.Probe{Name: "store", Pinger: store})

	var guard port.EmailGuard
	if rdb := a.openRedis(ctx); rdb != nil {
		r := storage.NewRedisAdapter(rdb, cfg.Redis.EmailLockTTL)
		guard = r
		a.Probes = append(a.Probes, jobs.Probe{Name: "redis", Pinger: r})
	}

	rules, err := validation.New(cfg.Validation)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init validation: %w", err)
	}

	a.Mutations = service.NewMutationService(store, store, guard, rules, log)
	a.Queries = service.NewQueryService(store)
	return a, nil
}

func (a *App) openStore(ctx context.Context) (Store, error) {
	if a.Cfg.Store.Driver == "memory" {
		a.Log.Warn("using in-memory store, data is lost on exit")
		return storage.NewMemoryAdapter(), nil
	}

	sc := a.Cfg.Store
	db, err := sqlx.Open("mysql", sc.MySQLDSN)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	db.SetMaxOpenConns(sc.MaxOpenConns)
	db.SetMaxIdleConns(sc.MaxIdleConns)
	db.SetConnMaxLifetime(sc.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	a.Log.Info("connected to mysql")

	if sc.Migrate {
		if err := storage.MigrateMySQL(sc.MySQLDSN); err != nil {
			return nil, fmt.Errorf("migrate mysql: %w", err)
		}
		a.Log.Info("schema migrated")
	}
	return storage.NewMySQLAdapter(db), nil
}

func (a *App) openRedis(ctx context.Context) *redis.Client {
	if a.Cfg.Redis.Addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     a.Cfg.Redis.Addr,
		PoolSize: a.Cfg.Redis.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		a.Log.Warn("redis unavailable, email guard disabled", "addr", a.Cfg.Redis.Addr, "error", err)
		rdb.Close()
		return nil
	}
	a.Log.Info("connected to redis", "addr", a.Cfg.Redis.Addr)
	a.closers = append(a.closers, rdb.Close)
	return rdb
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Log.Warn("close resource", "error", err)
		}
	}
	a.closers = nil
}

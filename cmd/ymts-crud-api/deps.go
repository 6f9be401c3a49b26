package main

import (
	"context"
	"fmt"

	"github.com/vmskonakanchi/ymts-crud-api/internal/config"
	"github.com/vmskonakanchi/ymts-crud-api/internal/health"
	"github.com/vmskonakanchi/ymts-crud-api/internal/ledger"
	"github.com/vmskonakanchi/ymts-crud-api/internal/store"
	"go.uber.org/zap"
)

func openLedger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ledger.Ledger, error) {
	switch cfg.Ledger.Driver {
	case config.LedgerDriverSQLite:
		return ledger.NewSQLiteLedger(ctx, cfg.Ledger.Path, logger)
	case config.LedgerDriverPostgres:
		pg := cfg.Ledger.Postgres
		return ledger.NewPostgresLedger(ctx, pg.Host, pg.Port, pg.Database, pg.User, pg.Password, pg.MaxConns, pg.MinConns, logger)
	default:
		return nil, fmt.Errorf("unknown ledger driver: %q", cfg.Ledger.Driver)
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.DocumentStore, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMongo:
		return store.NewMongoStore(ctx, cfg.Store.URI, cfg.Store.ConnectTimeout, logger)
	case config.StoreDriverMemory:
		logger.Warn("using in-memory document store; data is lost on restart")
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %q", cfg.Store.Driver)
	}
}

// openCache returns the tenant cache and the pinger used by readiness checks
func openCache(cfg *config.Config, logger *zap.Logger) (store.TenantCache, health.Pinger, error) {
	switch cfg.Cache.Driver {
	case config.CacheDriverRedis:
		c, err := store.NewRedisCache(cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB, cfg.Cache.TenantTTL, logger)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	case config.CacheDriverMemory:
		c := store.NewMemoryCache(cfg.Cache.TenantTTL, cfg.Cache.MaxSize)
		return c, health.PingFunc(func(context.Context) error { return nil }), nil
	default:
		return nil, nil, fmt.Errorf("unknown cache driver: %q", cfg.Cache.Driver)
	}
}

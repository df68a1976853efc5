package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/gudang/internal/audit"
	"github.com/odyssey-erp/gudang/internal/auth"
	"github.com/odyssey-erp/gudang/internal/history"
	"github.com/odyssey-erp/gudang/internal/ledger"
	"github.com/odyssey-erp/gudang/internal/observability"
	"github.com/odyssey-erp/gudang/internal/opname"
	"github.com/odyssey-erp/gudang/internal/platform/cache"
	"github.com/odyssey-erp/gudang/internal/platform/db"
	"github.com/odyssey-erp/gudang/internal/products"
	"github.com/odyssey-erp/gudang/internal/rowstore"
	"github.com/odyssey-erp/gudang/internal/shared"
)

// Components holds the assembled services shared by the API server and the worker.
type Components struct {
	Config  *Config
	Logger  *slog.Logger
	Store   rowstore.Store
	Redis   *redis.Client
	Metrics *observability.Metrics

	Auth     *auth.Service
	Products *products.Service
	Ledger   *ledger.Service
	Opname   *opname.Service
	History  *history.Service
	Audit    *audit.Service

	closers []func()
}

// Build connects the backing stores named by cfg and assembles the services.
// Redis is optional: without it locks are in-process and nothing is cached.
func Build(ctx context.Context, cfg *Config, logger *slog.Logger) (*Components, error) {
	var (
		base    rowstore.Store
		closers []func()
	)
	switch cfg.RowStoreDriver {
	case DriverMemory:
		logger.Warn("using in-memory row store; data is lost on restart")
		base = rowstore.NewMemory()
	default:
		pool, err := db.New(ctx, cfg.PGDSN, db.Options{ConnectTimeout: cfg.RowStoreTimeout})
		if err != nil {
			return nil, err
		}
		closers = append(closers, pool.Close)
		pg := rowstore.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure row store schema: %w", err)
		}
		base = pg
	}

	redisClient := cache.Optional(ctx, cfg.RedisAddr, logger)
	if redisClient != nil {
		closers = append(closers, func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		})
	}

	c := Assemble(rowstore.WithRetry(base, cfg.RowStoreTimeout, logger), redisClient, cfg, logger)
	c.closers = closers
	return c, nil
}

// Assemble wires services over an already opened store. redisClient may be nil.
func Assemble(store rowstore.Store, redisClient *redis.Client, cfg *Config, logger *slog.Logger) *Components {
	if logger == nil {
		logger = slog.Default()
	}
	loc := cfg.Location()
	metrics := observability.NewMetrics()

	var (
		locker shared.Locker = shared.NewKeyedMutex()
		idem   *shared.IdempotencyStore
	)
	if redisClient != nil {
		locker = shared.NewRedisLocker(redisClient, cfg.LockTTL, cfg.LockWait)
		idem = shared.NewIdempotencyStore(redisClient, cfg.IdempotencyTTL)
	}
	historyCache := history.NewCache(redisClient, cfg.HistoryCacheTTL, logger)

	productRepo := products.NewRepository(store)
	ledgerRepo := ledger.NewRepository(store)
	opnameRepo := opname.NewRepository(store)
	auditLog := audit.NewLogger(store)

	return &Components{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Redis:    redisClient,
		Metrics:  metrics,
		Auth:     auth.NewService(cfg.AuthTokens, cfg.AuthApprovers),
		Products: products.NewService(productRepo, ledgerRepo, products.ServiceConfig{
			Logger:   logger,
			Notifier: historyCache,
		}),
		Ledger: ledger.NewService(productRepo, ledgerRepo, locker, idem, auditLog, ledger.ServiceConfig{
			Logger:   logger,
			Metrics:  metrics,
			Notifier: historyCache,
		}),
		Opname: opname.NewService(opnameRepo, productRepo, locker, auditLog, opname.ServiceConfig{
			Logger:   logger,
			Metrics:  metrics,
			Notifier: historyCache,
			Location: loc,
		}),
		History: history.NewService(productRepo, ledgerRepo, history.ServiceConfig{
			Logger:   logger,
			Cache:    historyCache,
			Location: loc,
		}),
		Audit: audit.NewService(auditLog),
	}
}

// Close releases connections in reverse order of acquisition.
func (c *Components) Close() {
	if c == nil {
		return
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

package app

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/storage"
	"github.com/xenking/storefront/internal/storage/memory"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/internal/storage/redis"
)

// OpenStore connects the configured backend behind a circuit breaker. The
// returned close function releases the connection.
func OpenStore(ctx context.Context, cfg StoreConfig) (storage.Client, func(), error) {
	lg := zctx.From(ctx)

	var (
		store storage.Client
		done  = func() {}
	)
	switch cfg.Backend {
	case BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, errors.Wrap(err, "run migrations")
		}
		store, done = postgres.NewStore(pool), pool.Close
	case BackendRedis:
		client, err := redis.NewClient(ctx, redis.Config{
			URL:      cfg.RedisURL,
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect redis")
		}
		store, done = redis.NewStore(client), func() { _ = client.Close() }
	case BackendMemory:
		lg.Warn("Using in-memory store, data is lost on restart")
		store = memory.New()
	default:
		return nil, nil, errors.Errorf("unknown store backend %q", cfg.Backend)
	}

	lg.Info("Store connected", zap.String("backend", cfg.Backend))
	return storage.WithBreaker(store, storage.BreakerConfig{
		Name:         "store-" + cfg.Backend,
		Timeout:      cfg.Breaker.Timeout,
		Interval:     cfg.Breaker.Interval,
		MinRequests:  cfg.Breaker.MinRequests,
		FailureRatio: cfg.Breaker.FailureRatio,
	}), done, nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	"playresolver/internal/app"
	"playresolver/internal/cache"
	"playresolver/internal/musicbrainz"
	"playresolver/internal/resolve"
)

const backendConnectTimeout = 5 * time.Second

// buildCache opens the configured cache backend. A backend that cannot be
// reached falls back to the in-memory cache rather than failing startup.
// The returned func releases the backend's resources.
func buildCache(ctx context.Context, cfg app.Config, logger *slog.Logger) (resolve.Cache, func()) {
	noop := func() {}
	memory := func() (resolve.Cache, func()) {
		return cache.NewMemory(cache.WithMaxEntries(cfg.CacheMaxEntries)), noop
	}

	switch cfg.CacheBackend {
	case app.CacheNone:
		return nil, noop
	case app.CacheRedis:
		redisURL := strings.TrimSpace(cfg.RedisURL)
		if redisURL == "" {
			logger.Warn("CACHE_BACKEND=redis without REDIS_URL, using in-memory cache")
			return memory()
		}
		redisOpts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Warn("invalid redis url, using in-memory cache", slog.String("error", err.Error()))
			return memory()
		}
		client := redis.NewClient(redisOpts)
		backend := cache.NewRedis(client)
		pingCtx, cancel := context.WithTimeout(ctx, backendConnectTimeout)
		defer cancel()
		if err := backend.Ping(pingCtx); err != nil {
			_ = client.Close()
			logger.Warn("redis not reachable, using in-memory cache", slog.String("error", err.Error()))
			return memory()
		}
		logger.Info("redis cache connected", slog.String("addr", redisOpts.Addr))
		return backend, func() { _ = client.Close() }
	case app.CacheMongo:
		if strings.TrimSpace(cfg.MongoURI) == "" {
			logger.Warn("CACHE_BACKEND=mongo without MONGO_URI, using in-memory cache")
			return memory()
		}
		connectCtx, cancel := context.WithTimeout(ctx, backendConnectTimeout)
		defer cancel()
		client, err := cache.ConnectMongo(connectCtx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
		if err != nil {
			logger.Warn("mongo connect failed, using in-memory cache", slog.String("error", err.Error()))
			return memory()
		}
		if err := client.Ping(connectCtx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			logger.Warn("mongo not reachable, using in-memory cache", slog.String("error", err.Error()))
			return memory()
		}
		backend := cache.NewMongo(client, cfg.MongoDatabase, cfg.MongoCacheCollection)
		if err := backend.EnsureIndexes(connectCtx); err != nil {
			logger.Warn("mongo cache index creation failed", slog.String("error", err.Error()))
		}
		logger.Info("mongo cache connected",
			slog.String("database", cfg.MongoDatabase),
			slog.String("collection", cfg.MongoCacheCollection),
		)
		return backend, func() { _ = client.Disconnect(context.Background()) }
	case app.CacheSQLite:
		backend, err := cache.OpenSQLite(cfg.SQLiteCachePath)
		if err != nil {
			logger.Warn("sqlite cache unavailable, using in-memory cache", slog.String("error", err.Error()))
			return memory()
		}
		logger.Info("sqlite cache opened", slog.String("path", cfg.SQLiteCachePath))
		return backend, func() { _ = backend.Close() }
	default:
		return memory()
	}
}

func buildService(cfg app.Config, resolver app.Resolver, store resolve.Cache, logger *slog.Logger) (*resolve.Service, error) {
	if len(resolver.Hosts) == 0 {
		return nil, fmt.Errorf("no metadata hosts configured")
	}
	hosts := make([]resolve.Host, 0, len(resolver.Hosts))
	for _, hostCfg := range resolver.Hosts {
		if hostCfg.UserAgent == "" {
			hostCfg.UserAgent = cfg.UserAgent
		}
		hosts = append(hosts, musicbrainz.NewClient(hostCfg))
	}

	poolOpts := []resolve.PoolOption{resolve.WithPoolLogger(logger)}
	if store != nil {
		poolOpts = append(poolOpts, resolve.WithCache(store))
	}
	pool := resolve.NewPool(hosts, poolOpts...)

	return resolve.NewService(pool,
		resolve.WithDefaults(resolver.Defaults),
		resolve.WithResolveTimeout(cfg.ResolveTimeout),
		resolve.WithBatchConcurrency(cfg.BatchConcurrency),
		resolve.WithLogger(logger),
	), nil
}

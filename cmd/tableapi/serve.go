package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dwidge/table-api/authn"
	"github.com/dwidge/table-api/cfgmng"
	"github.com/dwidge/table-api/eventbus"
	"github.com/dwidge/table-api/ginsrv"
	"github.com/dwidge/table-api/httpx"
	"github.com/dwidge/table-api/observability"
	"github.com/dwidge/table-api/records"
	"github.com/dwidge/table-api/sietch"
	"github.com/dwidge/table-api/wp"
	"github.com/go-redis/redis/v8"
	"github.com/heptiolabs/healthcheck"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tables over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg *cfgmng.ServerConfig, logger *zap.Logger) error {
	db, err := sietch.NewPostgresPool(ctx, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if cfg.Database.CreateTables {
		if err := createTables(ctx, db); err != nil {
			return err
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)
	tracer := observability.NewTracer(otel.GetTracerProvider())

	caches, redisClient := newCacheFactory(cfg.Cache)
	if redisClient != nil {
		defer redisClient.Close()
	}

	bus, err := newBus(cfg.NATS, logger)
	if err != nil {
		return err
	}
	defer bus.Close()

	var pool *wp.Pool
	if cfg.Batch.Workers > 0 {
		pool = wp.NewPool(cfg.Batch.Workers, cfg.Batch.Queue, wp.WithPanicHandler(func(v any) {
			logger.Error("batch task panicked", zap.Any("panic", v))
		}))
		defer pool.Stop()
	}

	open := func(def *sietch.TableDef, _ map[string]sietch.Existence) (sietch.Store, error) {
		store, err := sietch.NewPostgresStore(db, def, sietch.WithQueryLogger(sietch.NewZapLogger(logger)))
		if err != nil {
			return nil, err
		}
		return sietch.NewCachedStore(store, caches(def.Name), sietch.CacheStrategyWriteThrough), nil
	}

	endpoints, err := buildEndpoints(open, tableDeps{
		log:      logger,
		metrics:  metrics,
		tracer:   tracer,
		observer: records.Observers(records.NewLogObserver(logger), records.NewBusObserver(bus, cfg.NATS.Prefix, logger)),
		pool:     pool,
	})
	if err != nil {
		return err
	}

	resolver, err := newResolver(cfg.Auth, metrics, tracer, logger)
	if err != nil {
		return err
	}

	tables := ginsrv.NewTableHandler(
		ginsrv.NewRegistry().MustRegister(endpoints...),
		resolver,
		ginsrv.WithMaxBody(cfg.HTTP.MaxBodyBytes),
		ginsrv.WithLogger(logger),
	)
	router := ginsrv.SetupRouter(tables.Routes(cfg.HTTP.Prefix), ginsrv.DefaultMiddlewares(logger)...)

	var shuttingDown atomic.Bool
	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(1000))
	health.AddReadinessCheck("shutdown", func() error {
		if shuttingDown.Load() {
			return errors.New("shutting down")
		}
		return nil
	})
	health.AddReadinessCheck("database", healthcheck.Timeout(func() error {
		return db.Ping(context.Background())
	}, 2*time.Second))
	if redisClient != nil {
		health.AddReadinessCheck("redis", healthcheck.Timeout(func() error {
			return redisClient.Ping(context.Background()).Err()
		}, time.Second))
	}

	ops := http.NewServeMux()
	ops.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	ops.Handle("/", health)

	servers := []*http.Server{
		{Addr: cfg.HTTP.Addr, Handler: router, ReadHeaderTimeout: 10 * time.Second},
		{Addr: cfg.HTTP.HealthAddr, Handler: ops, ReadHeaderTimeout: 10 * time.Second},
	}

	errs := make(chan error, len(servers))
	for _, srv := range servers {
		go func() {
			logger.Info("listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- fmt.Errorf("serve %s: %w", srv.Addr, err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errs:
		logger.Error("server failed", zap.Error(err))
	}

	shuttingDown.Store(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			logger.Warn("shutdown", zap.String("addr", srv.Addr), zap.Error(serr))
		}
	}

	return err
}

// newCacheFactory returns per-table row caches backed by redis when
// configured, an in-process LRU otherwise
func newCacheFactory(cfg cfgmng.CacheConfig) (func(table string) sietch.Cache, *redis.Client) {
	if cfg.RedisAddr == "" {
		return func(string) sietch.Cache {
			return sietch.NewLRUCache(cfg.Size, cfg.TTL)
		}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return func(table string) sietch.Cache {
		return sietch.NewRedisCache(client, table, cfg.TTL, nil)
	}, client
}

func newBus(cfg cfgmng.NATSConfig, logger *zap.Logger) (eventbus.Bus, error) {
	if cfg.URL == "" {
		return eventbus.NewInMemBus(), nil
	}
	bus, err := eventbus.NewNatsBus[records.Event](cfg.URL, logger)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return bus, nil
}

// newResolver validates tokens locally when a secret is configured and asks
// the remote auth service otherwise. Remote answers are cached.
func newResolver(cfg cfgmng.AuthConfig, metrics *observability.Metrics, tracer *observability.Tracer, logger *zap.Logger) (authn.Resolver, error) {
	if cfg.JWTSecret != "" {
		resolver, err := authn.NewJWTResolver([]byte(cfg.JWTSecret), authn.WithIssuer(cfg.Issuer), authn.WithJWTLogger(logger))
		if err != nil {
			return nil, err
		}
		return resolver, nil
	}

	client := httpx.NewClient(
		httpx.WithBaseURL(cfg.RemoteURL),
		httpx.WithRetry(httpx.RetryConfig{MaxAttempts: cfg.Retries, OnlyIdempotent: true}),
		httpx.WithMetrics(metrics),
		httpx.WithTracer(tracer),
		httpx.WithLogger(logger),
	)
	var resolver authn.Resolver = authn.NewRemoteResolver(client, cfg.RemotePath, logger)
	if cfg.CacheSize > 0 {
		resolver = authn.NewCachingResolver(resolver, cfg.CacheSize, cfg.CacheTTL)
	}
	return resolver, nil
}

func createTables(ctx context.Context, db *pgxpool.Pool) error {
	for _, def := range tableDefs() {
		if err := sietch.CreateTable(ctx, db, def); err != nil {
			return fmt.Errorf("create table %s: %w", def.Name, err)
		}
	}
	return nil
}

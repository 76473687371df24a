package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/friendhub/internal/config"
	"github.com/geocoder89/friendhub/internal/db"
	httpx "github.com/geocoder89/friendhub/internal/http"
	"github.com/geocoder89/friendhub/internal/http/handlers"
	"github.com/geocoder89/friendhub/internal/http/middlewares"
	"github.com/geocoder89/friendhub/internal/observability"
	"github.com/geocoder89/friendhub/internal/redisclient"
	"github.com/geocoder89/friendhub/internal/repo/memory"
	"github.com/geocoder89/friendhub/internal/repo/mongodb"
	"github.com/geocoder89/friendhub/internal/repo/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, "friendhub", cfg.Env, cfg.OTELEndpoint)
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	store, closeStore, err := openStore(ctx, cfg, prom, log)
	if err != nil {
		log.Error("store init failed", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}

	deps := httpx.Deps{
		Store:    store,
		Prom:     prom,
		Gatherer: reg,
		Tracing:  cfg.OTELEndpoint != "",
	}

	// Redis is optional; without it the limiter is per-process
	var rdb *redisclient.Client
	if cfg.RedisAddr != "" {
		rdb = redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rdb.Ping(pingCtx); err != nil {
			log.Warn("redis not reachable at startup, limiter fails open until it is", "addr", cfg.RedisAddr, "err", err)
		}
		cancel()

		deps.Limiter = middlewares.NewRedisLimiter(rdb, cfg.AuthRateLimit, cfg.AuthRateWindow)
		deps.Checks = map[string]handlers.Pinger{"redis": rdb.Ping}
	}

	router := httpx.NewRouter(log, cfg, deps)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("server shutting down")
	case err := <-serverErr:
		log.Error("server failed", "err", err)
	}

	shutdownCtx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}

	if rdb != nil {
		_ = rdb.Close()
	}
	closeStore(shutdownCtx)

	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error("tracer shutdown failed", "err", err)
	}

	log.Info("shutdown complete")
}

// openStore connects the configured backend and prepares its schema.
func openStore(ctx context.Context, cfg config.Config, prom *observability.Prom, log *slog.Logger) (httpx.UserStore, func(context.Context), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		pool, err := db.NewPool(connectCtx, cfg.DBURL, cfg.DBMaxConns)
		if err != nil {
			return nil, nil, err
		}

		if err := db.Migrate(connectCtx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}

		log.Info("postgres ready", "max_conns", cfg.DBMaxConns)
		return postgres.NewUsersRepo(pool, prom), func(context.Context) { pool.Close() }, nil

	case config.DriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		client, err := db.NewMongoClient(connectCtx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}

		repo := mongodb.NewUsersRepo(client.Database(cfg.MongoDatabase), prom)
		if err := repo.EnsureIndexes(connectCtx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("ensure indexes: %w", err)
		}

		log.Info("mongo ready", "database", cfg.MongoDatabase)
		return repo, func(ctx context.Context) { _ = client.Disconnect(ctx) }, nil

	case config.DriverMemory:
		log.Warn("using in-memory store, data is lost on restart")
		return memory.NewUsersRepo(), func(context.Context) {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"warden/internal/assignment"
	"warden/internal/backend"
	"warden/internal/governor"
	"warden/internal/governor/metrics"
	"warden/internal/ledger"
	"warden/internal/permission"
	"warden/internal/platform/config"
	"warden/internal/platform/httpserver"
	"warden/internal/platform/logger"
	"warden/internal/platform/middleware"
	"warden/internal/platform/redis"
	"warden/internal/registry"
	"warden/internal/stream"
	httptransport "warden/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps
// the server lifecycle small. Business logic lives in internal services
// packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := registry.Default()
	reg.Freeze()

	led, err := ledger.Open(cfg.AuditDir)
	if err != nil {
		return err
	}
	defer led.Close()

	streamOpts := []stream.Option{stream.WithHistory(cfg.StreamHistory)}
	rdb, err := redis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		streamOpts = append(streamOpts, stream.WithExternal(stream.NewRedisPublisher(rdb.Client)))
		log.Info("redis connected, external audit broadcast enabled")
	}
	broadcaster := stream.New(log, streamOpts...)

	grants, pool, err := newGrantStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
		log.Info("postgres connected, grants persisted")
	} else {
		log.Info("no database configured, grants held in memory")
	}

	client := backend.NewClient(cfg.BackendURL, cfg.ExecTimeout)
	svc := governor.New(permission.New(reg), led, broadcaster, client, log,
		governor.WithExecutionTimeout(cfg.ExecTimeout),
		governor.WithMetrics(metrics.New()),
	)

	auth := middleware.NewAuthenticator(cfg.JWTSigningKey, grants, log)
	handler := httptransport.NewHandler(svc, broadcaster, cfg.AuditDir, grants, client, log)
	router := httptransport.NewRouter(handler, auth.RequireUser)

	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting warden", "addr", cfg.Addr, "backend", cfg.BackendURL, "audit_dir", led.Dir())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return httpserver.Shutdown(srv)
	})
	return g.Wait()
}

// newGrantStore returns a postgres-backed store when a database URL is
// configured, falling back to the in-memory store otherwise.
func newGrantStore(ctx context.Context, databaseURL string) (assignment.Store, *pgxpool.Pool, error) {
	if databaseURL == "" {
		return assignment.NewInMemoryStore(), nil, nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}
	store := assignment.NewPostgresStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool, nil
}

// Package app wires the storefront-api server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/freshcart/internal/domain/cart"
	"github.com/xenking/freshcart/internal/domain/product"
	"github.com/xenking/freshcart/internal/mockapi"
	"github.com/xenking/freshcart/internal/storage/memory"
	"github.com/xenking/freshcart/internal/storage/postgres"
	"github.com/xenking/freshcart/internal/storage/seed"
	"github.com/xenking/freshcart/pkg/health"
	"github.com/xenking/freshcart/pkg/httpmiddleware"
)

const serviceName = "storefront-api"

// stores are the repositories the handler serves from.
type stores struct {
	products product.Repository
	carts    cart.Repository
	pool     *pgxpool.Pool
}

func (s *stores) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// openStores selects PostgreSQL when a database URL is configured and the
// in-memory store seeded with the embedded catalog otherwise.
func openStores(ctx context.Context, lg *zap.Logger, cfg *Config) (*stores, error) {
	catalog, err := seed.Products()
	if err != nil {
		return nil, errors.Wrap(err, "load catalog")
	}

	if cfg.DatabaseURL == "" {
		lg.Info("Using in-memory store", zap.Int("products", len(catalog)))
		mem := memory.New(catalog)
		return &stores{products: mem, carts: mem}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	productRepo := postgres.NewProductRepository(pool)
	if cfg.SeedCatalog {
		if err := productRepo.Upsert(ctx, catalog); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "seed catalog")
		}
		lg.Info("Seeded catalog", zap.Int("products", len(catalog)))
	}
	lg.Info("Using PostgreSQL store")
	return &stores{
		products: productRepo,
		carts:    postgres.NewCartRepository(pool),
		pool:     pool,
	}, nil
}

// newHealth registers the probes. The pool may be nil.
func newHealth(lg *zap.Logger, pool *pgxpool.Pool) *health.Health {
	h := health.New(lg.Named("health"))
	if pool != nil {
		h.Register(health.Readiness, health.Check{
			Name:    "postgres",
			Timeout: 5 * time.Second,
			Func:    health.PingCheck(pool),
		})
	}
	for _, c := range livenessChecks() {
		h.Register(health.Liveness, c)
	}
	return h
}

func livenessChecks() []health.Check {
	return []health.Check{
		{
			Name:    "goroutines",
			Timeout: time.Second,
			Func:    health.GoroutineCountCheck(10000),
		},
		{
			Name:    "gc_pause",
			Timeout: time.Second,
			Func:    health.GCMaxPauseCheck(time.Second),
		},
	}
}

// newRouter builds the handler tree: probes, the storefront endpoints and
// the middleware chain around them.
func newRouter(ctx context.Context, lg *zap.Logger, tel httpmiddleware.Telemetry, cfg *Config, s *stores, hs *health.Health) http.Handler {
	h := mockapi.NewHandler(
		mockapi.HandlerConfig{ImageBaseURL: cfg.ImageBaseURL},
		s.products,
		s.carts,
	)

	r := chi.NewRouter()
	r.Get("/livez", hs.Handler(health.Liveness))
	r.Get("/readyz", hs.Handler(health.Readiness))
	r.Mount("/", h.Routes())

	find := httpmiddleware.MakeRouteFinder(r)
	return httpmiddleware.Wrap(r,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.RequestID(),
		httpmiddleware.Instrument(serviceName, find, tel),
		httpmiddleware.LogRequests(find),
		httpmiddleware.Labeler(find),
	)
}

// Run opens the stores, serves HTTP on cfg.Addr and shuts down gracefully
// once ctx is done.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	s, err := openStores(ctx, lg, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	hs := newHealth(lg, s.pool)
	hs.Start(ctx, 10*time.Second)
	hs.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, zctx.From(ctx), m, cfg, s, hs),
	}

	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		hs.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		hs.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

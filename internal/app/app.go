// Package app wires the takeaway API server together.
package app

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/takeaway/internal/domain/checkout"
	"github.com/xenking/takeaway/internal/domain/menu"
	"github.com/xenking/takeaway/internal/domain/order"
	"github.com/xenking/takeaway/internal/handler"
	"github.com/xenking/takeaway/internal/payment"
	"github.com/xenking/takeaway/internal/receipt"
	"github.com/xenking/takeaway/internal/repository"
	"github.com/xenking/takeaway/pkg/health"
	"github.com/xenking/takeaway/pkg/httpmiddleware"
)

const serviceName = "takeaway-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Card processor.
	var processor checkout.Processor = payment.Disabled{}
	if cfg.Stripe.SecretKey != "" {
		stripe, err := payment.NewStripe(cfg.Stripe.SecretKey)
		if err != nil {
			return errors.Wrap(err, "create stripe client")
		}
		processor = stripe
	} else {
		lg.Warn("Stripe secret key not set, card checkout disabled")
	}

	// Domain services.
	menuService := menu.NewService(repository.NewMenuRepository(pool))
	orderService, err := order.NewService(
		repository.NewOrderRepository(pool),
		m.MeterProvider().Meter("github.com/xenking/takeaway/internal/domain/order"),
	)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}
	coordinator, err := checkout.NewCoordinator(
		menuService,
		orderService,
		repository.NewCheckoutRepository(pool),
		processor,
		checkout.Options{
			Currency:       cfg.Stripe.Currency,
			SessionTTL:     cfg.Checkout.SessionTTL,
			MeterProvider:  m.MeterProvider(),
			TracerProvider: m.TracerProvider(),
		},
	)
	if err != nil {
		return errors.Wrap(err, "create checkout coordinator")
	}

	// Expired card sessions are settled in the background.
	var lastPurge atomic.Int64
	go coordinator.RunJanitor(ctx, cfg.Checkout.JanitorInterval, janitorReporter(lg, &lastPurge, time.Now))

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("checkout-janitor", time.Second, health.HeartbeatCheck(func() time.Time {
		if ns := lastPurge.Load(); ns != 0 {
			return time.Unix(0, ns)
		}
		return time.Time{}
	}, 3*cfg.Checkout.JanitorInterval))

	// HTTP handlers.
	h := handler.NewHandler(
		handler.HandlerConfig{
			Restaurant: receipt.Restaurant{
				Name:    cfg.Restaurant.Name,
				Address: cfg.Restaurant.Address,
				Phone:   cfg.Restaurant.Phone,
			},
			CheckoutRateLimit: httpmiddleware.RateLimitConfig{
				Max:    cfg.Checkout.RateLimit.Max,
				Window: cfg.Checkout.RateLimit.Window,
			},
			ConfirmRedirect: cfg.Checkout.ConfirmRedirect,
		},
		menuService,
		orderService,
		coordinator,
	)

	// Router: health endpoints + API routes on one server.
	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	router.Mount("/", h.Router(ctx))
	routeFinder := httpmiddleware.MakeRouteFinder(router)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				Origins: cfg.CORS.Origins,
				Headers: []string{"Content-Type", httpmiddleware.HeaderRequestID},
				MaxAge:  86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.Instrument(serviceName, routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}
	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

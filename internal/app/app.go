package app

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/db"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/session"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/identity"
	"github.com/xenking/storefront/internal/repository"
	"github.com/xenking/storefront/internal/seed"
	"github.com/xenking/storefront/internal/shopper"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

var allowedMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut,
	http.MethodPatch, http.MethodDelete, http.MethodOptions,
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr), zap.String("store", cfg.Store.Backend))

	store, closeStore, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("store", 5*time.Second, health.StorageCheck(store))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)

	// Repositories.
	productRepo := repository.NewProductRepository(store)
	couponRepo := repository.NewCouponRepository(store)
	orderRepo := repository.NewOrderRepository(store)
	apikeyRepo := repository.NewAPIKeyRepository(store)

	catalog, err := seed.ParseCatalog(bytes.NewReader(db.SeedProducts))
	if err != nil {
		return errors.Wrap(err, "parse seed catalog")
	}
	seeder := seed.NewSeeder(store, catalog)
	if cfg.SeedOnStart {
		if err := seedDemo(ctx, seeder, couponRepo); err != nil {
			return err
		}
	}

	// Domain services.
	productService := product.NewService(productRepo)
	orderService := order.NewService(orderRepo, coupon.NewRepoValidator(couponRepo), cfg.Checkout.PaymentDelay)
	keys := auth.NewAuthenticator(apikeyRepo, []byte(cfg.APIKeyPepper))

	dir := identity.NewDirectory(store, 0)
	shoppers := shopper.NewRegistry(func() session.Provider { return identity.NewClient(dir) }, cfg.Session.IdleTTL)
	go func() { _ = shoppers.Run(ctx) }()

	h := handler.New(
		handler.Config{ImageBaseURL: cfg.ImageBaseURL},
		productService,
		orderService,
		shoppers,
		keys,
		seeder,
	)

	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	h.Mount(router)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Checkout waits for the simulated payment gateway.
		WriteTimeout:   10*time.Second + cfg.Checkout.PaymentDelay,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		// Carries the base logger to middleware that runs before InjectLogger.
		BaseContext: func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowMethods:     allowedMethods,
				AllowHeaders:     []string{"Content-Type", handler.APIKeyHeader, handler.SessionHeader},
				ExposeHeaders:    []string{handler.SessionHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
				Skip:   httpmiddleware.SkipPaths("/livez", "/readyz"),
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("storefront-api", m),
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
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// seedDemo loads the demo catalog into an empty store and adds any missing
// demo coupons.
func seedDemo(ctx context.Context, seeder *seed.Seeder, coupons *repository.CouponRepository) error {
	n, err := seeder.Initialize(ctx)
	if err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	added := 0
	for _, rule := range coupon.DemoRules() {
		_, err := coupons.FindByCode(ctx, rule.Code)
		switch {
		case err == nil:
			continue
		case !errors.Is(err, coupon.ErrInvalidCoupon):
			return errors.Wrap(err, "lookup coupon")
		}
		if err := coupons.Save(ctx, rule); err != nil {
			return errors.Wrap(err, "seed coupon")
		}
		added++
	}
	zctx.From(ctx).Info("Demo data ready", zap.Int("products", n), zap.Int("coupons", added))
	return nil
}

package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/auth"
	"github.com/xenking/storefront-checkout/internal/domain/checkout"
	"github.com/xenking/storefront-checkout/internal/domain/coupon"
	"github.com/xenking/storefront-checkout/internal/events"
	"github.com/xenking/storefront-checkout/internal/handler"
	"github.com/xenking/storefront-checkout/internal/payment"
	"github.com/xenking/storefront-checkout/internal/storage/mongo"
	"github.com/xenking/storefront-checkout/internal/storage/postgres"
	"github.com/xenking/storefront-checkout/internal/storage/redis"
	"github.com/xenking/storefront-checkout/pkg/health"
	"github.com/xenking/storefront-checkout/pkg/httpmiddleware"
)

const serviceName = "storefront-checkout"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	var deps dependencyChecks

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	deps.Postgres = health.PingCheck(pool)

	// MongoDB cart store.
	mdb, err := mongo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return errors.Wrap(err, "connect mongo")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := mdb.Client().Disconnect(disconnectCtx); err != nil {
			lg.Warn("Mongo disconnect error", zap.Error(err))
		}
	}()
	cartRepo := mongo.NewCartRepository(mdb)
	deps.Mongo = health.PingCheck(cartRepo)

	var locker checkout.Locker = checkout.NopLocker{}

	// Carts are owned by an external service and always read from the
	// store. Redis only backs the confirmation lock.
	if cfg.Redis.URL != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = rdb.Close() }()

		locker = redis.NewLocker(rdb, cfg.Redis.LockTTL)
		deps.Redis = health.RedisCheck(rdb)
	} else {
		lg.Warn("Redis is not configured, confirmation lock disabled")
	}

	// Kafka order events, when configured.
	var publisher checkout.Publisher = checkout.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(events.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		})
		if err != nil {
			return errors.Wrap(err, "create kafka publisher")
		}
		defer func() {
			if err := kp.Close(); err != nil {
				lg.Warn("Kafka writer close error", zap.Error(err))
			}
		}()
		publisher = kp
		deps.Kafka = health.PingCheck(kp)
	}

	// Payment provider.
	provider, err := payment.NewStripeProvider(payment.Config{
		SecretKey:      cfg.Stripe.SecretKey,
		APIURL:         cfg.Stripe.BaseURL,
		Currency:       cfg.Stripe.Currency,
		PaymentMethods: cfg.Stripe.PaymentMethods,
		SuccessURL:     cfg.Stripe.SuccessURL,
		CancelURL:      cfg.Stripe.CancelURL,
		Timeout:        cfg.Stripe.Timeout,
		Breaker: payment.BreakerConfig{
			MaxFailures: cfg.Stripe.MaxFailures,
			OpenTimeout: cfg.Stripe.OpenTimeout,
		},
	}, lg.Named("stripe"))
	if err != nil {
		return errors.Wrap(err, "create payment provider")
	}
	deps.Stripe = health.PingCheck(provider)

	// Domain services.
	policy, err := cfg.Reward.Policy()
	if err != nil {
		return errors.Wrap(err, "reward policy")
	}
	couponRepo := postgres.NewCouponRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	couponSvc := coupon.NewService(couponRepo, policy)

	checkoutSvc, err := checkout.NewService(couponSvc, cartRepo, orderRepo, provider, checkout.Options{
		Locker:         locker,
		Publisher:      publisher,
		RewardOn:       checkout.RewardTiming(cfg.Reward.IssueOn),
		MeterProvider:  m.MeterProvider(),
		TracerProvider: m.TracerProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create checkout service")
	}

	verifier, err := auth.NewVerifier([]byte(cfg.Auth.Secret), cfg.Auth.CookieName)
	if err != nil {
		return errors.Wrap(err, "create token verifier")
	}

	healthSvc := health.New()
	registerChecks(healthSvc, deps)
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	sessionLimit := httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
		Max:     cfg.RateLimit.SessionMax,
		Window:  cfg.RateLimit.SessionWindow,
		KeyFunc: sessionLimitKey,
	})
	router := newRouter(healthSvc, verifier, handler.NewHandler(checkoutSvc, couponSvc, orderRepo), sessionLimit)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Stripe.Timeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "X-Request-ID"},
				ExposeHeaders:    []string{"X-Request-ID"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.Instrument(serviceName, m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
		),
	}

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

// dependencyChecks are the readiness checks of the service. Nil checks are
// not configured.
type dependencyChecks struct {
	Postgres health.CheckFunc
	Mongo    health.CheckFunc
	Redis    health.CheckFunc
	Kafka    health.CheckFunc
	Stripe   health.CheckFunc
}

// registerChecks adds the liveness check and one readiness check per
// configured dependency. Orders and carts are critical; the lock, the event
// bus and the payment breaker only degrade readiness.
func registerChecks(h *health.Health, d dependencyChecks) {
	h.Register(health.Check{
		Name:    "goroutines",
		Kind:    health.Liveness,
		Timeout: time.Second,
		Func:    health.GoroutineCountCheck(10000),
	})

	for _, c := range []struct {
		name     string
		fn       health.CheckFunc
		timeout  time.Duration
		optional bool
	}{
		{name: "postgres", fn: d.Postgres, timeout: 5 * time.Second},
		{name: "mongo", fn: d.Mongo, timeout: 5 * time.Second},
		{name: "redis", fn: d.Redis, timeout: 2 * time.Second, optional: true},
		{name: "kafka", fn: d.Kafka, timeout: 5 * time.Second, optional: true},
		{name: "stripe", fn: d.Stripe, timeout: time.Second, optional: true},
	} {
		if c.fn == nil {
			continue
		}
		h.Register(health.Check{
			Name:     c.name,
			Kind:     health.Readiness,
			Timeout:  c.timeout,
			Optional: c.optional,
			Func:     c.fn,
		})
	}
}

// sessionLimitKey buckets session creation per authenticated user, so users
// behind one NAT do not share a limit.
func sessionLimitKey(r *http.Request) string {
	if id, ok := auth.UserID(r.Context()); ok {
		return "user:" + id
	}
	return "ip:" + httpmiddleware.ClientIP(r)
}

// newRouter mounts the health endpoints and the authenticated /api routes.
func newRouter(
	healthSvc *health.Health,
	verifier *auth.Verifier,
	h *handler.Handler,
	sessionLimit httpmiddleware.Middleware,
) http.Handler {
	r := chi.NewRouter()
	r.Use(httpmiddleware.LogRequests())

	r.Get("/livez", healthSvc.LiveEndpoint)
	r.Get("/readyz", healthSvc.ReadyEndpoint)
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(verifier))
		h.Routes(r, sessionLimit)
	})
	return r
}

// Package main is the entrypoint for the ServiceNegotiator API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/servicenegotiator/api/internal/billing"
	"github.com/servicenegotiator/api/internal/cache"
	"github.com/servicenegotiator/api/internal/config"
	"github.com/servicenegotiator/api/internal/handler"
	"github.com/servicenegotiator/api/internal/metrics"
	"github.com/servicenegotiator/api/internal/middleware"
	"github.com/servicenegotiator/api/internal/model"
	"github.com/servicenegotiator/api/internal/repository"
	"github.com/servicenegotiator/api/internal/server"
	"github.com/servicenegotiator/api/internal/service"
	"github.com/servicenegotiator/api/internal/session"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Initialize cache (session store + rate limiting)
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	// Sessions live in Redis so restarts do not log everyone out.
	sessions := session.NewManager(
		cache.NewSessionStore(cacheClient),
		repo,
		cfg.SessionSecret,
		cfg.SessionTTL,
		cfg.IsProduction(),
	)

	// Billing provider
	provider := billing.NewStripeClient(cfg.StripeSecretKey)

	// Services
	metricsRecorder := metrics.NewInMemory()
	authService := service.NewAuthService(repo, repo, metricsRecorder)

	// Only plans with a configured price are purchasable.
	prices := make(map[model.Plan]string)
	for _, plan := range []model.Plan{model.PlanHomeowner, model.PlanFamily, model.PlanPro} {
		prices[plan] = cfg.PriceForPlan(string(plan))
	}
	billingService := service.NewBillingService(repo, provider, cfg.AppURL, prices, metricsRecorder)
	reconciler := billing.NewReconciler(repo, provider, repo, logger, metricsRecorder)

	// Handlers
	healthHandler := handler.NewHealthHandler(repo, cacheClient)
	authHandler := handler.NewAuthHandler(authService, sessions, logger)
	billingHandler := handler.NewBillingHandler(billingService, reconciler, cfg.StripeWebhookSecret, logger)
	metricsHandler := handler.NewMetricsHandler(metricsRecorder)
	adminHandler := handler.NewAdminHandler(repo, logger)

	// Setup router
	r := setupRouter(routerDeps{
		health:   healthHandler,
		auth:     authHandler,
		billing:  billingHandler,
		metrics:  metricsHandler,
		admin:    adminHandler,
		sessions: sessions,
		cache:    cacheClient,
		cfg:      cfg,
		logger:   logger,
	})

	// Create and run server
	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"app_url", cfg.AppURL,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type routerDeps struct {
	health   *handler.HealthHandler
	auth     *handler.AuthHandler
	billing  *handler.BillingHandler
	metrics  *handler.MetricsHandler
	admin    *handler.AdminHandler
	sessions *session.Manager
	cache    *cache.Cache
	cfg      *config.Config
	logger   *slog.Logger
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(deps routerDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.logger))
	r.Use(middleware.Recoverer(deps.logger))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment: deps.cfg.IsDevelopment(),
	}))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = deps.cfg.GetCORSAllowedOrigins()
	// The browser sends the session cookie cross-origin, so credentials
	// must be allowed and origins must be explicit.
	corsCfg.AllowCredentials = true
	r.Use(middleware.CORS(corsCfg))

	r.Get("/", handler.Root)

	// Health endpoints
	r.Get("/healthz", deps.health.Healthz)
	r.Get("/readyz", deps.health.Readyz)
	r.Get("/metrics", deps.metrics.Metrics)

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:        deps.logger,
		Cache:         deps.cache,
		Enabled:       deps.cfg.RateLimitAuthEnabled,
		RatePerMinute: deps.cfg.RateLimitAuthRPM,
		Burst:         deps.cfg.RateLimitAuthBurst,
	}

	sessionMw := middleware.Session(deps.sessions, deps.logger)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodySize(deps.cfg.MaxRequestBodySize))
			r.Use(sessionMw)

			r.Route("/auth", func(r chi.Router) {
				r.With(middleware.RateLimitAuth(rateLimitCfg)).Post("/signup", deps.auth.Signup)
				r.With(middleware.RateLimitAuth(rateLimitCfg)).Post("/login", deps.auth.Login)
				r.Post("/logout", deps.auth.Logout)
				r.Get("/me", deps.auth.Me)
			})

			r.Post("/stripe/create-checkout-session", deps.billing.CreateCheckoutSession)
			r.Post("/stripe/create-portal-session", deps.billing.CreatePortalSession)
		})

		// The webhook reads its raw body for signature verification and is
		// authenticated by the signature, not a session. It stays outside
		// the body-limit and session middleware.
		r.Post("/stripe/webhook", deps.billing.Webhook)
	})

	// Operator endpoints, gated by the static admin token.
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.AdminAuth(deps.cfg.AdminToken))
		r.Get("/billing/dead-letters", deps.admin.ListFailedBillingEvents)
	})

	// 404 and 405 handlers
	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}

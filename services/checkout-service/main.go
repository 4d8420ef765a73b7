package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/Rohianon/multicurrency-checkout/pkg/cache"
	"github.com/Rohianon/multicurrency-checkout/pkg/config"
	"github.com/Rohianon/multicurrency-checkout/pkg/database"
	"github.com/Rohianon/multicurrency-checkout/pkg/events"
	"github.com/Rohianon/multicurrency-checkout/pkg/gateway"
	"github.com/Rohianon/multicurrency-checkout/pkg/logger"
	"github.com/Rohianon/multicurrency-checkout/pkg/metrics"
	"github.com/Rohianon/multicurrency-checkout/pkg/middleware"
	"github.com/Rohianon/multicurrency-checkout/pkg/registry"
	"github.com/Rohianon/multicurrency-checkout/pkg/response"
	"github.com/Rohianon/multicurrency-checkout/pkg/swagger"
	"github.com/Rohianon/multicurrency-checkout/pkg/telemetry"
	"github.com/Rohianon/multicurrency-checkout/services/checkout-service/internal/docs"
	"github.com/Rohianon/multicurrency-checkout/services/checkout-service/internal/handler"
	"github.com/Rohianon/multicurrency-checkout/services/checkout-service/internal/repository"
	"github.com/Rohianon/multicurrency-checkout/services/checkout-service/internal/session"
	"github.com/Rohianon/multicurrency-checkout/services/checkout-service/migrations"
)

const (
	serviceName = "checkout-service"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.Load("config")
	if err != nil {
		logger.Init(serviceName, "info", true)
		logger.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.Init(serviceName, cfg.Log.Level, cfg.Log.Pretty)
	logger.Info().Msg("Starting Checkout Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = serviceName
	}
	tp, err := telemetry.Init(ctx, telemetry.FromConfig(cfg.Telemetry, version))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Failed to flush traces")
		}
	}()

	reg, err := registry.Builtin()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid country registry")
	}

	if cfg.Gateway.SecretKey == "" {
		logger.Warn().Msg("Gateway secret key is empty, requests will be rejected by a live gateway")
	}
	gw := gateway.NewClient(&gateway.Config{
		BaseURL:     cfg.Gateway.BaseURL,
		CallbackURL: cfg.Gateway.CallbackURL,
		SecretKey:   cfg.Gateway.SecretKey,
		Integration: cfg.Gateway.Integration,
	})

	redisCache, err := cache.New(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisCache.Close()
	logger.Info().Str("addr", cfg.Redis.Addr()).Msg("Connected to Redis")

	sessions := session.NewManager(redisCache, cfg.Session.TTL)
	go sessions.ReportActive(ctx, 30*time.Second)

	deps := handler.Deps{
		Gateway:  gw,
		Registry: reg,
		Sessions: sessions,
	}

	if cfg.Database.Enabled {
		db, err := database.NewPool(ctx, database.FromConfig(cfg.Database))
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()
		logger.Info().Msg("Connected to database")

		if err := database.Migrate(ctx, db, migrations.FS, "."); err != nil {
			logger.Fatal().Err(err).Msg("Failed to run migrations")
		}
		deps.Attempts = repository.NewAttemptRepository(db)

		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					database.RecordPoolStats(serviceName, db)
				}
			}
		}()
	} else {
		logger.Warn().Msg("Database disabled, checkout attempts will not be recorded")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if brokers := cfg.Kafka.Brokers; len(brokers) > 0 && brokers[0] != "" {
		publisher = events.NewKafkaPublisher(brokers)
		logger.Info().Strs("brokers", brokers).Msg("Publishing payment events to Kafka")
	} else {
		logger.Warn().Msg("Kafka not configured, events will not be published")
	}
	defer publisher.Close()
	deps.Publisher = publisher

	h := handler.New(deps)

	var protect fiber.Handler
	if cfg.Auth.JWTSecret != "" {
		protect = middleware.Auth(cfg.Auth.JWTSecret)
	} else {
		logger.Warn().Msg("auth.jwt_secret not set, transaction history is unauthenticated")
	}

	app := fiber.New(fiber.Config{
		AppName:      "Multi-Currency Checkout",
		ErrorHandler: response.ErrorHandler,
	})
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowOrigins,
		MaxAge:       3600,
	}))
	app.Use(metrics.Middleware(metrics.Config{
		ServiceName: serviceName,
		SkipPaths:   []string{"/health", "/metrics"},
	}))
	app.Use(middleware.RateLimiter(middleware.RateLimitConfig{
		Max:      cfg.Server.RateLimit,
		Duration: time.Minute,
		Store:    redisCache,
	}))

	app.Get("/metrics", metrics.Handler())
	app.Use(swagger.Handler(swagger.Config{
		Spec:  docs.OpenAPI,
		Title: "Multi-Currency Checkout API",
	}))
	h.Register(app, protect)

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	go func() {
		if err := app.Listen(addr); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	logger.Info().Str("addr", addr).Msg("Checkout Service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down Checkout Service")
	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
	}
}

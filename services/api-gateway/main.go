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

	"github.com/Rohianon/multicurrency-checkout/pkg/config"
	"github.com/Rohianon/multicurrency-checkout/pkg/logger"
	"github.com/Rohianon/multicurrency-checkout/pkg/metrics"
	"github.com/Rohianon/multicurrency-checkout/pkg/middleware"
	"github.com/Rohianon/multicurrency-checkout/pkg/response"
	"github.com/Rohianon/multicurrency-checkout/pkg/telemetry"
	"github.com/Rohianon/multicurrency-checkout/services/api-gateway/internal/handler"
	"github.com/Rohianon/multicurrency-checkout/services/api-gateway/internal/proxy"
)

const (
	serviceName = "api-gateway"
	version     = "1.0.0"
	defaultPort = 8000
)

func main() {
	cfg, err := config.Load("config")
	if err != nil {
		logger.Init(serviceName, "info", true)
		logger.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.Init(serviceName, cfg.Log.Level, cfg.Log.Pretty)
	logger.Info().Msg("Starting API Gateway")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg.Telemetry.ServiceName = serviceName
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

	app := newApp(cfg)

	port := defaultPort
	if p, err := strconv.Atoi(os.Getenv("PORT")); err == nil {
		port = p
	}
	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(port))

	go func() {
		if err := app.Listen(addr); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	logger.Info().
		Str("addr", addr).
		Str("checkout", cfg.Upstreams.CheckoutURL).
		Str("receipts", cfg.Upstreams.ReceiptURL).
		Msg("API Gateway started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down API Gateway")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
	}
}

func newApp(cfg *config.Config) *fiber.App {
	p := proxy.New(cfg.Upstreams.Timeout)
	h := handler.New(p.Client(), version,
		handler.Upstream{Name: "checkout-service", URL: cfg.Upstreams.CheckoutURL},
		handler.Upstream{Name: "receipt-service", URL: cfg.Upstreams.ReceiptURL},
	)

	app := fiber.New(fiber.Config{
		AppName:      "Checkout API Gateway",
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
		SkipPaths:   []string{"/health", "/ready", "/live", "/metrics"},
	}))
	app.Use(middleware.RateLimiter(middleware.RateLimitConfig{
		Max:       cfg.Server.RateLimit,
		Duration:  time.Minute,
		KeyPrefix: "gateway:ratelimit:",
	}))

	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)
	app.Get("/live", h.Live)
	app.Get("/metrics", metrics.Handler())

	checkout := p.Forward(cfg.Upstreams.CheckoutURL, "")
	receipts := p.Forward(cfg.Upstreams.ReceiptURL, "/api/v1")

	api := app.Group("/api/v1")
	api.Get("/", h.Info)
	api.All("/receipts", receipts)
	api.All("/receipts/*", receipts)
	api.All("/*", checkout)

	app.Get("/payment/callback", checkout)
	app.Get("/docs", checkout)
	app.Get("/docs/*", checkout)

	app.Use(h.NotFound)

	return app
}

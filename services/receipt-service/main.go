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
	"github.com/Rohianon/multicurrency-checkout/pkg/events"
	"github.com/Rohianon/multicurrency-checkout/pkg/logger"
	"github.com/Rohianon/multicurrency-checkout/pkg/metrics"
	"github.com/Rohianon/multicurrency-checkout/pkg/middleware"
	"github.com/Rohianon/multicurrency-checkout/pkg/registry"
	"github.com/Rohianon/multicurrency-checkout/pkg/response"
	"github.com/Rohianon/multicurrency-checkout/pkg/sms"
	"github.com/Rohianon/multicurrency-checkout/pkg/telemetry"
	"github.com/Rohianon/multicurrency-checkout/pkg/validation"
	"github.com/Rohianon/multicurrency-checkout/services/receipt-service/internal/handler"
	"github.com/Rohianon/multicurrency-checkout/services/receipt-service/internal/sender"
)

const (
	serviceName = "receipt-service"
	version     = "1.0.0"
	defaultPort = 8086
)

func main() {
	cfg, err := config.Load("config")
	if err != nil {
		logger.Init(serviceName, "info", true)
		logger.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.Init(serviceName, cfg.Log.Level, cfg.Log.Pretty)
	logger.Info().Msg("Starting Receipt Service")

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

	var smsClient sms.Sender
	if cfg.SMS.APIKey == "" {
		logger.Warn().Msg("Using mock SMS client")
		smsClient = sms.NewMockClient()
	} else {
		smsClient = sms.NewClient(sms.FromConfig(cfg.SMS))
	}

	s := sender.NewSender(smsClient, validation.New(registry.MustBuiltin()))

	var subscriber events.Subscriber
	if brokers := cfg.Kafka.Brokers; len(brokers) > 0 && brokers[0] != "" {
		subscriber = events.NewKafkaSubscriber(brokers, cfg.Kafka.GroupID)
		if err := subscriber.Subscribe(ctx, events.TopicPaymentCompleted, s.HandlePaymentCompleted); err != nil {
			logger.Fatal().Err(err).Msg("Failed to subscribe to payment events")
		}
		logger.Info().
			Strs("brokers", brokers).
			Str("topic", events.TopicPaymentCompleted).
			Msg("Consuming payment events")
	} else {
		logger.Warn().Msg("Kafka not configured, only manual receipts are available")
	}

	h := handler.NewHandler(s)

	app := fiber.New(fiber.Config{
		AppName:      "Checkout Receipt Service",
		ErrorHandler: response.ErrorHandler,
	})
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger())
	app.Use(metrics.Middleware(metrics.Config{
		ServiceName: serviceName,
		SkipPaths:   []string{"/health", "/metrics"},
	}))

	app.Get("/health", h.Health)
	app.Get("/metrics", metrics.Handler())

	receipts := app.Group("/receipts")
	if cfg.Auth.JWTSecret != "" {
		receipts.Use(middleware.Auth(cfg.Auth.JWTSecret))
	}
	receipts.Get("", h.ListReceipts)
	receipts.Post("", h.Resend)
	receipts.Get("/templates", h.ListTemplates)

	port := defaultPort
	if p := os.Getenv("PORT"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}
	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(port))
	go func() {
		if err := app.Listen(addr); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	logger.Info().Str("addr", addr).Msg("Receipt Service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down Receipt Service")
	cancel()
	if subscriber != nil {
		if err := subscriber.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close Kafka subscriber")
		}
	}
	if err := app.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
	}
}

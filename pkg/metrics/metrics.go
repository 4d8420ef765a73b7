package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	registry = prometheus.NewRegistry()

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)

	// Checkout
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_submissions_total",
			Help: "Checkout submissions by payment method, currency and resulting status",
		},
		[]string{"method", "currency", "status"},
	)

	validationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_validation_failures_total",
			Help: "Rejected checkout forms by offending field",
		},
		[]string{"field"},
	)

	callbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_callbacks_total",
			Help: "Payment callbacks handled by resulting status",
		},
		[]string{"status"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkout_active_sessions",
			Help: "Checkout sessions currently stored",
		},
	)

	// Gateway
	gatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Payment gateway call duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation", "outcome"},
	)

	// Database
	dbPoolConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_connections_used",
			Help: "Number of database connections in use",
		},
		[]string{"service"},
	)

	dbPoolConnectionsMax = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_connections_max",
			Help: "Maximum number of database connections",
		},
		[]string{"service"},
	)

	// Kafka
	kafkaMessagesProduced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_produced_total",
			Help: "Total number of Kafka messages produced",
		},
		[]string{"service", "topic"},
	)

	kafkaMessagesConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_consumed_total",
			Help: "Total number of Kafka messages consumed",
		},
		[]string{"service", "topic", "consumer_group"},
	)

	// Receipts
	receiptsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receipts_sent_total",
			Help: "Payment receipts sent by SMS",
		},
		[]string{"status"},
	)
)

func init() {
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		submissionsTotal,
		validationFailures,
		callbacksTotal,
		activeSessions,
		gatewayRequestDuration,
		dbPoolConnections,
		dbPoolConnectionsMax,
		kafkaMessagesProduced,
		kafkaMessagesConsumed,
		receiptsSent,
	)
}

func Registry() *prometheus.Registry {
	return registry
}

// Handler serves the registry in the OpenMetrics format.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
}

// =============================================================================
// Middleware
// =============================================================================

type Config struct {
	ServiceName string
	SkipPaths   []string
}

// Middleware records request counts and latency labelled by route pattern,
// so /api/v1/sessions/:id stays a single series.
func Middleware(cfg Config) fiber.Handler {
	skipPaths := make(map[string]bool, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skipPaths[path] = true
	}

	return func(c *fiber.Ctx) error {
		if skipPaths[c.Path()] {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		path := c.Route().Path

		httpRequestsTotal.WithLabelValues(cfg.ServiceName, c.Method(), path, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(cfg.ServiceName, c.Method(), path).Observe(time.Since(start).Seconds())

		return err
	}
}

// =============================================================================
// Recording
// =============================================================================

func RecordSubmission(method, currency, status string) {
	submissionsTotal.WithLabelValues(method, currency, status).Inc()
}

func RecordValidationFailure(field string) {
	validationFailures.WithLabelValues(field).Inc()
}

func RecordCallback(status string) {
	callbacksTotal.WithLabelValues(status).Inc()
}

func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// RecordGatewayRequest observes one gateway round trip; outcome is "ok" or
// "error".
func RecordGatewayRequest(op string, err error, duration time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	gatewayRequestDuration.WithLabelValues(op, outcome).Observe(duration.Seconds())
}

func RecordDBPoolStats(service string, used, max int) {
	dbPoolConnections.WithLabelValues(service).Set(float64(used))
	dbPoolConnectionsMax.WithLabelValues(service).Set(float64(max))
}

func RecordKafkaMessageProduced(service, topic string) {
	kafkaMessagesProduced.WithLabelValues(service, topic).Inc()
}

func RecordKafkaMessageConsumed(service, topic, consumerGroup string) {
	kafkaMessagesConsumed.WithLabelValues(service, topic, consumerGroup).Inc()
}

func RecordReceipt(status string) {
	receiptsSent.WithLabelValues(status).Inc()
}

package middleware

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/Rohianon/multicurrency-checkout/pkg/errors"
	"github.com/Rohianon/multicurrency-checkout/pkg/logger"
)

const (
	HeaderRequestID = "X-Request-ID"

	localRequestID = "request_id"
	localSubject   = "subject"
	localMerchant  = "merchant_id"
)

// =============================================================================
// Request ID
// =============================================================================

func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Locals(localRequestID, requestID)
		c.Set(HeaderRequestID, requestID)

		return c.Next()
	}
}

func GetRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(localRequestID).(string); ok {
		return id
	}
	return ""
}

// =============================================================================
// Security headers & logging
// =============================================================================

func SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Cache-Control", "no-store")
		return c.Next()
	}
}

// Logger writes one line per request. Health and metrics probes are logged at
// debug level.
func Logger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			} else if e, ok := err.(*apperrors.AppError); ok {
				status = e.HTTPStatus
			}
		}

		l := logger.WithContext(c.UserContext())
		event := l.Info()
		switch {
		case status >= fiber.StatusInternalServerError:
			event = l.Error()
		case c.Path() == "/health" || c.Path() == "/metrics":
			event = l.Debug()
		}

		event.
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("request_id", GetRequestID(c)).
			Str("ip", c.IP()).
			Msg("request")

		return err
	}
}

// =============================================================================
// Rate limiting
// =============================================================================

// Counter counts hits per key within a fixed window. The Redis cache
// implements it so limits hold across instances.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type RateLimitConfig struct {
	Max      int
	Duration time.Duration
	// Store defaults to an in-process counter.
	Store Counter
	// KeyPrefix namespaces keys in a shared store.
	KeyPrefix string
}

func RateLimiter(config RateLimitConfig) fiber.Handler {
	if config.Duration <= 0 {
		config.Duration = time.Minute
	}
	if config.Store == nil {
		config.Store = NewMemoryCounter()
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "checkout:ratelimit:"
	}

	return func(c *fiber.Ctx) error {
		if config.Max <= 0 {
			return c.Next()
		}

		n, err := config.Store.Incr(c.UserContext(), config.KeyPrefix+c.IP(), config.Duration)
		if err != nil {
			logger.Warn().Err(err).Msg("Rate limiter unavailable, allowing request")
			return c.Next()
		}

		remaining := int64(config.Max) - n
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(config.Max))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if n > int64(config.Max) {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(config.Duration.Seconds())))
			return apperrors.ErrRateLimited
		}
		return c.Next()
	}
}

// MemoryCounter is a fixed-window Counter for a single process.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	count   int64
	resetAt time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{windows: make(map[string]*window), now: time.Now}
}

func (m *MemoryCounter) Incr(_ context.Context, key string, d time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		m.sweep(now)
		w = &window{resetAt: now.Add(d)}
		m.windows[key] = w
	}
	w.count++
	return w.count, nil
}

// sweep drops expired windows; callers hold mu.
func (m *MemoryCounter) sweep(now time.Time) {
	for k, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, k)
		}
	}
}

// =============================================================================
// JWT auth
// =============================================================================

// Claims identify the merchant back office reading transaction history.
// Tokens are issued elsewhere; this service only verifies them.
type Claims struct {
	MerchantID string `json:"merchant_id,omitempty"`
	Email      string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func Auth(jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return apperrors.ErrUnauthorized.WithMessage("Missing authorization header")
		}

		scheme, tokenString, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
			return apperrors.ErrUnauthorized.WithMessage("Invalid authorization header format")
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
			return []byte(jwtSecret), nil
		}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
		if err != nil || !token.Valid {
			return apperrors.ErrUnauthorized.WithMessage("Invalid token")
		}

		c.Locals(localSubject, claims.Subject)
		c.Locals(localMerchant, claims.MerchantID)

		return c.Next()
	}
}

func GetSubject(c *fiber.Ctx) string {
	if id, ok := c.Locals(localSubject).(string); ok {
		return id
	}
	return ""
}

func GetMerchantID(c *fiber.Ctx) string {
	if id, ok := c.Locals(localMerchant).(string); ok {
		return id
	}
	return ""
}

// =============================================================================
// CORS
// =============================================================================

type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	AllowCredentials bool
	MaxAge           int
}

func CORS(config CORSConfig) fiber.Handler {
	wildcard := len(config.AllowOrigins) == 0 || slices.Contains(config.AllowOrigins, "*")

	allowMethods := strings.Join(config.AllowMethods, ",")
	if len(config.AllowMethods) == 0 {
		allowMethods = "GET,POST,DELETE,OPTIONS"
	}

	allowHeaders := strings.Join(config.AllowHeaders, ",")
	if len(config.AllowHeaders) == 0 {
		allowHeaders = "Origin,Content-Type,Accept,Authorization,X-Request-ID"
	}

	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)
		switch {
		case wildcard && !config.AllowCredentials:
			c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
		case origin != "" && (wildcard || slices.Contains(config.AllowOrigins, origin)):
			c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
			c.Vary(fiber.HeaderOrigin)
		}

		c.Set(fiber.HeaderAccessControlAllowMethods, allowMethods)
		c.Set(fiber.HeaderAccessControlAllowHeaders, allowHeaders)

		if config.AllowCredentials {
			c.Set(fiber.HeaderAccessControlAllowCredentials, "true")
		}
		if config.MaxAge > 0 {
			c.Set(fiber.HeaderAccessControlMaxAge, strconv.Itoa(config.MaxAge))
		}

		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}

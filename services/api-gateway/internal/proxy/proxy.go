package proxy

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/Rohianon/multicurrency-checkout/pkg/errors"
	"github.com/Rohianon/multicurrency-checkout/pkg/logger"
	"github.com/Rohianon/multicurrency-checkout/pkg/middleware"
	"github.com/Rohianon/multicurrency-checkout/pkg/telemetry"
)

// Headers that describe a single connection and must not be forwarded.
var hopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Content-Length":      true,
	"Host":                true,
}

// ServiceProxy forwards requests to the checkout and receipt services.
type ServiceProxy struct {
	client *http.Client
}

func New(timeout time.Duration) *ServiceProxy {
	return &ServiceProxy{
		client: telemetry.WrapHTTPClient(&http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			// Redirects from upstream go back to the caller untouched.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}),
	}
}

// Client is shared with readiness probes.
func (p *ServiceProxy) Client() *http.Client {
	return p.client
}

// Forward sends the request to targetURL. stripPrefix is removed from the
// incoming path first, so /api/v1/receipts can map onto /receipts.
func (p *ServiceProxy) Forward(targetURL, stripPrefix string) fiber.Handler {
	targetURL = strings.TrimRight(targetURL, "/")

	return func(c *fiber.Ctx) error {
		path := strings.TrimPrefix(c.Path(), stripPrefix)
		if path == "" || path[0] != '/' {
			path = "/" + path
		}
		target := targetURL + path
		if qs := c.Request().URI().QueryString(); len(qs) > 0 {
			target += "?" + string(qs)
		}

		req, err := http.NewRequestWithContext(c.UserContext(), c.Method(), target, bytes.NewReader(c.Body()))
		if err != nil {
			logger.Error().Err(err).Str("target", target).Msg("Failed to create proxy request")
			return apperrors.ErrInternal.WithError(err)
		}

		c.Request().Header.VisitAll(func(key, value []byte) {
			if k := string(key); !hopHeaders[k] {
				req.Header.Add(k, string(value))
			}
		})
		req.Header.Set("X-Forwarded-For", c.IP())
		req.Header.Set("X-Forwarded-Host", c.Hostname())
		req.Header.Set("X-Forwarded-Proto", c.Protocol())
		req.Header.Set(middleware.HeaderRequestID, middleware.GetRequestID(c))

		resp, err := p.client.Do(req)
		if err != nil {
			logger.WithContext(c.UserContext()).Error().Err(err).Str("target", target).Msg("Proxy request failed")
			return apperrors.ErrServiceUnavailable.WithError(err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			logger.WithContext(c.UserContext()).Error().Err(err).Str("target", target).Msg("Failed to read proxy response")
			return apperrors.ErrServiceUnavailable.WithError(err)
		}

		for key, values := range resp.Header {
			if hopHeaders[key] || key == middleware.HeaderRequestID {
				continue
			}
			for _, value := range values {
				c.Response().Header.Add(key, value)
			}
		}

		c.Status(resp.StatusCode)
		return c.Send(body)
	}
}

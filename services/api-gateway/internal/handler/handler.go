package handler

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/Rohianon/multicurrency-checkout/pkg/errors"
	"github.com/Rohianon/multicurrency-checkout/pkg/response"
)

const probeTimeout = 2 * time.Second

var startTime = time.Now()

// Upstream is a backend service the gateway fronts.
type Upstream struct {
	Name string
	URL  string
}

type Handler struct {
	client    *http.Client
	upstreams []Upstream
	version   string
}

func New(client *http.Client, version string, upstreams ...Upstream) *Handler {
	return &Handler{client: client, upstreams: upstreams, version: version}
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return response.Success(c, fiber.Map{
		"status":  "healthy",
		"service": "api-gateway",
		"uptime":  time.Since(startTime).String(),
	})
}

// Ready probes every upstream's /health and fails if any of them is down.
func (h *Handler) Ready(c *fiber.Ctx) error {
	status := h.probe(c.UserContext())
	for _, s := range status {
		if s != "up" {
			return response.Failure(c, apperrors.ErrServiceUnavailable, fiber.Map{"upstreams": status})
		}
	}
	return response.Success(c, fiber.Map{"status": "ready", "upstreams": status})
}

func (h *Handler) Live(c *fiber.Ctx) error {
	return response.Success(c, fiber.Map{"status": "alive"})
}

func (h *Handler) Info(c *fiber.Ctx) error {
	return response.Success(c, fiber.Map{
		"service":    "api-gateway",
		"version":    h.version,
		"go_version": runtime.Version(),
		"uptime":     time.Since(startTime).String(),
		"endpoints": fiber.Map{
			"checkout":     "/api/v1/sessions/*",
			"registry":     "/api/v1/countries, /api/v1/currencies",
			"validate":     "/api/v1/validate",
			"transactions": "/api/v1/transactions/*",
			"receipts":     "/api/v1/receipts/*",
			"callback":     "/payment/callback",
		},
	})
}

func (h *Handler) NotFound(c *fiber.Ctx) error {
	return response.Error(c, fiber.StatusNotFound, apperrors.ErrNotFound.Code, "Endpoint not found")
}

func (h *Handler) probe(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var mu sync.Mutex
	var wg sync.WaitGroup
	status := make(map[string]string, len(h.upstreams))

	for _, u := range h.upstreams {
		wg.Add(1)
		go func(u Upstream) {
			defer wg.Done()
			result := "up"
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.URL+"/health", nil)
			if err == nil {
				var resp *http.Response
				resp, err = h.client.Do(req)
				if err == nil {
					resp.Body.Close()
					if resp.StatusCode != http.StatusOK {
						result = "down"
					}
				}
			}
			if err != nil {
				result = "unreachable"
			}
			mu.Lock()
			status[u.Name] = result
			mu.Unlock()
		}(u)
	}
	wg.Wait()
	return status
}

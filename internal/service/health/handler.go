package health

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler serves the liveness and readiness checks of a plugwatch binary.
type Handler struct {
	service *Service
	log     *zap.Logger
}

func NewHandler(service *Service, log *zap.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// RegisterRoutes mounts /health and /ready plus their Kubernetes aliases.
func (h *Handler) RegisterRoutes(r fiber.Router) {
	for _, path := range []string{"/health", "/healthz"} {
		r.Get(path, h.Health)
	}
	for _, path := range []string{"/ready", "/readyz"} {
		r.Get(path, h.Ready)
	}
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(h.service.Health(c.UserContext()))
}

// Ready answers 503 while the store or the bus is down. A degraded cache still answers 200.
func (h *Handler) Ready(c *fiber.Ctx) error {
	response := h.service.Ready(c.UserContext())
	if response.Ready {
		return c.JSON(response)
	}

	h.log.Warn("Not ready", zap.String("failing", strings.Join(response.Failing, ",")))
	c.Set(fiber.HeaderRetryAfter, "5")
	return c.Status(fiber.StatusServiceUnavailable).JSON(response)
}

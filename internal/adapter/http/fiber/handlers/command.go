package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/plugwatch/internal/domain"
)

// CommandForwarder publishes plug commands.
type CommandForwarder interface {
	Forward(ctx context.Context, cmd domain.Command) error
}

// CommandHandler exposes the plug command boundary.
type CommandHandler struct {
	forwarder CommandForwarder
	log       *zap.Logger
}

func NewCommandHandler(forwarder CommandForwarder, log *zap.Logger) *CommandHandler {
	return &CommandHandler{
		forwarder: forwarder,
		log:       log,
	}
}

// Action handles PUT /action
func (h *CommandHandler) Action(c *fiber.Ctx) error {
	var cmd domain.Command
	if err := c.BodyParser(&cmd); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	err := h.forwarder.Forward(c.UserContext(), cmd)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{
			"status": "Message published - " + cmd.Topic(),
		})
	case errors.Is(err, domain.ErrInvalidCommand):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, domain.ErrNotConnected):
		c.Set(fiber.HeaderRetryAfter, "1")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Bus is not connected, retry later",
		})
	case errors.Is(err, domain.ErrPublishTimeout):
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
			"error": err.Error(),
		})
	default:
		h.log.Error("Command publish failed",
			zap.String("device_id", cmd.DeviceID),
			zap.String("command", cmd.Command),
			zap.Error(err),
		)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}

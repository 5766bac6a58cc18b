package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/plugwatch/internal/ports"
	"github.com/seu-repo/plugwatch/internal/service/aggregation"
)

// Aggregator runs the rollup engine over a range.
type Aggregator interface {
	Run(ctx context.Context, devices []string, start, end time.Time) (*aggregation.RunReport, error)
}

// AggregateHandler triggers on-demand aggregation runs.
type AggregateHandler struct {
	engine  Aggregator
	samples ports.SampleRepository
	log     *zap.Logger
}

func NewAggregateHandler(engine Aggregator, samples ports.SampleRepository, log *zap.Logger) *AggregateHandler {
	return &AggregateHandler{
		engine:  engine,
		samples: samples,
		log:     log,
	}
}

// AggregateRequest is the body of POST /aggregate. Devices defaults to every
// device with raw samples in the range.
type AggregateRequest struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Devices []string  `json:"devices,omitempty"`
}

// Aggregate handles POST /aggregate
func (h *AggregateHandler) Aggregate(c *fiber.Ctx) error {
	var req AggregateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body, start and end must be RFC 3339",
		})
	}
	if req.Start.IsZero() || req.End.IsZero() || !req.End.After(req.Start) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "end must be after start",
		})
	}

	ctx := c.UserContext()
	devices := req.Devices
	if len(devices) == 0 {
		found, err := h.samples.Devices(ctx, req.Start, req.End)
		if err != nil {
			h.log.Error("Failed to list devices", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list devices")
		}
		devices = found
	}

	report, err := h.engine.Run(ctx, devices, req.Start, req.End)
	if err != nil {
		if errors.Is(err, aggregation.ErrInvalidRange) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return err
	}

	h.log.Info("On-demand aggregation finished",
		zap.Int("devices", report.Devices),
		zap.Int("hourly", report.HourlyWindows),
		zap.Int("daily", report.DailyWindows),
		zap.Int("failed", report.Failed()),
	)
	return c.JSON(report)
}

package middleware

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/seu-repo/plugwatch/pkg/config"
)

var errUpstreamStatus = errors.New("upstream failure status")

// CircuitBreaker opens after repeated 5xx responses from the wrapped routes and
// rejects requests with 503 until the breaker half-opens again. A 503 from the
// route reports a disconnected bus and is not counted as a failure.
func CircuitBreaker(name string, cfg config.CircuitBreakerConfig, log *zap.Logger) fiber.Handler {
	if !cfg.Enabled {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = 0.6
	}
	maxRequests := cfg.MaxRequests
	if maxRequests == 0 {
		maxRequests = 3
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	retryAfter := strconv.Itoa(int(math.Ceil(timeout.Seconds())))

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: maxRequests,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return func(c *fiber.Ctx) error {
		_, err := cb.Execute(func() (interface{}, error) {
			if err := c.Next(); err != nil {
				return nil, err
			}
			// handlers render their own error bodies; the status still counts
			if status := c.Response().StatusCode(); tripsBreaker(status) {
				return nil, fmt.Errorf("%w: %d", errUpstreamStatus, status)
			}
			return nil, nil
		})

		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			c.Set(fiber.HeaderRetryAfter, retryAfter)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Service temporarily unavailable",
			})
		case errors.Is(err, errUpstreamStatus):
			return nil
		}
		return err
	}
}

func tripsBreaker(status int) bool {
	return status >= fiber.StatusInternalServerError && status != fiber.StatusServiceUnavailable
}

package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/plugwatch/internal/adapter/http/fiber/middleware"
	"github.com/seu-repo/plugwatch/internal/domain"
	"github.com/seu-repo/plugwatch/pkg/config"
)

func TestAction_BreakerPassesOnceBusReconnects(t *testing.T) {
	outage := 3
	f := &mockForwarder{ForwardFunc: func(context.Context, domain.Command) error {
		if outage > 0 {
			outage--
			return domain.ErrNotConnected
		}
		return nil
	}}

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(zap.NewNop())})
	app.Put("/action", middleware.CircuitBreaker("plug-commands", config.CircuitBreakerConfig{
		Enabled:          true,
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
	}, zap.NewNop()), NewCommandHandler(f, zap.NewNop()).Action)

	body := `{"device_id":"PLUG1","command":"Power","parameter":"TOGGLE"}`
	for i := 0; i < 3; i++ {
		code, _ := doJSON(t, app, "PUT", "/action", body)
		if code != fiber.StatusServiceUnavailable {
			t.Fatalf("disconnected request %d: expected 503, got %d", i, code)
		}
	}

	code, resp := doJSON(t, app, "PUT", "/action", body)
	if code != fiber.StatusOK {
		t.Fatalf("reachable bus: expected 200, got %d (%v)", code, resp)
	}
	if len(f.Calls) != 4 {
		t.Errorf("expected every request to reach the forwarder, got %d calls", len(f.Calls))
	}
}

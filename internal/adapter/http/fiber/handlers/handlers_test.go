package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/plugwatch/internal/domain"
	"github.com/seu-repo/plugwatch/internal/mocks"
	"github.com/seu-repo/plugwatch/internal/service/aggregation"
)

type mockForwarder struct {
	ForwardFunc func(ctx context.Context, cmd domain.Command) error
	Calls       []domain.Command
}

func (m *mockForwarder) Forward(ctx context.Context, cmd domain.Command) error {
	m.Calls = append(m.Calls, cmd)
	if m.ForwardFunc != nil {
		return m.ForwardFunc(ctx, cmd)
	}
	return nil
}

type mockAggregator struct {
	RunFunc func(ctx context.Context, devices []string, start, end time.Time) (*aggregation.RunReport, error)
}

func (m *mockAggregator) Run(ctx context.Context, devices []string, start, end time.Time) (*aggregation.RunReport, error) {
	return m.RunFunc(ctx, devices, start, end)
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]interface{}{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("invalid json %q: %v", raw, err)
		}
	}
	return resp.StatusCode, out
}

func commandApp(f *mockForwarder) *fiber.App {
	app := fiber.New()
	app.Put("/action", NewCommandHandler(f, zap.NewNop()).Action)
	return app
}

func TestAction_Published(t *testing.T) {
	f := &mockForwarder{}
	code, body := doJSON(t, commandApp(f), "PUT", "/action",
		`{"device_id":"tasmota_D5F2A7","command":"POWER","parameter":"ON"}`)

	if code != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["status"] != "Message published - cmnd/tasmota_D5F2A7/POWER" {
		t.Errorf("unexpected status %v", body["status"])
	}
	if len(f.Calls) != 1 || f.Calls[0].Parameter != "ON" {
		t.Errorf("unexpected forwarded commands %+v", f.Calls)
	}
}

func TestAction_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", fmt.Errorf("%w: missing", domain.ErrInvalidCommand), fiber.StatusBadRequest},
		{"disconnected", domain.ErrNotConnected, fiber.StatusServiceUnavailable},
		{"timeout", fmt.Errorf("%w: cmnd/x/POWER", domain.ErrPublishTimeout), fiber.StatusGatewayTimeout},
		{"other", errors.New("broker refused"), fiber.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &mockForwarder{ForwardFunc: func(context.Context, domain.Command) error { return tt.err }}
			code, body := doJSON(t, commandApp(f), "PUT", "/action",
				`{"device_id":"plug","command":"POWER","parameter":"OFF"}`)
			if code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, code)
			}
			if body["error"] == nil {
				t.Error("expected error body")
			}
		})
	}
}

func TestAction_MalformedBody(t *testing.T) {
	f := &mockForwarder{}
	code, _ := doJSON(t, commandApp(f), "PUT", "/action", `{"device_id":`)
	if code != fiber.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
	if len(f.Calls) != 0 {
		t.Error("malformed body must not be forwarded")
	}
}

func TestAggregate_UsesStoredDevicesByDefault(t *testing.T) {
	var gotDevices []string
	agg := &mockAggregator{RunFunc: func(ctx context.Context, devices []string, start, end time.Time) (*aggregation.RunReport, error) {
		gotDevices = devices
		return &aggregation.RunReport{Devices: len(devices), HourlyWindows: 24, DailyWindows: 1}, nil
	}}
	samples := &mocks.MockSampleRepository{
		DevicesFunc: func(ctx context.Context, start, end time.Time) ([]string, error) {
			return []string{"plug-a", "plug-b"}, nil
		},
	}
	app := fiber.New()
	app.Post("/aggregate", NewAggregateHandler(agg, samples, zap.NewNop()).Aggregate)

	code, body := doJSON(t, app, "POST", "/aggregate",
		`{"start":"2024-05-01T00:00:00Z","end":"2024-05-02T00:00:00Z"}`)

	if code != fiber.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", code, body)
	}
	if len(gotDevices) != 2 {
		t.Errorf("expected stored devices, got %v", gotDevices)
	}
	if body["hourly_windows"] != float64(24) {
		t.Errorf("unexpected report %v", body)
	}
}

func TestAggregate_ExplicitDevices(t *testing.T) {
	var gotDevices []string
	agg := &mockAggregator{RunFunc: func(ctx context.Context, devices []string, start, end time.Time) (*aggregation.RunReport, error) {
		gotDevices = devices
		return &aggregation.RunReport{Devices: len(devices)}, nil
	}}
	app := fiber.New()
	app.Post("/aggregate", NewAggregateHandler(agg, &mocks.MockSampleRepository{}, zap.NewNop()).Aggregate)

	code, _ := doJSON(t, app, "POST", "/aggregate",
		`{"start":"2024-05-01T00:00:00Z","end":"2024-05-01T06:00:00Z","devices":["plug-c"]}`)
	if code != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(gotDevices) != 1 || gotDevices[0] != "plug-c" {
		t.Errorf("unexpected devices %v", gotDevices)
	}
}

func TestAggregate_InvalidRange(t *testing.T) {
	agg := &mockAggregator{RunFunc: func(context.Context, []string, time.Time, time.Time) (*aggregation.RunReport, error) {
		t.Fatal("engine must not run for an invalid range")
		return nil, nil
	}}
	app := fiber.New()
	app.Post("/aggregate", NewAggregateHandler(agg, &mocks.MockSampleRepository{}, zap.NewNop()).Aggregate)

	for _, body := range []string{
		`{"start":"2024-05-02T00:00:00Z","end":"2024-05-01T00:00:00Z"}`,
		`{"start":"yesterday","end":"today"}`,
		`{}`,
	} {
		code, _ := doJSON(t, app, "POST", "/aggregate", body)
		if code != fiber.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, code)
		}
	}
}

func TestMetrics_ServesRegistry(t *testing.T) {
	app := fiber.New()
	app.Get("/metrics", Metrics())

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || !strings.Contains(string(raw), "go_goroutines") {
		t.Errorf("unexpected metrics response %d", resp.StatusCode)
	}
}

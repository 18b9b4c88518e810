package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/domain"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/service"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/simulation"
)

type fakeHistory struct {
	limit int
}

func (f *fakeHistory) RecentReadings(_ context.Context, household string, limit int) ([]domain.ReadingRecord, error) {
	f.limit = limit
	return []domain.ReadingRecord{{HouseholdID: household, CurrentUsage: 640}}, nil
}

func (f *fakeHistory) RecentAnomalies(_ context.Context, _ string, limit int) ([]domain.AnomalyRecord, error) {
	f.limit = limit
	return nil, nil
}

func (f *fakeHistory) RecentMessages(_ context.Context, _ string, limit int) ([]domain.MessageRecord, error) {
	f.limit = limit
	return []domain.MessageRecord{}, nil
}

func newTestApp(t *testing.T, history History) (*fiber.App, *simulation.Engine) {
	t.Helper()
	cfg := simulation.Config{
		ElectricityRate: 5,
		MonthlyBudget:   1000,
		PrepaidBalance:  200,
	}
	eng := simulation.New(cfg, simulation.WithDevices([]domain.Device{
		{ID: "ac", Name: "Bedroom AC", Type: "AC", Room: "Bedroom", Wattage: 1500, Priority: domain.PriorityHigh, Efficiency: 0.8},
		{ID: "tv", Name: "TV", Type: "TV", Room: "Living Room", Wattage: 120, IsOn: true, Priority: domain.PriorityLow},
	}))
	t.Cleanup(eng.Stop)

	svcs := service.New(service.Deps{Household: "h1", Source: eng, Log: zerolog.Nop()})
	app := fiber.New()
	Register(app, Deps{Engine: eng, Services: svcs, History: history, Household: "h1"})
	return app, eng
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t, nil)

	code, body := do(t, app, "GET", "/health", "")

	assert.Equal(t, 200, code)
	assert.Equal(t, "ok", string(body))
}

func TestSnapshotAndDevices(t *testing.T) {
	app, _ := newTestApp(t, nil)

	code, body := do(t, app, "GET", "/snapshot", "")
	require.Equal(t, 200, code)
	var snap simulation.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Len(t, snap.Devices, 2)
	assert.Equal(t, domain.GridStable, snap.GridStatus)

	code, body = do(t, app, "GET", "/devices/tv", "")
	require.Equal(t, 200, code)
	assert.Contains(t, string(body), `"name":"TV"`)

	code, _ = do(t, app, "GET", "/devices/nope", "")
	assert.Equal(t, 404, code)
}

func TestToggleDevice(t *testing.T) {
	app, eng := newTestApp(t, nil)

	code, body := do(t, app, "POST", "/devices/ac/toggle", `{"on":true}`)
	require.Equal(t, 200, code)
	assert.JSONEq(t, `{"outcome":"updated"}`, string(body))
	d, _ := eng.Device("ac")
	assert.True(t, d.IsOn)

	code, _ = do(t, app, "POST", "/devices/ghost/toggle", `{"on":true}`)
	assert.Equal(t, 404, code)

	code, _ = do(t, app, "POST", "/devices/ac/toggle", `{}`)
	assert.Equal(t, 400, code)
}

func TestScheduleAndPriority(t *testing.T) {
	app, eng := newTestApp(t, nil)

	code, _ := do(t, app, "POST", "/devices/ac/schedule", `{"start":"22:00","end":"06:00"}`)
	require.Equal(t, 200, code)
	d, _ := eng.Device("ac")
	assert.Equal(t, []string{"22:00 - 06:00"}, d.Schedules)

	code, _ = do(t, app, "POST", "/devices/ac/schedule", `{"start":"22:00"}`)
	assert.Equal(t, 400, code)

	code, _ = do(t, app, "PUT", "/devices/ac/priority", `{"priority":"low"}`)
	require.Equal(t, 200, code)
	d, _ = eng.Device("ac")
	assert.Equal(t, domain.PriorityLow, d.Priority)

	code, _ = do(t, app, "PUT", "/devices/ac/priority", `{"priority":"urgent"}`)
	assert.Equal(t, 400, code)
}

func TestAddAndRemoveDevice(t *testing.T) {
	app, eng := newTestApp(t, nil)

	code, body := do(t, app, "POST", "/devices", `{"id":"kettle","name":"Kettle","type":"Kettle","wattage":1800}`)
	require.Equal(t, 201, code)
	assert.Contains(t, string(body), `"priority":"MEDIUM"`)
	assert.Len(t, eng.Devices(), 3)

	code, _ = do(t, app, "POST", "/devices", `{"id":"bad","name":"Bad","wattage":-5}`)
	assert.Equal(t, 400, code)
	code, _ = do(t, app, "POST", "/devices", `{"name":"No id"}`)
	assert.Equal(t, 400, code)

	code, _ = do(t, app, "DELETE", "/devices/kettle", "")
	assert.Equal(t, 204, code)
	code, _ = do(t, app, "DELETE", "/devices/kettle", "")
	assert.Equal(t, 404, code)
}

func TestSuggestionAndMaintenance(t *testing.T) {
	app, _ := newTestApp(t, nil)

	code, body := do(t, app, "GET", "/devices/ac/suggestion", "")
	require.Equal(t, 200, code)
	assert.Contains(t, string(body), "24°C")

	code, _ = do(t, app, "GET", "/devices/ghost/suggestion", "")
	assert.Equal(t, 404, code)

	code, body = do(t, app, "GET", "/devices/ac/maintenance", "")
	require.Equal(t, 200, code)
	assert.Contains(t, string(body), `"device_id":"ac"`)

	code, _ = do(t, app, "GET", "/devices/ghost/maintenance", "")
	assert.Equal(t, 404, code)
}

func TestUtilityCommands(t *testing.T) {
	app, eng := newTestApp(t, nil)

	code, _ := do(t, app, "POST", "/grid/commands", `{"command":"  "}`)
	assert.Equal(t, 400, code)

	code, body := do(t, app, "POST", "/grid/commands", `{"command":"tariff_update","description":"Peak tariff"}`)
	require.Equal(t, 202, code)
	assert.JSONEq(t, `{"status":"PEAK_HOURS"}`, string(body))
	assert.Equal(t, domain.GridPeakHours, eng.GridStatus())
}

func TestLoadShedding(t *testing.T) {
	app, eng := newTestApp(t, nil)

	code, body := do(t, app, "POST", "/grid/load-shedding", "")
	require.Equal(t, 200, code)
	assert.JSONEq(t, `{"devices_off":1}`, string(body))
	assert.Equal(t, domain.GridLoadShedding, eng.GridStatus())

	code, _ = do(t, app, "DELETE", "/grid/load-shedding", "")
	assert.Equal(t, 204, code)
	assert.Equal(t, domain.GridStable, eng.GridStatus())
	tv, _ := eng.Device("tv")
	assert.False(t, tv.IsOn)
}

func TestDetectionWithoutPending(t *testing.T) {
	app, _ := newTestApp(t, nil)

	code, _ := do(t, app, "GET", "/detection", "")
	assert.Equal(t, 204, code)

	code, _ = do(t, app, "POST", "/detection/label", `{"name":"Kettle","type":"Kettle","room":"Kitchen"}`)
	assert.Equal(t, 404, code)

	code, _ = do(t, app, "POST", "/detection/label", `{}`)
	assert.Equal(t, 400, code)
}

func TestBilling(t *testing.T) {
	app, eng := newTestApp(t, nil)

	code, body := do(t, app, "GET", "/billing", "")
	require.Equal(t, 200, code)
	assert.Contains(t, string(body), `"due_date"`)

	code, _ = do(t, app, "POST", "/billing/recharge", `{"amount":-5}`)
	assert.Equal(t, 400, code)
	code, _ = do(t, app, "POST", "/billing/recharge", `{"amount":50}`)
	require.Equal(t, 200, code)
	assert.Equal(t, 250.0, eng.Billing().PrepaidBalance)

	code, _ = do(t, app, "PUT", "/billing/mode", `{"prepaid":true}`)
	require.Equal(t, 200, code)
	assert.True(t, eng.Billing().IsPrepaidMode)
	code, _ = do(t, app, "PUT", "/billing/mode", `{}`)
	assert.Equal(t, 400, code)

	code, _ = do(t, app, "PUT", "/billing/settings", `{"electricity_rate":0}`)
	assert.Equal(t, 400, code)
	code, _ = do(t, app, "PUT", "/billing/settings", `{"electricity_rate":7.5,"monthly_budget":2000}`)
	require.Equal(t, 200, code)
	assert.Equal(t, 7.5, eng.Billing().ElectricityRate)
	assert.Equal(t, 2000.0, eng.Billing().MonthlyBudget)
}

func TestPayClosesCycle(t *testing.T) {
	app, _ := newTestApp(t, nil)

	code, body := do(t, app, "POST", "/billing/pay", "")
	require.Equal(t, 200, code)
	var st domain.BillingStatement
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, domain.ReasonPayment, st.Reason)

	code, body = do(t, app, "POST", "/billing/reset", "")
	require.Equal(t, 200, code)
	assert.Contains(t, string(body), `"reason":"NEW_CYCLE"`)
}

func TestSimulationSpeed(t *testing.T) {
	app, eng := newTestApp(t, nil)

	code, body := do(t, app, "PUT", "/simulation/speed", `{"speed":100}`)
	require.Equal(t, 200, code)
	assert.JSONEq(t, `{"speed":10}`, string(body))
	assert.Equal(t, simulation.MaxSpeed, eng.Speed())

	code, _ = do(t, app, "PUT", "/simulation/speed", `{}`)
	assert.Equal(t, 400, code)
}

func TestAnalytics(t *testing.T) {
	app, _ := newTestApp(t, nil)

	code, _ := do(t, app, "GET", "/analytics/usage?period=decade", "")
	assert.Equal(t, 400, code)

	code, body := do(t, app, "GET", "/analytics/usage?period=week", "")
	require.Equal(t, 200, code)
	assert.Contains(t, string(body), `"period":"week"`)

	code, _ = do(t, app, "GET", "/analytics/power", "")
	assert.Equal(t, 200, code)
	code, _ = do(t, app, "GET", "/analytics/rooms", "")
	assert.Equal(t, 200, code)
}

func TestHistoryDisabled(t *testing.T) {
	app, _ := newTestApp(t, nil)

	code, _ := do(t, app, "GET", "/history/readings", "")

	assert.Equal(t, 503, code)
}

func TestHistory(t *testing.T) {
	h := &fakeHistory{}
	app, _ := newTestApp(t, h)

	code, body := do(t, app, "GET", "/history/readings?limit=5", "")
	require.Equal(t, 200, code)
	assert.Equal(t, 5, h.limit)
	assert.Contains(t, string(body), `"household_id":"h1"`)

	code, _ = do(t, app, "GET", "/history/messages", "")
	require.Equal(t, 200, code)
	assert.Equal(t, defaultHistoryLimit, h.limit)

	code, _ = do(t, app, "GET", "/history/anomalies?limit=abc", "")
	assert.Equal(t, 400, code)
}

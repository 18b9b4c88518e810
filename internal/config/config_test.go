package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/domain"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/simulation"
)

func load(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	require.NoError(t, Load())
}

func TestDefaults(t *testing.T) {
	load(t)

	assert.Equal(t, ":8080", APIAddr())
	assert.Equal(t, "tcp://localhost:1883", MQTTBroker())
	assert.False(t, UseCloudServices())
	assert.False(t, HistoryEnabled())
	assert.True(t, AutoRefresh())
	assert.Equal(t, 2*time.Second, RefreshInterval())
	assert.Equal(t, zerolog.InfoLevel, LogLevel())

	cfg := SimulationConfig()
	assert.Equal(t, simulation.DefaultBasePeriod, cfg.BasePeriod)
	assert.Equal(t, simulation.DefaultSpeed, cfg.Speed)
	assert.Equal(t, simulation.DefaultBaseLoad, cfg.BaseLoad)
	assert.Equal(t, simulation.DefaultElectricityRate, cfg.ElectricityRate)
	assert.Equal(t, simulation.DefaultMonthlyBudget, cfg.MonthlyBudget)
	assert.Equal(t, simulation.DefaultToggleLatency, cfg.ToggleLatency)
	assert.Equal(t, simulation.DefaultAckDelay, cfg.AckDelay)
	assert.Equal(t, "₹", cfg.CurrencySymbol)
	assert.False(t, cfg.PrepaidMode)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SIM_SPEED", "25")
	t.Setenv("SIM_TICK_PERIOD", "500ms")
	t.Setenv("SIM_SEED", "7")
	t.Setenv("BILLING_RATE", "6.25")
	t.Setenv("BILLING_PREPAID_MODE", "true")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("REFRESH_INTERVAL", "1ms")
	t.Setenv("USE_CLOUD_SERVICES", "true")
	load(t)

	cfg := SimulationConfig()
	assert.Equal(t, simulation.MaxSpeed, cfg.Speed)
	assert.Equal(t, 500*time.Millisecond, cfg.BasePeriod)
	assert.Equal(t, uint64(7), cfg.Seed)
	assert.Equal(t, 6.25, cfg.ElectricityRate)
	assert.True(t, cfg.PrepaidMode)
	assert.Equal(t, zerolog.DebugLevel, LogLevel())
	assert.Equal(t, 100*time.Millisecond, RefreshInterval())
	assert.True(t, UseCloudServices())
}

func TestBadLogLevelFallsBackToInfo(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")
	load(t)
	assert.Equal(t, zerolog.InfoLevel, LogLevel())
}

func TestParseDevices(t *testing.T) {
	devices, err := ParseDevices([]byte(`
devices:
  - id: geyser
    name: Geyser
    type: Water Heater
    wattage: 2000
    on: true
    priority: high
    schedules: ["05:30 - 06:30"]
  - id: lamp
    name: Lamp
    wattage: 40
`))
	require.NoError(t, err)
	require.Len(t, devices, 2)

	assert.Equal(t, domain.PriorityHigh, devices[0].Priority)
	assert.True(t, devices[0].IsOn)
	assert.Equal(t, []string{"05:30 - 06:30"}, devices[0].Schedules)
	assert.Equal(t, domain.PriorityMedium, devices[1].Priority)
}

func TestParseDevicesRejectsBadEntries(t *testing.T) {
	_, err := ParseDevices([]byte("devices:\n  - name: no id\n"))
	assert.ErrorContains(t, err, "missing id")

	_, err = ParseDevices([]byte("devices:\n  - id: x\n    wattage: -1\n"))
	assert.ErrorContains(t, err, "negative wattage")

	_, err = ParseDevices([]byte("devices:\n  - id: x\n    priority: urgent\n"))
	assert.ErrorContains(t, err, "invalid priority")
}

func TestDevicesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.yaml")
	require.NoError(t, os.WriteFile(path, []byte("devices:\n  - id: fan\n    wattage: 75\n"), 0o600))
	t.Setenv("DEVICES_FILE", path)
	load(t)

	devices, err := Devices()
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "fan", devices[0].ID)
}

func TestBundledDevicesFileParses(t *testing.T) {
	devices, err := LoadDevices(filepath.Join("..", "..", "configs", "devices.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, devices)
}

func TestDefaultDevicesWithoutFile(t *testing.T) {
	load(t)
	devices, err := Devices()
	require.NoError(t, err)
	assert.Equal(t, DefaultDevices(), devices)
}

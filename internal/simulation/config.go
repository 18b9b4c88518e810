package simulation

import (
	"math"
	"time"
)

const (
	DefaultBasePeriod          = 2 * time.Second
	DefaultSpeed               = 1.0
	MinSpeed                   = 0.1
	MaxSpeed                   = 10.0
	DefaultBaseLoad            = 200.0
	DefaultElectricityRate     = 4.5
	DefaultMonthlyBudget       = 1500.0
	DefaultToggleLatency       = 500 * time.Millisecond
	DefaultAckDelay            = 2 * time.Second
	DefaultLowBalanceThreshold = 100.0
	DefaultCurrencySymbol      = "₹"

	MaxAnomalies = 5
	MaxMessages  = 10
)

// Config controls the engine. Zero latencies make operations complete immediately.
type Config struct {
	// BasePeriod is the simulated length of one tick.
	BasePeriod time.Duration
	// Speed divides BasePeriod to get the wall-clock delay between ticks.
	Speed    float64
	BaseLoad float64
	Seed     uint64

	ElectricityRate     float64
	MonthlyBudget       float64
	PrepaidBalance      float64
	PrepaidMode         bool
	LowBalanceThreshold float64
	CurrencySymbol      string

	ToggleLatency time.Duration
	AckDelay      time.Duration
}

// DefaultConfig returns the household defaults.
func DefaultConfig() Config {
	return Config{
		BasePeriod:          DefaultBasePeriod,
		Speed:               DefaultSpeed,
		BaseLoad:            DefaultBaseLoad,
		ElectricityRate:     DefaultElectricityRate,
		MonthlyBudget:       DefaultMonthlyBudget,
		LowBalanceThreshold: DefaultLowBalanceThreshold,
		CurrencySymbol:      DefaultCurrencySymbol,
		ToggleLatency:       DefaultToggleLatency,
		AckDelay:            DefaultAckDelay,
	}
}

func (c Config) withDefaults() Config {
	if c.BasePeriod <= 0 {
		c.BasePeriod = DefaultBasePeriod
	}
	if c.Speed <= 0 {
		c.Speed = DefaultSpeed
	}
	if c.BaseLoad < 0 {
		c.BaseLoad = 0
	}
	if c.CurrencySymbol == "" {
		c.CurrencySymbol = DefaultCurrencySymbol
	}
	return c
}

// ClampSpeed limits a speed multiplier to [MinSpeed, MaxSpeed].
func ClampSpeed(speed float64) float64 {
	if math.IsNaN(speed) {
		return DefaultSpeed
	}
	return math.Min(MaxSpeed, math.Max(MinSpeed, speed))
}

package simulation

import (
	"fmt"
	"math"
	"time"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/domain"
)

const (
	FluctuationRange   = 0.05
	NominalVoltage     = 230.0
	VoltageRange       = 2.0
	NominalFrequency   = 50.0
	FrequencyRange     = 0.1
	NominalPowerFactor = 0.95
	PowerFactorRange   = 0.05
)

func (e *Engine) updateReading(now time.Time, ev *events) {
	var deviceLoad float64
	for _, d := range *e.devices.Load() {
		if d.IsOn {
			deviceLoad += d.Wattage
		}
	}

	fluctuation := uniform(e.rng, -FluctuationRange, FluctuationRange)
	total := (e.cfg.BaseLoad + deviceLoad) * (1 + fluctuation)
	r := domain.LiveReading{
		CurrentUsage: total,
		Voltage:      NominalVoltage + uniform(e.rng, -VoltageRange, VoltageRange),
		Frequency:    NominalFrequency + uniform(e.rng, -FrequencyRange, FrequencyRange),
		PowerFactor:  NominalPowerFactor + uniform(e.rng, -PowerFactorRange, PowerFactorRange),
		Timestamp:    now,
	}
	e.reading.Store(&r)
	ev.reading = &r

	kwh := total / 1000 * e.tickHours()
	b := *e.billing.Load()
	b.MonthlyUsageKWh += kwh
	if b.IsPrepaidMode {
		b.PrepaidBalance = math.Max(0, b.PrepaidBalance-kwh*b.ElectricityRate)
	}
	e.storeBilling(b)

	if b.IsPrepaidMode && b.PrepaidBalance < e.cfg.LowBalanceThreshold && !e.lowBalanceNotified {
		e.lowBalanceNotified = true
		desc := fmt.Sprintf("Prepaid balance is low (%s%.2f). Please recharge to avoid disconnection.",
			e.cfg.CurrencySymbol, b.PrepaidBalance)
		e.appendMessage(newMessage(SenderUtility, CmdLowBalance, desc, now, true), ev)
	}
}

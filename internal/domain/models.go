package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority orders devices for load shedding. LOW devices are shed first.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// ParsePriority accepts LOW, MEDIUM or HIGH in any case.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToUpper(strings.TrimSpace(s))); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	}
	return "", fmt.Errorf("invalid priority %q", s)
}

// GridStatus is the utility-side state of the supply.
type GridStatus string

const (
	GridStable       GridStatus = "STABLE"
	GridLoadShedding GridStatus = "LOAD_SHEDDING"
	GridPeakHours    GridStatus = "PEAK_HOURS"
	GridMaintenance  GridStatus = "MAINTENANCE"
)

// Device is one household appliance.
type Device struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Room         string    `json:"room"`
	Icon         string    `json:"icon"`
	Wattage      float64   `json:"wattage"`
	IsOn         bool      `json:"is_on"`
	Priority     Priority  `json:"priority"`
	Efficiency   float64   `json:"efficiency"`
	DailyUsage   float64   `json:"daily_usage_kwh"`
	MonthlyUsage float64   `json:"monthly_usage_kwh"`
	LastUsed     time.Time `json:"last_used"`
	Schedules    []string  `json:"schedules"`
}

// Clone returns a copy that shares no backing arrays with d.
func (d Device) Clone() Device {
	d.Schedules = slices.Clone(d.Schedules)
	return d
}

// LiveReading is the latest instantaneous measurement.
type LiveReading struct {
	CurrentUsage float64   `json:"current_usage_w"`
	Voltage      float64   `json:"voltage"`
	Frequency    float64   `json:"frequency"`
	PowerFactor  float64   `json:"power_factor"`
	Timestamp    time.Time `json:"timestamp"`
}

// DetectedAppliance is an unlabelled load-monitoring guess.
type DetectedAppliance struct {
	Name       string    `json:"name"`
	PowerDelta float64   `json:"power_delta_w"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence"`
}

// Message is one entry of the simulated GSM channel between utility and meter.
type Message struct {
	ID          uuid.UUID `json:"id"`
	Sender      string    `json:"sender"`
	Command     string    `json:"command"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	IsIncoming  bool      `json:"is_incoming"`
}

// BillingState holds the running billing accumulators.
type BillingState struct {
	MonthlyUsageKWh float64   `json:"monthly_usage_kwh"`
	ElectricityRate float64   `json:"electricity_rate"`
	MonthlyBudget   float64   `json:"monthly_budget"`
	PrepaidBalance  float64   `json:"prepaid_balance"`
	IsPrepaidMode   bool      `json:"is_prepaid_mode"`
	CycleStart      time.Time `json:"cycle_start"`
}

// BillEstimate is usage times rate for the current cycle.
func (b BillingState) BillEstimate() float64 {
	return b.MonthlyUsageKWh * b.ElectricityRate
}

// BudgetUsedFraction returns 0 when no budget is set.
func (b BillingState) BudgetUsedFraction() float64 {
	if b.MonthlyBudget <= 0 {
		return 0
	}
	return b.BillEstimate() / b.MonthlyBudget
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StatementReason tells why a billing cycle was closed.
type StatementReason string

const (
	ReasonPayment  StatementReason = "PAYMENT"
	ReasonNewCycle StatementReason = "NEW_CYCLE"
)

// DeviceUsage is one line of a statement.
type DeviceUsage struct {
	DeviceID string  `json:"device_id"`
	Name     string  `json:"name"`
	UsageKWh float64 `json:"usage_kwh"`
}

// BillingStatement summarises a closed billing cycle.
type BillingStatement struct {
	ID          uuid.UUID       `json:"id"`
	Reason      StatementReason `json:"reason"`
	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
	UsageKWh    float64         `json:"usage_kwh"`
	Rate        float64         `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
	PrepaidMode bool            `json:"prepaid_mode"`
	Devices     []DeviceUsage   `json:"devices"`
}

// NewStatement builds a statement for the given state. Amount is rounded to cents.
func NewStatement(reason StatementReason, state BillingState, devices []Device, closedAt time.Time) BillingStatement {
	lines := make([]DeviceUsage, 0, len(devices))
	for _, d := range devices {
		lines = append(lines, DeviceUsage{DeviceID: d.ID, Name: d.Name, UsageKWh: d.MonthlyUsage})
	}
	amount := decimal.NewFromFloat(state.MonthlyUsageKWh).
		Mul(decimal.NewFromFloat(state.ElectricityRate)).
		Round(2)
	return BillingStatement{
		ID:          uuid.New(),
		Reason:      reason,
		PeriodStart: state.CycleStart,
		PeriodEnd:   closedAt,
		UsageKWh:    state.MonthlyUsageKWh,
		Rate:        state.ElectricityRate,
		Amount:      amount,
		PrepaidMode: state.IsPrepaidMode,
		Devices:     lines,
	}
}

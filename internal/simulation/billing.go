package simulation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/domain"
)

const (
	// PostpaidDueDay is the day of the following month a postpaid bill falls due.
	PostpaidDueDay = 15

	acDailyHours     = 8
	acSavingFraction = 0.24
	offPeakWattage   = 2000.0
)

// CurrentBillEstimate is monthly usage times rate.
func (e *Engine) CurrentBillEstimate() float64 {
	return e.billing.Load().BillEstimate()
}

// ResetMonthlyBill closes the cycle after a successful payment.
func (e *Engine) ResetMonthlyBill() domain.BillingStatement {
	return e.closeCycle(domain.ReasonPayment, CmdPaymentConfirmed)
}

// ResetMonthlyUsage closes the cycle at a calendar rollover.
func (e *Engine) ResetMonthlyUsage() domain.BillingStatement {
	return e.closeCycle(domain.ReasonNewCycle, CmdCycleReset)
}

func (e *Engine) closeCycle(reason domain.StatementReason, command string) domain.BillingStatement {
	var st domain.BillingStatement
	e.step("close-cycle", func(ev *events) {
		now := e.now()
		b := *e.billing.Load()
		current := *e.devices.Load()
		st = domain.NewStatement(reason, b, current, now)

		next := make([]domain.Device, len(current))
		for i, d := range current {
			d.MonthlyUsage = 0
			next[i] = d
		}
		e.storeDevices(next)

		b.MonthlyUsageKWh = 0
		b.CycleStart = now
		e.storeBilling(b)
		e.lastBudgetCheck = time.Time{}

		var desc string
		if reason == domain.ReasonPayment {
			desc = fmt.Sprintf("Payment of %s%s received. Thank you!", e.cfg.CurrencySymbol, st.Amount.StringFixed(2))
		} else {
			desc = fmt.Sprintf("New billing cycle started. Previous usage %.2f kWh", st.UsageKWh)
		}
		e.appendMessage(newMessage(SenderUtility, command, desc, now, true), ev)
		ev.statement = &st
	})
	e.log.Info().
		Str("reason", string(reason)).
		Float64("usage_kwh", st.UsageKWh).
		Str("amount", st.Amount.StringFixed(2)).
		Msg("billing cycle closed")
	return st
}

// AddPrepaidBalance credits amount and confirms the recharge.
func (e *Engine) AddPrepaidBalance(amount float64) error {
	if !(amount > 0) || math.IsInf(amount, 0) {
		return ErrInvalidAmount
	}
	e.step("recharge", func(ev *events) {
		b := *e.billing.Load()
		b.PrepaidBalance += amount
		e.storeBilling(b)
		if b.PrepaidBalance >= e.cfg.LowBalanceThreshold {
			e.lowBalanceNotified = false
		}
		desc := fmt.Sprintf("Recharge of %s%.2f successful. New balance %s%.2f",
			e.cfg.CurrencySymbol, amount, e.cfg.CurrencySymbol, b.PrepaidBalance)
		e.appendMessage(newMessage(SenderUtility, CmdRechargeOK, desc, e.now(), true), ev)
	})
	return nil
}

// SetBillingMode switches between prepaid and postpaid billing.
func (e *Engine) SetBillingMode(prepaid bool) {
	e.step("billing-mode", func(ev *events) {
		now := e.now()
		b := *e.billing.Load()
		b.IsPrepaidMode = prepaid
		e.storeBilling(b)

		var m domain.Message
		if prepaid {
			m = newMessage(SenderUtility, CmdModePrepaid,
				fmt.Sprintf("Switched to prepaid mode. Current balance %s%.2f", e.cfg.CurrencySymbol, b.PrepaidBalance),
				now, true)
		} else {
			m = newMessage(SenderUtility, CmdModePostpaid,
				"Switched to postpaid mode. Next bill due on "+PostpaidDueDate(now).Format("02 Jan 2006"),
				now, true)
		}
		e.appendMessage(m, ev)
	})
}

// PostpaidDueDate is the 15th of the month after now.
func PostpaidDueDate(now time.Time) time.Time {
	y, m, _ := now.Date()
	return time.Date(y, m+1, PostpaidDueDay, 0, 0, 0, 0, now.Location())
}

// SetElectricityRate replaces the tariff used for estimates and statements.
func (e *Engine) SetElectricityRate(rate float64) error {
	if !(rate > 0) || math.IsInf(rate, 0) {
		return ErrInvalidRate
	}
	e.step("rate", func(*events) {
		b := *e.billing.Load()
		b.ElectricityRate = rate
		e.storeBilling(b)
	})
	return nil
}

// SetMonthlyBudget replaces the budget. Zero disables the budget alert.
func (e *Engine) SetMonthlyBudget(budget float64) error {
	if budget < 0 || math.IsNaN(budget) || math.IsInf(budget, 0) {
		return ErrInvalidAmount
	}
	e.step("budget", func(*events) {
		b := *e.billing.Load()
		b.MonthlyBudget = budget
		e.storeBilling(b)
	})
	return nil
}

// OptimizationSuggestion returns a canned energy-saving tip for the device.
func (e *Engine) OptimizationSuggestion(id string) string {
	d, ok := e.Device(id)
	if !ok {
		return "Device not found"
	}
	rate := e.billing.Load().ElectricityRate
	cur := e.cfg.CurrencySymbol

	switch {
	case isAC(d):
		saving := d.Wattage / 1000 * acDailyHours * 30 * rate * acSavingFraction
		return fmt.Sprintf("Set %s to 24°C instead of 18°C. Estimated saving: %s%.0f per month", d.Name, cur, saving)
	case strings.EqualFold(d.Type, "Refrigerator") || strings.Contains(strings.ToLower(d.Name), "refrigerator"):
		return fmt.Sprintf("Keep %s away from heat sources and clean the coils every 6 months for up to 15%% better efficiency", d.Name)
	case d.Wattage > offPeakWattage:
		return fmt.Sprintf("%s draws %.0fW. Run it during off-peak hours (10 PM - 6 AM) to lower your bill", d.Name, d.Wattage)
	}
	return fmt.Sprintf("Switch off %s when not in use and avoid standby power draw", d.Name)
}

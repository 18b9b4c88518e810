package simulation

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/domain"
)

const (
	HighUsageThreshold  = 3000.0
	HighUsageDuration   = 10 * time.Minute
	BudgetAlertFraction = 0.8
	BudgetCheckInterval = time.Hour
	NightEndHour        = 6
	NightStartHour      = 22

	BudgetAlertTag = "Budget Alert"
	NightACAnomaly = "AC running during night hours - use sleep mode or a timer to save energy"
)

func (e *Engine) detectAnomalies(now time.Time, ev *events) {
	e.checkSustainedLoad(now, ev)
	e.checkBudget(now, ev)
	e.checkNightAC(now, ev)
}

func (e *Engine) checkSustainedLoad(now time.Time, ev *events) {
	usage := e.reading.Load().CurrentUsage
	if usage <= HighUsageThreshold {
		e.highUsageSince = time.Time{}
		return
	}
	if e.highUsageSince.IsZero() {
		e.highUsageSince = now
		return
	}
	elapsed := now.Sub(e.highUsageSince)
	if elapsed < HighUsageDuration {
		return
	}
	e.appendAnomaly(fmt.Sprintf("High power usage: %.0fW sustained for %d minutes", usage, int(elapsed.Minutes())), ev)
	e.highUsageSince = now
}

func (e *Engine) checkBudget(now time.Time, ev *events) {
	b := *e.billing.Load()
	used := b.BudgetUsedFraction()
	if used <= BudgetAlertFraction {
		return
	}
	if !e.lastBudgetCheck.IsZero() && now.Sub(e.lastBudgetCheck) < BudgetCheckInterval {
		return
	}
	e.lastBudgetCheck = now

	for _, a := range *e.anomalies.Load() {
		if strings.Contains(a, BudgetAlertTag) {
			return
		}
	}
	cur := e.cfg.CurrencySymbol
	e.appendAnomaly(fmt.Sprintf("%s: %.0f%% of monthly budget used (%s%.2f of %s%.2f)",
		BudgetAlertTag, used*100, cur, b.BillEstimate(), cur, b.MonthlyBudget), ev)
}

func (e *Engine) checkNightAC(now time.Time, ev *events) {
	if h := now.Hour(); h >= NightEndHour && h <= NightStartHour {
		return
	}
	acOn := slices.ContainsFunc(*e.devices.Load(), func(d domain.Device) bool {
		return d.IsOn && isAC(d)
	})
	if acOn && !slices.Contains(*e.anomalies.Load(), NightACAnomaly) {
		e.appendAnomaly(NightACAnomaly, ev)
	}
}

func isAC(d domain.Device) bool {
	return strings.EqualFold(d.Type, "AC") || hasWord(d.Name, "ac")
}

func hasWord(s, word string) bool {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, f := range fields {
		if strings.EqualFold(f, word) {
			return true
		}
	}
	return false
}

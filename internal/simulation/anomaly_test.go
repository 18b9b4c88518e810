package simulation

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/domain"
)

func countContaining(list []string, sub string) int {
	n := 0
	for _, s := range list {
		if strings.Contains(s, sub) {
			n++
		}
	}
	return n
}

func setBilling(e *Engine, fn func(b *domain.BillingState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b := *e.billing.Load()
	fn(&b)
	e.storeBilling(b)
}

func TestBudgetAlertFiresOnce(t *testing.T) {
	clock := newFakeClock(noon)
	e := newTestEngine(t, clock, nil)
	setBilling(e, func(b *domain.BillingState) { b.MonthlyUsageKWh = 267 })

	e.Tick()
	assert.Equal(t, 1, countContaining(e.Anomalies(), BudgetAlertTag))

	clock.Advance(time.Minute)
	e.Tick()
	assert.Equal(t, 1, countContaining(e.Anomalies(), BudgetAlertTag))

	// still present after the hourly re-check
	clock.Advance(2 * time.Hour)
	e.Tick()
	assert.Equal(t, 1, countContaining(e.Anomalies(), BudgetAlertTag))
}

func TestBudgetAlertBelowThreshold(t *testing.T) {
	e := newTestEngine(t, newFakeClock(noon), nil)
	setBilling(e, func(b *domain.BillingState) { b.MonthlyUsageKWh = 200 })

	e.Tick()
	assert.Zero(t, countContaining(e.Anomalies(), BudgetAlertTag))
}

func TestBudgetAlertDisabledWithoutBudget(t *testing.T) {
	e := newTestEngine(t, newFakeClock(noon), nil)
	setBilling(e, func(b *domain.BillingState) {
		b.MonthlyUsageKWh = 1000
		b.MonthlyBudget = 0
	})

	e.Tick()
	assert.Empty(t, e.Anomalies())
}

func TestSustainedHighUsage(t *testing.T) {
	clock := newFakeClock(noon)
	e := newTestEngine(t, clock, []domain.Device{{ID: "oven", Wattage: 3500, IsOn: true, Priority: domain.PriorityHigh}})

	for i := 0; i < 10; i++ {
		e.Tick()
		clock.Advance(time.Minute)
	}
	assert.Zero(t, countContaining(e.Anomalies(), "High power usage"))

	e.Tick()
	a := e.Anomalies()
	assert.Equal(t, 1, countContaining(a, "High power usage"))
	assert.Equal(t, 1, countContaining(a, "sustained for 10 minutes"))

	clock.Advance(time.Minute)
	e.Tick()
	assert.Equal(t, 1, countContaining(e.Anomalies(), "High power usage"))
}

func TestHighUsageMarkerResetsWhenLoadDrops(t *testing.T) {
	clock := newFakeClock(noon)
	e := newTestEngine(t, clock, []domain.Device{{ID: "oven", Wattage: 3500, IsOn: true}})

	e.Tick()
	clock.Advance(9 * time.Minute)
	e.mu.Lock()
	e.storeDevices([]domain.Device{{ID: "oven", Wattage: 3500}})
	e.mu.Unlock()
	e.Tick()
	e.mu.Lock()
	e.storeDevices([]domain.Device{{ID: "oven", Wattage: 3500, IsOn: true}})
	e.mu.Unlock()
	clock.Advance(2 * time.Minute)
	e.Tick()

	assert.Zero(t, countContaining(e.Anomalies(), "High power usage"))
}

func TestNightACAnomalyIsDeduplicated(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC))
	e := newTestEngine(t, clock, []domain.Device{{ID: "ac", Name: "Bedroom AC", Wattage: 1200, IsOn: true}})

	e.Tick()
	e.Tick()

	assert.Equal(t, []string{NightACAnomaly}, e.Anomalies())
}

func TestNightACIgnoresDaytimeAndOtherNames(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 10, 22, 30, 0, 0, time.UTC))
	e := newTestEngine(t, clock, []domain.Device{
		{ID: "ac", Name: "Bedroom AC", Wattage: 1200, IsOn: true},
		{ID: "tr", Name: "Tracker", Wattage: 5, IsOn: true},
	})
	e.Tick()
	assert.Empty(t, e.Anomalies())

	clock.Set(time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC))
	e.mu.Lock()
	e.storeDevices([]domain.Device{{ID: "tr", Name: "Tracker", Wattage: 5, IsOn: true}})
	e.mu.Unlock()
	e.Tick()
	assert.Empty(t, e.Anomalies())
}

func TestAnomaliesCappedAtFive(t *testing.T) {
	e := newTestEngine(t, newFakeClock(noon), nil)

	e.mu.Lock()
	for i := 0; i < 8; i++ {
		e.appendAnomaly(fmt.Sprintf("anomaly %d", i), &events{})
	}
	e.mu.Unlock()

	assert.Equal(t, []string{"anomaly 3", "anomaly 4", "anomaly 5", "anomaly 6", "anomaly 7"}, e.Anomalies())
}

func TestDuplicateAnomalyTextIsDropped(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(t, newFakeClock(noon), []domain.Device{
		{ID: "fan", Name: "Fan", Wattage: 60, Priority: domain.PriorityLow, IsOn: true},
	}, WithObserver(rec))

	e.TriggerLoadShedding()
	out, err := e.ToggleDevice(context.Background(), "fan", true)
	require.NoError(t, err)
	require.Equal(t, OutcomeUpdated, out)
	e.TriggerLoadShedding()

	assert.Equal(t, 1, countContaining(e.Anomalies(), "Load shedding activated"))
	assert.Len(t, e.Anomalies(), 1)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.anomalies, 1)
}

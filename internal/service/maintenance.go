package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ANIKETSHETTY47/energy-grid-analytics-go/maintenance"
	"github.com/rs/zerolog"
)

// ServiceInterval is the recommended appliance service cadence.
const ServiceInterval = 180 * 24 * time.Hour

const defaultFailureRate = 0.12

// failureRates are yearly failure rates per appliance type.
var failureRates = map[string]float64{
	"ac":              0.30,
	"water heater":    0.25,
	"washing machine": 0.20,
	"refrigerator":    0.15,
	"microwave":       0.10,
}

// Notifier delivers household notifications.
type Notifier interface {
	SendAnomalyAlert(ctx context.Context, household, text string, usageW float64) error
	SendMaintenanceAlert(ctx context.Context, deviceName string, risk30d float64, nextService time.Time) error
	SendBatchAlerts(ctx context.Context, alerts []string) error
}

// MaintenanceService predicts appliance service needs.
type MaintenanceService struct {
	src      Household
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time
}

func NewMaintenanceService(src Household, notifier Notifier, log zerolog.Logger) *MaintenanceService {
	return &MaintenanceService{
		src:      src,
		notifier: notifier,
		log:      log.With().Str("component", "maintenance").Logger(),
		now:      time.Now,
	}
}

type MaintenancePrediction struct {
	DeviceID          string    `json:"device_id"`
	Name              string    `json:"name"`
	HoursRun          float64   `json:"hours_run"`
	CurrentHealth     float64   `json:"current_health"`
	FailureRisk30Days float64   `json:"failure_risk_30_days"`
	FailureRisk90Days float64   `json:"failure_risk_90_days"`
	NextServiceDate   time.Time `json:"next_service_date"`
	DaysUntilService  int       `json:"days_until_service"`
	Recommendation    string    `json:"recommendation"`
	Alerted           bool      `json:"alerted"`
}

// PredictMaintenanceNeeds scores one appliance and alerts when it looks at risk.
func (s *MaintenanceService) PredictMaintenanceNeeds(ctx context.Context, deviceID string) (*MaintenancePrediction, error) {
	d, ok := s.src.Device(deviceID)
	if !ok {
		return nil, fmt.Errorf("predict %s: %w", deviceID, ErrDeviceNotFound)
	}

	health := maintenance.AssetHealth{
		HoursRun:           hoursRun(d.MonthlyUsage, d.Wattage),
		FailureRatePerYear: failureRate(d.Type),
		LastService:        s.src.Billing().CycleStart,
		ServiceInterval:    ServiceInterval,
	}
	risk30 := maintenance.FailureRisk(health.FailureRatePerYear, 30*24*time.Hour)
	risk90 := maintenance.FailureRisk(health.FailureRatePerYear, 90*24*time.Hour)
	next := maintenance.NextServiceDate(health)

	efficiency := d.Efficiency
	if efficiency <= 0 {
		efficiency = 0.8
	}
	score := 100 * efficiency * (1 - risk90)

	p := &MaintenancePrediction{
		DeviceID:          d.ID,
		Name:              d.Name,
		HoursRun:          health.HoursRun,
		CurrentHealth:     score,
		FailureRisk30Days: risk30 * 100,
		FailureRisk90Days: risk90 * 100,
		NextServiceDate:   next,
		DaysUntilService:  daysUntil(s.now(), next),
		Recommendation:    generateRecommendation(risk30, score),
	}

	if risk30 > 0.5 || score < 75 {
		p.Alerted = s.sendMaintenanceAlert(ctx, p, risk30)
	}
	return p, nil
}

func hoursRun(kwh, watts float64) float64 {
	if watts <= 0 {
		return 0
	}
	return kwh / (watts / 1000)
}

func failureRate(deviceType string) float64 {
	if r, ok := failureRates[strings.ToLower(strings.TrimSpace(deviceType))]; ok {
		return r
	}
	return defaultFailureRate
}

func generateRecommendation(risk, health float64) string {
	switch {
	case risk > 0.5 || health < 60:
		return "URGENT: Schedule immediate maintenance inspection"
	case risk > 0.3 || health < 75:
		return "Schedule maintenance within next 30 days"
	case risk > 0.15 || health < 85:
		return "Plan maintenance within next 90 days"
	}
	return "Appliance operating normally"
}

func (s *MaintenanceService) sendMaintenanceAlert(ctx context.Context, p *MaintenancePrediction, risk30 float64) bool {
	if s.notifier == nil {
		return false
	}
	if err := s.notifier.SendMaintenanceAlert(ctx, p.Name, risk30, p.NextServiceDate); err != nil {
		s.log.Warn().Err(err).Str("device", p.DeviceID).Msg("maintenance alert failed")
		return false
	}
	return true
}

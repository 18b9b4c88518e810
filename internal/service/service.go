package service

import (
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/domain"
)

var ErrDeviceNotFound = errors.New("device not found")

// Household is the read side of the simulation engine.
type Household interface {
	Reading() domain.LiveReading
	Devices() []domain.Device
	Device(id string) (domain.Device, bool)
	Billing() domain.BillingState
}

// Alert severities.
const (
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityCritical = "CRITICAL"
)

// Severity classifies an anomaly text.
func Severity(text string) string {
	switch {
	case strings.HasPrefix(text, "High power usage"):
		return SeverityCritical
	case strings.HasPrefix(text, "Load shedding"):
		return SeverityInfo
	}
	return SeverityWarning
}

// Deps wires the optional cloud collaborators. Nil fields disable the feature.
type Deps struct {
	Household   string
	Source      Household
	Notifier    Notifier
	Alerts      AlertStore
	Statements  ObjectStore
	Log         zerolog.Logger
	HistorySize int
}

type Services struct {
	Analytics   *AnalyticsService
	Maintenance *MaintenanceService
	Alerts      *AlertService
	Statements  *StatementService
}

func New(d Deps) *Services {
	return &Services{
		Analytics:   NewAnalyticsService(d.Source, d.HistorySize),
		Maintenance: NewMaintenanceService(d.Source, d.Notifier, d.Log),
		Alerts:      NewAlertService(d.Household, d.Source, d.Notifier, d.Alerts, d.Log),
		Statements:  NewStatementService(d.Household, d.Statements, d.Log),
	}
}

func daysUntil(now, t time.Time) int {
	return int(t.Sub(now).Hours() / 24)
}

package service

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/ANIKETSHETTY47/energy-grid-analytics-go/aggregator"
	"github.com/ANIKETSHETTY47/energy-grid-analytics-go/anomaly"
	"github.com/ANIKETSHETTY47/energy-grid-analytics-go/converter"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/domain"
	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/simulation"
)

const (
	DefaultHistorySize  = 720 // 24 minutes of 2s ticks
	MovingAverageWindow = 12
	PeakShare           = 0.4

	spikeThreshold = 2.0
	spikeWindow    = 12
)

// Period is a usage reporting window.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
		return p, nil
	case "":
		return PeriodMonth, nil
	}
	return "", fmt.Errorf("invalid period %q", s)
}

// AnalyticsService keeps recent readings and answers dashboard aggregates.
type AnalyticsService struct {
	simulation.NopObserver

	src  Household
	conv *converter.EnergyConverter

	mu       sync.RWMutex
	readings []domain.LiveReading
	limit    int
}

func NewAnalyticsService(src Household, limit int) *AnalyticsService {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	return &AnalyticsService{src: src, conv: &converter.EnergyConverter{}, limit: limit}
}

func (s *AnalyticsService) OnReading(r domain.LiveReading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, r)
	if len(s.readings) > s.limit {
		s.readings = slices.Clone(s.readings[len(s.readings)-s.limit:])
	}
}

// PowerStats summarises the recorded readings.
type PowerStats struct {
	Samples       int       `json:"samples"`
	AverageW      float64   `json:"average_w"`
	PeakW         float64   `json:"peak_w"`
	MinW          float64   `json:"min_w"`
	MovingAverage []float64 `json:"moving_average"`
	Spikes        int       `json:"spikes"`
	Outliers      int       `json:"outliers"`
	AvgVoltage    float64   `json:"avg_voltage"`
	Efficiency    float64   `json:"efficiency"`
}

func (s *AnalyticsService) PowerStats() PowerStats {
	s.mu.RLock()
	readings := slices.Clone(s.readings)
	s.mu.RUnlock()

	if len(readings) == 0 {
		return PowerStats{}
	}

	points := make([]aggregator.Point, len(readings))
	samples := make([]anomaly.Reading, len(readings))
	stats := PowerStats{Samples: len(readings), PeakW: readings[0].CurrentUsage, MinW: readings[0].CurrentUsage}
	var volts, pf float64
	for i, r := range readings {
		points[i] = aggregator.Point{Value: r.CurrentUsage, Timestamp: r.Timestamp}
		samples[i] = anomaly.Reading{Consumption: r.CurrentUsage}
		stats.PeakW = max(stats.PeakW, r.CurrentUsage)
		stats.MinW = min(stats.MinW, r.CurrentUsage)
		volts += r.Voltage
		pf += r.PowerFactor
	}

	stats.AverageW = aggregator.Average(points)
	if len(points) >= MovingAverageWindow {
		stats.MovingAverage = aggregator.MovingAverage(points, MovingAverageWindow)
	}
	if len(samples) > spikeWindow {
		detector := &anomaly.AnomalyDetector{Threshold: spikeThreshold, WindowSize: spikeWindow}
		stats.Spikes = len(detector.DetectSpikes(samples))
		stats.Outliers = len(detector.DetectOutliers(samples))
	}

	n := float64(len(readings))
	stats.AvgVoltage = volts / n
	if avgPF := pf / n; avgPF > 0 {
		apparent := stats.AverageW / avgPF
		stats.Efficiency = s.conv.CalculateEfficiency(apparent, stats.AverageW)
	}
	return stats
}

// DeviceShare is one device's part of a period's energy.
type DeviceShare struct {
	DeviceID string  `json:"device_id"`
	Name     string  `json:"name"`
	Room     string  `json:"room"`
	KWh      float64 `json:"kwh"`
	Share    float64 `json:"share"`
}

// UsageSummary is the energy and cost for a period.
type UsageSummary struct {
	Period      Period        `json:"period"`
	EnergyKWh   float64       `json:"energy_kwh"`
	EnergyMWh   float64       `json:"energy_mwh"`
	Cost        float64       `json:"cost"`
	PeakCost    float64       `json:"peak_cost"`
	OffPeakCost float64       `json:"offpeak_cost"`
	Devices     []DeviceShare `json:"devices"`
}

// periodKWh projects a device's usage onto p: week = month/4, year = month*12.
func periodKWh(d domain.Device, p Period) float64 {
	switch p {
	case PeriodDay:
		return d.DailyUsage
	case PeriodWeek:
		return d.MonthlyUsage / 4
	case PeriodYear:
		return d.MonthlyUsage * 12
	}
	return d.MonthlyUsage
}

func (s *AnalyticsService) UsageSummary(p Period) UsageSummary {
	devices := s.src.Devices()
	rate := s.src.Billing().ElectricityRate

	sum := UsageSummary{Period: p, Devices: make([]DeviceShare, 0, len(devices))}
	for _, d := range devices {
		kwh := periodKWh(d, p)
		sum.EnergyKWh += kwh
		sum.Devices = append(sum.Devices, DeviceShare{DeviceID: d.ID, Name: d.Name, Room: d.Room, KWh: kwh})
	}
	for i := range sum.Devices {
		if sum.EnergyKWh > 0 {
			sum.Devices[i].Share = sum.Devices[i].KWh / sum.EnergyKWh
		}
	}
	slices.SortStableFunc(sum.Devices, func(a, b DeviceShare) int {
		switch {
		case a.KWh > b.KWh:
			return -1
		case a.KWh < b.KWh:
			return 1
		}
		return 0
	})

	sum.EnergyMWh = s.conv.KWhToMWh(sum.EnergyKWh)
	sum.Cost = sum.EnergyKWh * rate
	sum.PeakCost = s.conv.CalculateCost(sum.EnergyKWh*PeakShare, rate, "peak")
	sum.OffPeakCost = s.conv.CalculateCost(sum.EnergyKWh*(1-PeakShare), rate, "offpeak")
	return sum
}

// RoomUsage totals monthly usage per room.
func (s *AnalyticsService) RoomUsage() map[string]float64 {
	out := make(map[string]float64)
	for _, d := range s.src.Devices() {
		room := d.Room
		if room == "" {
			room = "Unassigned"
		}
		out[room] += d.MonthlyUsage
	}
	return out
}

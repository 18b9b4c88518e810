package simulation

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/domain"
)

const DefaultEfficiency = 0.8

var deviceIcons = map[string]string{
	"ac":              "ac_unit",
	"water heater":    "water_drop",
	"iron":            "iron",
	"microwave":       "microwave",
	"washing machine": "local_laundry_service",
	"refrigerator":    "kitchen",
	"tv":              "tv",
	"fan":             "mode_fan",
	"light":           "lightbulb",
}

// IconFor returns the symbolic icon tag for a device type.
func IconFor(deviceType string) string {
	if icon, ok := deviceIcons[strings.ToLower(strings.TrimSpace(deviceType))]; ok {
		return icon
	}
	return "power"
}

func normalizeDevice(d domain.Device) domain.Device {
	if d.Priority == "" {
		d.Priority = domain.PriorityMedium
	}
	if d.Icon == "" {
		d.Icon = IconFor(d.Type)
	}
	if d.Wattage < 0 {
		d.Wattage = 0
	}
	return d
}

// accrueUsage adds this tick's energy to every active device.
func (e *Engine) accrueUsage(now time.Time) {
	hours := e.tickHours()
	newDay := !sameDay(e.lastTick, now)
	e.lastTick = now

	current := *e.devices.Load()
	next := make([]domain.Device, len(current))
	for i, d := range current {
		if newDay {
			d.DailyUsage = 0
		}
		if d.IsOn {
			delta := d.Wattage / 1000 * hours
			d.DailyUsage += delta
			d.MonthlyUsage += delta
			d.LastUsed = now
		}
		next[i] = d
	}
	e.storeDevices(next)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// updateDevices applies fn to a copy of every device with the given id.
// Must be called with mu held.
func (e *Engine) updateDevices(id string, fn func(d *domain.Device)) Outcome {
	current := *e.devices.Load()
	next := make([]domain.Device, len(current))
	found := false
	for i, d := range current {
		if d.ID == id {
			d = d.Clone()
			fn(&d)
			found = true
		}
		next[i] = d
	}
	if !found {
		return OutcomeNotFound
	}
	e.storeDevices(next)
	return OutcomeUpdated
}

// ToggleDevice switches a device on or off after the configured latency.
// The error is non-nil only when ctx ends before the latency elapses.
func (e *Engine) ToggleDevice(ctx context.Context, id string, on bool) (Outcome, error) {
	if err := wait(ctx, e.cfg.ToggleLatency); err != nil {
		return 0, fmt.Errorf("toggle %s: %w", id, err)
	}
	var out Outcome
	e.step("toggle", func(*events) {
		now := e.now()
		out = e.updateDevices(id, func(d *domain.Device) {
			if on && !d.IsOn {
				d.LastUsed = now
			}
			d.IsOn = on
		})
	})
	e.log.Info().Str("device", id).Bool("on", on).Stringer("outcome", out).Msg("device toggled")
	return out, nil
}

// AddDevice appends d as given. Ids are not checked for uniqueness.
func (e *Engine) AddDevice(d domain.Device) error {
	if d.Wattage < 0 || math.IsNaN(d.Wattage) {
		return ErrInvalidWattage
	}
	d = normalizeDevice(d.Clone())
	e.step("add-device", func(*events) {
		current := *e.devices.Load()
		next := make([]domain.Device, 0, len(current)+1)
		next = append(next, current...)
		e.storeDevices(append(next, d))
	})
	e.log.Info().Str("device", d.ID).Str("name", d.Name).Msg("device added")
	return nil
}

// RemoveDevice drops every device with the given id.
func (e *Engine) RemoveDevice(id string) Outcome {
	out := OutcomeNotFound
	e.step("remove-device", func(*events) {
		current := *e.devices.Load()
		next := make([]domain.Device, 0, len(current))
		for _, d := range current {
			if d.ID == id {
				out = OutcomeUpdated
				continue
			}
			next = append(next, d)
		}
		if out == OutcomeUpdated {
			e.storeDevices(next)
		}
	})
	return out
}

// ScheduleDevice appends a "start - end" entry after the configured latency.
func (e *Engine) ScheduleDevice(ctx context.Context, id, start, end string) (Outcome, error) {
	if err := wait(ctx, e.cfg.ToggleLatency); err != nil {
		return 0, fmt.Errorf("schedule %s: %w", id, err)
	}
	entry := start + " - " + end
	var out Outcome
	e.step("schedule", func(*events) {
		out = e.updateDevices(id, func(d *domain.Device) {
			d.Schedules = append(d.Schedules, entry)
		})
	})
	return out, nil
}

// UpdateDevicePriority replaces the load-shedding priority.
func (e *Engine) UpdateDevicePriority(id string, p domain.Priority) Outcome {
	var out Outcome
	e.step("priority", func(*events) {
		out = e.updateDevices(id, func(d *domain.Device) { d.Priority = p })
	})
	return out
}

// LabelDetectedAppliance turns the pending detection into a device.
// It returns false when nothing is pending.
func (e *Engine) LabelDetectedAppliance(name, deviceType, room string) (domain.Device, bool) {
	var (
		dev domain.Device
		ok  bool
	)
	e.step("label", func(ev *events) {
		det := e.detected.Load()
		if det == nil {
			return
		}
		now := e.now()
		dev = domain.Device{
			ID:         GenerateDeviceID(deviceType, room, now),
			Name:       name,
			Type:       deviceType,
			Room:       room,
			Icon:       IconFor(deviceType),
			Wattage:    det.PowerDelta,
			IsOn:       true,
			Priority:   domain.PriorityMedium,
			Efficiency: DefaultEfficiency,
			LastUsed:   now,
		}
		current := *e.devices.Load()
		next := make([]domain.Device, 0, len(current)+1)
		next = append(next, current...)
		e.storeDevices(append(next, dev))

		e.detected.Store(nil)
		ev.detection, ev.detectionChanged = nil, true
		ok = true
	})
	if ok {
		e.log.Info().Str("device", dev.ID).Float64("wattage", dev.Wattage).Msg("detected appliance labelled")
	}
	return dev, ok
}

// GenerateDeviceID builds "<type>_<room>_<unix millis>".
func GenerateDeviceID(deviceType, room string, at time.Time) string {
	return slug(deviceType) + "_" + slug(room) + "_" + strconv.FormatInt(at.UnixMilli(), 10)
}

func slug(s string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			underscore = false
		case !underscore && b.Len() > 0:
			b.WriteByte('_')
			underscore = true
		}
	}
	out := strings.TrimSuffix(b.String(), "_")
	if out == "" {
		return "device"
	}
	return out
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

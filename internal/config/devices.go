package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/domain"
)

type deviceFile struct {
	Devices []deviceEntry `yaml:"devices"`
}

type deviceEntry struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	Type       string   `yaml:"type"`
	Room       string   `yaml:"room"`
	Icon       string   `yaml:"icon"`
	Wattage    float64  `yaml:"wattage"`
	On         bool     `yaml:"on"`
	Priority   string   `yaml:"priority"`
	Efficiency float64  `yaml:"efficiency"`
	Schedules  []string `yaml:"schedules"`
}

// LoadDevices reads the seed household from a YAML file.
func LoadDevices(path string) ([]domain.Device, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read devices file: %w", err)
	}
	return ParseDevices(raw)
}

// ParseDevices decodes a YAML device list.
func ParseDevices(raw []byte) ([]domain.Device, error) {
	var f deviceFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse devices: %w", err)
	}
	out := make([]domain.Device, 0, len(f.Devices))
	for i, e := range f.Devices {
		if e.ID == "" {
			return nil, fmt.Errorf("device %d: missing id", i)
		}
		if e.Wattage < 0 {
			return nil, fmt.Errorf("device %s: negative wattage", e.ID)
		}
		p := domain.PriorityMedium
		if e.Priority != "" {
			parsed, err := domain.ParsePriority(e.Priority)
			if err != nil {
				return nil, fmt.Errorf("device %s: %w", e.ID, err)
			}
			p = parsed
		}
		out = append(out, domain.Device{
			ID:         e.ID,
			Name:       e.Name,
			Type:       e.Type,
			Room:       e.Room,
			Icon:       e.Icon,
			Wattage:    e.Wattage,
			IsOn:       e.On,
			Priority:   p,
			Efficiency: e.Efficiency,
			Schedules:  e.Schedules,
		})
	}
	return out, nil
}

// Devices returns the household from DEVICES_FILE, or the built-in one when unset.
func Devices() ([]domain.Device, error) {
	if path := DevicesFile(); path != "" {
		return LoadDevices(path)
	}
	return DefaultDevices(), nil
}

// DefaultDevices is the demo household.
func DefaultDevices() []domain.Device {
	return []domain.Device{
		{ID: "ac_bedroom", Name: "Bedroom AC", Type: "AC", Room: "Bedroom", Icon: "ac_unit", Wattage: 1500, Priority: domain.PriorityLow, Efficiency: 0.85},
		{ID: "fridge_kitchen", Name: "Refrigerator", Type: "Refrigerator", Room: "Kitchen", Icon: "kitchen", Wattage: 150, IsOn: true, Priority: domain.PriorityHigh, Efficiency: 0.9},
		{ID: "tv_living", Name: "Smart TV", Type: "TV", Room: "Living Room", Icon: "tv", Wattage: 120, IsOn: true, Priority: domain.PriorityLow, Efficiency: 0.8},
		{ID: "heater_bath", Name: "Water Heater", Type: "Water Heater", Room: "Bathroom", Icon: "water_drop", Wattage: 2000, Priority: domain.PriorityMedium, Efficiency: 0.75},
		{ID: "wm_utility", Name: "Washing Machine", Type: "Washing Machine", Room: "Utility", Icon: "local_laundry_service", Wattage: 500, Priority: domain.PriorityLow, Efficiency: 0.8},
		{ID: "lights_living", Name: "Living Room Lights", Type: "Light", Room: "Living Room", Icon: "lightbulb", Wattage: 60, IsOn: true, Priority: domain.PriorityMedium, Efficiency: 0.95},
	}
}

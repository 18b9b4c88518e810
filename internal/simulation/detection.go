package simulation

import (
	"math"
	"time"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/domain"
)

const (
	DetectionIntervalMin = 20 * time.Second
	DetectionIntervalMax = 30 * time.Second
	DetectionProbability = 0.30
	DetectionDeltaMin    = 800.0
	DetectionDeltaMax    = 2500.0
	ConfidenceMin        = 0.70
	ConfidenceMax        = 0.95
)

type signature struct {
	name    string
	wattage float64
}

// applianceSignatures is searched in order; ties go to the earlier entry.
var applianceSignatures = []signature{
	{"AC", 1500},
	{"Water Heater", 2000},
	{"Iron", 1000},
	{"Microwave", 1200},
	{"Washing Machine", 500},
}

// MatchSignature returns the known appliance whose rated draw is closest to delta.
func MatchSignature(delta float64) string {
	best := applianceSignatures[0]
	bestDiff := math.Abs(delta - best.wattage)
	for _, s := range applianceSignatures[1:] {
		if d := math.Abs(delta - s.wattage); d < bestDiff {
			best, bestDiff = s, d
		}
	}
	return best.name
}

// simulateDetection publishes a new detection on a qualifying tick and
// clears the pending one on every other tick.
func (e *Engine) simulateDetection(now time.Time, ev *events) {
	if now.Sub(e.lastDetection) >= e.detectionEvery {
		e.lastDetection = now
		e.detectionEvery = uniformDuration(e.rng, DetectionIntervalMin, DetectionIntervalMax)
		if e.rng.Float64() < DetectionProbability {
			e.publishDetection(now, ev)
			return
		}
	}
	if e.detected.Load() != nil {
		e.detected.Store(nil)
		ev.detection, ev.detectionChanged = nil, true
	}
}

func (e *Engine) publishDetection(now time.Time, ev *events) {
	delta := uniform(e.rng, DetectionDeltaMin, DetectionDeltaMax)
	d := &domain.DetectedAppliance{
		Name:       MatchSignature(delta),
		PowerDelta: delta,
		Timestamp:  now,
		Confidence: uniform(e.rng, ConfidenceMin, ConfidenceMax),
	}
	e.detected.Store(d)
	cp := *d
	ev.detection, ev.detectionChanged = &cp, true
}

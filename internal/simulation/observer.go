package simulation

import "github.com/ANIKETSHETTY47/household-energy-simulator/internal/domain"

// Observer receives state changes after they are published. Calls happen on the
// goroutine that made the change, outside the engine lock, so observers may call
// back into the engine but should not block for long.
type Observer interface {
	OnReading(r domain.LiveReading)
	OnAnomaly(text string)
	OnMessage(m domain.Message)
	OnGridStatus(s domain.GridStatus)
	// OnDetection receives nil when a pending detection is cleared.
	OnDetection(d *domain.DetectedAppliance)
	OnBillingCycle(st domain.BillingStatement)
}

// NopObserver implements Observer with no-ops; embed it to pick callbacks.
type NopObserver struct{}

func (NopObserver) OnReading(domain.LiveReading) {}
func (NopObserver) OnAnomaly(string) {}
func (NopObserver) OnMessage(domain.Message) {}
func (NopObserver) OnGridStatus(domain.GridStatus) {}
func (NopObserver) OnDetection(*domain.DetectedAppliance) {}
func (NopObserver) OnBillingCycle(domain.BillingStatement) {}

// events collects what a locked step published.
type events struct {
	reading          *domain.LiveReading
	anomalies        []string
	messages         []domain.Message
	grid             *domain.GridStatus
	detection        *domain.DetectedAppliance
	detectionChanged bool
	statement        *domain.BillingStatement
}

func (e *Engine) dispatch(ev events) {
	observers := *e.observers.Load()
	if len(observers) == 0 {
		return
	}
	for _, o := range observers {
		e.notify(o, ev)
	}
}

func (e *Engine) notify(o Observer, ev events) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Msg("observer failed")
		}
	}()
	if ev.reading != nil {
		o.OnReading(*ev.reading)
	}
	for _, a := range ev.anomalies {
		o.OnAnomaly(a)
	}
	for _, m := range ev.messages {
		o.OnMessage(m)
	}
	if ev.grid != nil {
		o.OnGridStatus(*ev.grid)
	}
	if ev.detectionChanged {
		o.OnDetection(ev.detection)
	}
	if ev.statement != nil {
		o.OnBillingCycle(*ev.statement)
	}
}

// AddObserver registers o for all subsequent changes.
func (e *Engine) AddObserver(o Observer) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	next := append(append([]Observer(nil), *e.observers.Load()...), o)
	e.observers.Store(&next)
}

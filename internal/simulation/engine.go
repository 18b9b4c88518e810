// Package simulation fabricates household electricity data: live readings,
// device state, anomalies, appliance detections, utility messages and billing.
//
// All published state is copy-on-write. Readers load the current snapshot
// without locking; writers build a new collection under the engine mutex and
// swap it in, so a snapshot held by a reader never changes underneath it.
package simulation

import (
	"context"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/domain"
)

// Engine owns the simulated household. Create one per process with New and
// release it with Stop.
type Engine struct {
	cfg  Config
	log  zerolog.Logger
	now  func() time.Time
	rng  Source
	seed []domain.Device

	speed atomic.Uint64
	ticks atomic.Uint64

	mu        sync.Mutex
	devices   atomic.Pointer[[]domain.Device]
	reading   atomic.Pointer[domain.LiveReading]
	anomalies atomic.Pointer[[]string]
	detected  atomic.Pointer[domain.DetectedAppliance]
	grid      atomic.Pointer[domain.GridStatus]
	messages  atomic.Pointer[[]domain.Message]
	billing   atomic.Pointer[domain.BillingState]

	obsMu     sync.Mutex
	observers atomic.Pointer[[]Observer]

	// guarded by mu
	lastTick           time.Time
	highUsageSince     time.Time
	lastBudgetCheck    time.Time
	lastDetection      time.Time
	detectionEvery     time.Duration
	lastMessage        time.Time
	messageEvery       time.Duration
	lowBalanceNotified bool

	lifeMu   sync.Mutex
	started  bool
	cancel   context.CancelFunc
	done     chan struct{}
	quit     chan struct{}
	stopOnce sync.Once
}

// Option customises an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRand replaces the seeded random source.
func WithRand(r Source) Option {
	return func(e *Engine) { e.rng = r }
}

// WithDevices seeds the household.
func WithDevices(devices []domain.Device) Option {
	return func(e *Engine) { e.seed = devices }
}

// WithObserver registers an observer before the first tick.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		next := append(append([]Observer(nil), *e.observers.Load()...), o)
		e.observers.Store(&next)
	}
}

// New builds an engine. It does not tick until Start is called.
func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:  cfg.withDefaults(),
		log:  zerolog.Nop(),
		now:  time.Now,
		quit: make(chan struct{}),
	}
	e.observers.Store(&[]Observer{})
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = NewSource(e.cfg.Seed)
	}
	e.SetSimulationSpeed(e.cfg.Speed)

	now := e.now()
	devices := make([]domain.Device, 0, len(e.seed))
	for _, d := range e.seed {
		devices = append(devices, normalizeDevice(d.Clone()))
	}
	e.devices.Store(&devices)
	e.reading.Store(&domain.LiveReading{
		CurrentUsage: e.cfg.BaseLoad,
		Voltage:      NominalVoltage,
		Frequency:    NominalFrequency,
		PowerFactor:  NominalPowerFactor,
		Timestamp:    now,
	})
	e.anomalies.Store(&[]string{})
	e.messages.Store(&[]domain.Message{})
	grid := domain.GridStable
	e.grid.Store(&grid)
	e.billing.Store(&domain.BillingState{
		ElectricityRate: e.cfg.ElectricityRate,
		MonthlyBudget:   e.cfg.MonthlyBudget,
		PrepaidBalance:  e.cfg.PrepaidBalance,
		IsPrepaidMode:   e.cfg.PrepaidMode,
		CycleStart:      now,
	})

	e.lastTick = now
	e.lastDetection = now
	e.detectionEvery = uniformDuration(e.rng, DetectionIntervalMin, DetectionIntervalMax)
	e.lastMessage = now
	e.messageEvery = uniformDuration(e.rng, MessageIntervalMin, MessageIntervalMax)
	return e
}

// Start launches the tick loop. It runs until ctx is cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	if e.started {
		return ErrAlreadyStarted
	}
	select {
	case <-e.quit:
		return ErrStopped
	default:
	}
	e.started = true

	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	go e.run(ctx)

	e.log.Info().
		Dur("base_period", e.cfg.BasePeriod).
		Float64("speed", e.Speed()).
		Int("devices", len(*e.devices.Load())).
		Msg("simulation started")
	return nil
}

// Stop cancels the tick loop and waits for it to exit. Pending delayed
// acknowledgements are abandoned. Safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.quit)
		e.lifeMu.Lock()
		cancel, done := e.cancel, e.done
		e.lifeMu.Unlock()
		if cancel == nil {
			return
		}
		cancel()
		<-done
		e.log.Info().Uint64("ticks", e.ticks.Load()).Msg("simulation stopped")
	})
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)
	timer := time.NewTimer(e.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			e.Tick()
			timer.Reset(e.Interval())
		}
	}
}

// Tick runs one update sequence: reading, anomalies, accrual, detection, messaging.
// A failing step is logged and skipped; the rest of the tick still runs.
func (e *Engine) Tick() {
	now := e.now()
	n := e.ticks.Add(1)

	e.step("reading", func(ev *events) { e.updateReading(now, ev) })
	e.step("anomalies", func(ev *events) { e.detectAnomalies(now, ev) })
	e.step("accrual", func(*events) { e.accrueUsage(now) })
	e.step("detection", func(ev *events) { e.simulateDetection(now, ev) })
	e.step("messaging", func(ev *events) { e.simulateMessaging(now, ev) })

	e.log.Debug().Uint64("tick", n).Float64("usage_w", e.reading.Load().CurrentUsage).Msg("tick")
}

// step runs fn under the write lock and then notifies observers with what it published.
func (e *Engine) step(name string, fn func(ev *events)) {
	var ev events
	e.locked(name, func() { fn(&ev) })
	e.dispatch(ev)
}

func (e *Engine) locked(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Str("step", name).Interface("panic", r).Msg("simulation step failed")
		}
	}()
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}

// SetSimulationSpeed clamps and applies a speed multiplier from the next tick on.
func (e *Engine) SetSimulationSpeed(speed float64) float64 {
	s := ClampSpeed(speed)
	e.speed.Store(math.Float64bits(s))
	return s
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	return math.Float64frombits(e.speed.Load())
}

// Interval is the wall-clock delay between ticks.
func (e *Engine) Interval() time.Duration {
	return time.Duration(float64(e.cfg.BasePeriod) / e.Speed())
}

func (e *Engine) tickHours() float64 {
	return e.cfg.BasePeriod.Hours()
}

// Snapshot is a consistent-per-field view of the engine.
type Snapshot struct {
	Tick         uint64                    `json:"tick"`
	Reading      domain.LiveReading        `json:"reading"`
	Devices      []domain.Device           `json:"devices"`
	Anomalies    []string                  `json:"anomalies"`
	Detected     *domain.DetectedAppliance `json:"detected,omitempty"`
	GridStatus   domain.GridStatus         `json:"grid_status"`
	Messages     []domain.Message          `json:"messages"`
	Billing      domain.BillingState       `json:"billing"`
	BillEstimate float64                   `json:"bill_estimate"`
	Speed        float64                   `json:"speed"`
}

// Snapshot gathers every published container.
func (e *Engine) Snapshot() Snapshot {
	b := e.Billing()
	return Snapshot{
		Tick:         e.ticks.Load(),
		Reading:      e.Reading(),
		Devices:      e.Devices(),
		Anomalies:    e.Anomalies(),
		Detected:     e.Detected(),
		GridStatus:   e.GridStatus(),
		Messages:     e.Messages(),
		Billing:      b,
		BillEstimate: b.BillEstimate(),
		Speed:        e.Speed(),
	}
}

// Ticks returns how many ticks have run.
func (e *Engine) Ticks() uint64 { return e.ticks.Load() }

// Reading returns the latest live reading.
func (e *Engine) Reading() domain.LiveReading { return *e.reading.Load() }

// Devices returns a deep copy of the device list.
func (e *Engine) Devices() []domain.Device {
	src := *e.devices.Load()
	out := make([]domain.Device, len(src))
	for i, d := range src {
		out[i] = d.Clone()
	}
	return out
}

// Anomalies returns the most recent distinct anomaly texts, oldest first.
func (e *Engine) Anomalies() []string { return slices.Clone(*e.anomalies.Load()) }

// Messages returns the utility message log, oldest first.
func (e *Engine) Messages() []domain.Message { return slices.Clone(*e.messages.Load()) }

// GridStatus returns the current grid status.
func (e *Engine) GridStatus() domain.GridStatus { return *e.grid.Load() }

// Billing returns the current billing state.
func (e *Engine) Billing() domain.BillingState { return *e.billing.Load() }

// Detected returns the pending detection or nil.
func (e *Engine) Detected() *domain.DetectedAppliance {
	d := e.detected.Load()
	if d == nil {
		return nil
	}
	cp := *d
	return &cp
}

// Device returns the first device with the given id.
func (e *Engine) Device(id string) (domain.Device, bool) {
	for _, d := range *e.devices.Load() {
		if d.ID == id {
			return d.Clone(), true
		}
	}
	return domain.Device{}, false
}

// The helpers below must be called with mu held.

func (e *Engine) storeDevices(devices []domain.Device) {
	e.devices.Store(&devices)
}

func (e *Engine) storeBilling(b domain.BillingState) {
	e.billing.Store(&b)
}

// appendAnomaly drops text when the list already holds it.
func (e *Engine) appendAnomaly(text string, ev *events) {
	if slices.Contains(*e.anomalies.Load(), text) {
		return
	}
	next := appendCapped(*e.anomalies.Load(), text, MaxAnomalies)
	e.anomalies.Store(&next)
	ev.anomalies = append(ev.anomalies, text)
}

func (e *Engine) appendMessage(m domain.Message, ev *events) {
	next := appendCapped(*e.messages.Load(), m, MaxMessages)
	e.messages.Store(&next)
	ev.messages = append(ev.messages, m)
}

func (e *Engine) setGrid(status domain.GridStatus, ev *events) {
	if *e.grid.Load() == status {
		return
	}
	e.grid.Store(&status)
	ev.grid = &status
}

// appendCapped returns a new slice holding the last limit elements of list+item.
func appendCapped[T any](list []T, item T, limit int) []T {
	next := make([]T, 0, len(list)+1)
	next = append(next, list...)
	next = append(next, item)
	if len(next) > limit {
		next = next[len(next)-limit:]
	}
	return next
}

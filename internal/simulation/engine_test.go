package simulation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/domain"
)

var noon = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// scriptedSource replays fixed values and falls back to the midpoint.
type scriptedSource struct {
	mu     sync.Mutex
	floats []float64
	ints   []int
}

func (s *scriptedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.floats) == 0 {
		return 0.5
	}
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func (s *scriptedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ints) == 0 {
		return 0
	}
	v := s.ints[0]
	s.ints = s.ints[1:]
	return v % n
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ToggleLatency = 0
	cfg.AckDelay = 0
	cfg.Seed = 42
	return cfg
}

func newTestEngine(t *testing.T, clock *fakeClock, devices []domain.Device, opts ...Option) *Engine {
	t.Helper()
	all := append([]Option{WithClock(clock.Now), WithDevices(devices)}, opts...)
	e := New(testConfig(), all...)
	t.Cleanup(e.Stop)
	return e
}

type recorder struct {
	NopObserver
	mu         sync.Mutex
	readings   []domain.LiveReading
	anomalies  []string
	messages   []domain.Message
	grid       []domain.GridStatus
	detections []*domain.DetectedAppliance
	statements []domain.BillingStatement
}

func (r *recorder) OnReading(x domain.LiveReading) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readings = append(r.readings, x)
}

func (r *recorder) OnAnomaly(x string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anomalies = append(r.anomalies, x)
}

func (r *recorder) OnMessage(x domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, x)
}

func (r *recorder) OnGridStatus(x domain.GridStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grid = append(r.grid, x)
}

func (r *recorder) OnDetection(x *domain.DetectedAppliance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detections = append(r.detections, x)
}

func (r *recorder) OnBillingCycle(x domain.BillingStatement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statements = append(r.statements, x)
}

func TestToggleThenTickReadingWithinFluctuation(t *testing.T) {
	clock := newFakeClock(noon)
	e := newTestEngine(t, clock, []domain.Device{
		{ID: "ac1", Name: "Bedroom AC", Type: "AC", Wattage: 1500, Priority: domain.PriorityLow},
	})

	out, err := e.ToggleDevice(context.Background(), "ac1", true)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, out)

	e.Tick()

	r := e.Reading()
	assert.GreaterOrEqual(t, r.CurrentUsage, 1615.0)
	assert.LessOrEqual(t, r.CurrentUsage, 1785.0)
	assert.GreaterOrEqual(t, r.Voltage, 228.0)
	assert.LessOrEqual(t, r.Voltage, 232.0)
	assert.InDelta(t, NominalFrequency, r.Frequency, FrequencyRange)
	assert.InDelta(t, NominalPowerFactor, r.PowerFactor, PowerFactorRange)
	assert.Equal(t, noon, r.Timestamp)
}

func TestReadingFormulaWithScriptedSource(t *testing.T) {
	clock := newFakeClock(noon)
	src := &scriptedSource{floats: []float64{0, 0, 1, 0, 0.5, 1}}
	e := newTestEngine(t, clock, []domain.Device{
		{ID: "tv", Wattage: 100, IsOn: true},
		{ID: "heater", Wattage: 2000},
	}, WithRand(src))

	e.Tick()

	r := e.Reading()
	assert.InDelta(t, 300*1.05, r.CurrentUsage, 1e-9)
	assert.InDelta(t, 228.0, r.Voltage, 1e-9)
	assert.InDelta(t, 50.0, r.Frequency, 1e-9)
	assert.InDelta(t, 1.0, r.PowerFactor, 1e-9)
}

func TestTickKeepsRunningWhenObserverPanics(t *testing.T) {
	clock := newFakeClock(noon)
	rec := &recorder{}
	e := newTestEngine(t, clock, nil, WithObserver(panicky{}), WithObserver(rec))

	e.Tick()
	e.Tick()

	assert.Equal(t, uint64(2), e.Ticks())
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.readings, 2)
}

type panicky struct{ NopObserver }

func (panicky) OnReading(domain.LiveReading) { panic("boom") }

func TestStepPanicDoesNotStopTick(t *testing.T) {
	clock := newFakeClock(noon)
	e := newTestEngine(t, clock, nil)

	e.step("explode", func(*events) { panic("bad step") })
	e.Tick()

	assert.Equal(t, uint64(1), e.Ticks())
	// the lock must have been released by the failed step
	assert.Equal(t, OutcomeNotFound, e.UpdateDevicePriority("missing", domain.PriorityHigh))
}

func TestStartStop(t *testing.T) {
	cfg := testConfig()
	cfg.BasePeriod = 5 * time.Millisecond
	e := New(cfg)

	require.NoError(t, e.Start(context.Background()))
	assert.ErrorIs(t, e.Start(context.Background()), ErrAlreadyStarted)

	assert.Eventually(t, func() bool { return e.Ticks() >= 3 }, 2*time.Second, time.Millisecond)

	e.Stop()
	n := e.Ticks()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, e.Ticks())

	assert.NotPanics(t, e.Stop)
}

func TestStopWithoutStart(t *testing.T) {
	e := New(testConfig())
	assert.NotPanics(t, e.Stop)
	assert.NotPanics(t, e.Stop)
}

func TestStartAfterStopIsRejected(t *testing.T) {
	cfg := testConfig()
	cfg.BasePeriod = 5 * time.Millisecond
	e := New(cfg)

	e.Stop()
	assert.ErrorIs(t, e.Start(context.Background()), ErrStopped)

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, e.Ticks())
}

func TestContextCancelStopsLoop(t *testing.T) {
	cfg := testConfig()
	cfg.BasePeriod = 5 * time.Millisecond
	e := New(cfg)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, e.Start(ctx))
	assert.Eventually(t, func() bool { return e.Ticks() >= 1 }, 2*time.Second, time.Millisecond)
	cancel()
	e.Stop()

	n := e.Ticks()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, e.Ticks())
}

func TestSimulationSpeedIsClamped(t *testing.T) {
	e := New(testConfig())

	assert.Equal(t, MaxSpeed, e.SetSimulationSpeed(50))
	assert.Equal(t, DefaultBasePeriod/10, e.Interval())

	assert.Equal(t, MinSpeed, e.SetSimulationSpeed(0))
	assert.Equal(t, 20*time.Second, e.Interval())

	assert.Equal(t, 2.0, e.SetSimulationSpeed(2))
	assert.Equal(t, time.Second, e.Interval())
	assert.Equal(t, 2.0, e.Snapshot().Speed)
}

func TestSnapshotsAreNotMutatedByLaterWrites(t *testing.T) {
	clock := newFakeClock(noon)
	e := newTestEngine(t, clock, []domain.Device{{ID: "fan", Wattage: 60, Priority: domain.PriorityLow, IsOn: true}})

	before := e.Devices()
	held := *e.devices.Load()
	e.TriggerLoadShedding()

	assert.True(t, before[0].IsOn)
	assert.True(t, held[0].IsOn)
	assert.False(t, e.Devices()[0].IsOn)
}

func TestDevicesReturnsDeepCopy(t *testing.T) {
	e := newTestEngine(t, newFakeClock(noon), []domain.Device{{
		ID:        "wm",
		Wattage:   500,
		Schedules: []string{"08:00-09:00"},
	}})

	got := e.Devices()
	got[0].Schedules[0] = "23:00-23:30"

	d, ok := e.Device("wm")
	require.True(t, ok)
	assert.Equal(t, "08:00-09:00", d.Schedules[0])
	d.Schedules[0] = "00:00-01:00"

	assert.Equal(t, []string{"08:00-09:00"}, (*e.devices.Load())[0].Schedules)
}

func TestConcurrentWritersAndTicks(t *testing.T) {
	clock := newFakeClock(noon)
	e := newTestEngine(t, clock, []domain.Device{
		{ID: "a", Wattage: 100, Priority: domain.PriorityLow},
		{ID: "b", Wattage: 200, Priority: domain.PriorityHigh},
	})

	var wg sync.WaitGroup
	var toggles atomic.Int64
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = e.ToggleDevice(context.Background(), "a", (i+j)%2 == 0)
				toggles.Add(1)
			}
		}(i)
	}
	for j := 0; j < 50; j++ {
		e.Tick()
	}
	wg.Wait()

	assert.Equal(t, int64(200), toggles.Load())
	assert.Equal(t, uint64(50), e.Ticks())
	assert.Len(t, e.Devices(), 2)
}

func TestNewNormalizesSeedDevices(t *testing.T) {
	e := New(testConfig(), WithDevices([]domain.Device{{ID: "x", Type: "Microwave", Wattage: -5}}))

	d, ok := e.Device("x")
	require.True(t, ok)
	assert.Equal(t, domain.PriorityMedium, d.Priority)
	assert.Equal(t, "microwave", d.Icon)
	assert.Zero(t, d.Wattage)
}

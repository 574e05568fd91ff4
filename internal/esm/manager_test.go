package esm

import (
	"testing"
	"time"

	"github.com/netiads/iads/internal/domain"
)

func testConfig(now time.Time) Config {
	cfg := DefaultConfig()
	cfg.Now = func() time.Time { return now }
	return cfg
}

// R1: AddEntity is idempotent.
func TestAddEntityIdempotent(t *testing.T) {
	m := New(testConfig(time.Now()))
	id := domain.LinkID(1, 1, 2, 1)
	m.AddEntity(id)
	before := m.Entities()

	m.AddEntity(id)
	after := m.Entities()

	if len(before) != 1 || len(after) != 1 {
		t.Fatalf("expected exactly one entity, got before=%v after=%v", before, after)
	}

	state := m.GetState(id, domain.MetricRTT)
	if state == nil {
		t.Fatalf("expected rtt state to exist after AddEntity")
	}
}

// S1: bootstrap scenario — two entities, four metrics each, no
// measurements yet. Context vector should reflect the initial-posterior
// uncertainty and zero everything else.
func TestBootstrapContextVector(t *testing.T) {
	now := time.Now()
	m := New(testConfig(now))
	m.AddEntity(domain.LinkID(1, 1, 2, 1))
	m.AddEntity(domain.LinkID(2, 1, 3, 1))

	states := m.States()
	if len(states) != 2*len(domain.Metrics) {
		t.Fatalf("expected %d states, got %d", 2*len(domain.Metrics), len(states))
	}

	cv := m.GetContextVector()
	if cv.SMean != 0 {
		t.Fatalf("s_mean = %v, want 0 with no history", cv.SMean)
	}
	if cv.EventRate != 0 {
		t.Fatalf("event_rate = %v, want 0 with no EventRateSource wired", cv.EventRate)
	}
	if cv.UMean <= 0 || cv.UMean > 1 {
		t.Fatalf("u_mean = %v, want in (0, 1]", cv.UMean)
	}
	if cv.UrgencyMean != 0 {
		t.Fatalf("urgency_mean = %v, want 0 immediately after AddEntity", cv.UrgencyMean)
	}
}

// P2 (partial): a successful update never increases uncertainty in
// expectation; here we check the simpler invariant that repeated
// consistent Gaussian measurements monotonically shrink U.
func TestUpdateDistributionShrinksUncertainty(t *testing.T) {
	m := New(testConfig(time.Now()))
	id := domain.LinkID(1, 1, 2, 1)
	m.AddEntity(id)

	before := m.GetState(id, domain.MetricRTT).Uncertainty(m.cfg.MaxUncertainty)
	for i := 0; i < 20; i++ {
		if ok := m.UpdateDistribution(id, domain.MetricRTT, 10); !ok {
			t.Fatalf("UpdateDistribution returned false for known entity")
		}
	}
	after := m.GetState(id, domain.MetricRTT).Uncertainty(m.cfg.MaxUncertainty)
	if after >= before {
		t.Fatalf("uncertainty did not shrink: before=%v after=%v", before, after)
	}
}

func TestUpdateDistributionUnknownEntity(t *testing.T) {
	m := New(testConfig(time.Now()))
	if ok := m.UpdateDistribution("nope", domain.MetricRTT, 1); ok {
		t.Fatalf("expected false for unknown entity")
	}
}

// P3: SetProbeInterval always clamps to [min, max].
func TestSetProbeIntervalClamps(t *testing.T) {
	m := New(testConfig(time.Now()))
	id := domain.LinkID(1, 1, 2, 1)
	m.AddEntity(id)

	m.SetProbeInterval(id, domain.MetricRTT, 1000)
	if got := m.GetState(id, domain.MetricRTT).ProbeInterval; got != m.cfg.ProbeIntervalMax {
		t.Fatalf("probe interval = %v, want clamped to max %v", got, m.cfg.ProbeIntervalMax)
	}

	m.SetProbeInterval(id, domain.MetricRTT, -5)
	if got := m.GetState(id, domain.MetricRTT).ProbeInterval; got != m.cfg.ProbeIntervalMin {
		t.Fatalf("probe interval = %v, want clamped to min %v", got, m.cfg.ProbeIntervalMin)
	}
}

func TestStabilityRequiresWindow(t *testing.T) {
	m := New(testConfig(time.Now()))
	id := domain.LinkID(1, 1, 2, 1)
	m.AddEntity(id)

	m.UpdateDistribution(id, domain.MetricRTT, 10)
	if got := m.GetState(id, domain.MetricRTT).Stability; got != 0 {
		t.Fatalf("stability after one measurement = %v, want 0", got)
	}

	for i := 0; i < 20; i++ {
		m.UpdateDistribution(id, domain.MetricRTT, float64(10+i%3))
	}
	if got := m.GetState(id, domain.MetricRTT).Stability; got <= 0 {
		t.Fatalf("stability after varying measurements = %v, want > 0", got)
	}
}

// Stability must stay within [0, MaxStability] (spec.md §3) even when
// raw sample variance would exceed it.
func TestStabilityClampedToMaxStability(t *testing.T) {
	cfg := testConfig(time.Now())
	cfg.MaxStability = 5.0
	m := New(cfg)
	id := domain.LinkID(1, 1, 2, 1)
	m.AddEntity(id)

	for i := 0; i < 20; i++ {
		v := 1000.0
		if i%2 == 0 {
			v = -1000.0
		}
		m.UpdateDistribution(id, domain.MetricRTT, v)
	}

	got := m.GetState(id, domain.MetricRTT).Stability
	if got > cfg.MaxStability || got < 0 {
		t.Fatalf("stability = %v, want within [0, %v]", got, cfg.MaxStability)
	}
}

func TestUrgencyGrowsWithElapsedTime(t *testing.T) {
	now := time.Now()
	m := New(testConfig(now))
	id := domain.LinkID(1, 1, 2, 1)
	m.AddEntity(id)

	state := m.GetState(id, domain.MetricRTT)
	if u := state.Urgency(now); u != 0 {
		t.Fatalf("urgency immediately after AddEntity = %v, want 0", u)
	}

	later := now.Add(time.Duration(state.ProbeInterval) * time.Second)
	if u := state.Urgency(later); u < 0.99 {
		t.Fatalf("urgency after one full interval = %v, want ~1", u)
	}

	wayLater := now.Add(time.Duration(state.ProbeInterval) * 10 * time.Second)
	if u := state.Urgency(wayLater); u != 2.0 {
		t.Fatalf("urgency after 10 intervals = %v, want clamped to 2.0", u)
	}
}

type fakeEventSource struct{ rate float64 }

func (f fakeEventSource) EventRateNormalized() float64 { return f.rate }

func TestContextVectorUsesWiredEventSource(t *testing.T) {
	m := New(testConfig(time.Now()))
	m.AddEntity(domain.LinkID(1, 1, 2, 1))
	m.SetEventSource(fakeEventSource{rate: 0.5})

	cv := m.GetContextVector()
	if cv.EventRate != 0.5 {
		t.Fatalf("event_rate = %v, want 0.5 from wired source", cv.EventRate)
	}
}

func TestHistoryRingBufferWraps(t *testing.T) {
	m := New(testConfig(time.Now()))
	id := domain.LinkID(1, 1, 2, 1)
	m.AddEntity(id)

	for i := 0; i < historyCapacity+10; i++ {
		m.UpdateDistribution(id, domain.MetricRTT, float64(i))
	}
	hist := m.GetState(id, domain.MetricRTT).History()
	if len(hist) != historyCapacity {
		t.Fatalf("history length = %d, want %d", len(hist), historyCapacity)
	}
	// Oldest surviving value should be the 11th written (index 10), not 0.
	if hist[0] != 10 {
		t.Fatalf("oldest surviving history value = %v, want 10", hist[0])
	}
	if hist[len(hist)-1] != float64(historyCapacity+9) {
		t.Fatalf("newest history value = %v, want %v", hist[len(hist)-1], historyCapacity+9)
	}
}

// Package esm implements the Entity State Manager (spec.md §4.1): the
// single owner of the `(entity_id, metric) -> EntityState` table. UQ, EM
// and RFU all read and write through this package; nothing else holds
// entity state.
package esm

import (
	"math"
	"sync"
	"time"

	"github.com/netiads/iads/internal/domain"
)

// historyCapacity is the ring buffer size for raw measurement history
// (spec.md §3: "bounded ring buffer ... >= 100 items").
const historyCapacity = 100

// stabilityWindow is W in spec.md §4.1: the number of most recent
// measurements sample variance is computed over.
const stabilityWindow = 20

// Config holds the numeric knobs ESM needs. Construct via
// config.Config-derived fields in the composition root; this is
// deliberately a flat value type so tests can build one inline.
type Config struct {
	ProbeIntervalDefault float64
	ProbeIntervalMin     float64
	ProbeIntervalMax     float64
	MaxUncertainty       float64
	MaxStability         float64

	Init  InitParams
	Noise NoiseParams

	// Now is an injectable clock for testing.
	Now func() time.Time
}

// InitParams are the initial distribution parameters per metric
// (spec.md §6 "Initial distributions:").
type InitParams struct {
	LivenessAlpha, LivenessBeta float64
	RTTMu, RTTSigma2            float64
	PLRMu, PLRSigma2            float64
	BWMu, BWSigma2              float64
}

// NoiseParams are measurement noise variances per metric (spec.md §6).
type NoiseParams struct {
	RTT, PLR, Bandwidth, Liveness float64
}

// DefaultConfig returns the spec.md §6 production defaults.
func DefaultConfig() Config {
	return Config{
		ProbeIntervalDefault: 10,
		ProbeIntervalMin:     1,
		ProbeIntervalMax:     60,
		MaxUncertainty:       2.0,
		MaxStability:         5.0,
		Init: InitParams{
			LivenessAlpha: 1, LivenessBeta: 1,
			RTTMu: 10, RTTSigma2: 100,
			PLRMu: 0.01, PLRSigma2: 0.001,
			BWMu: 100, BWSigma2: 1000,
		},
		Noise: NoiseParams{RTT: 1.0, PLR: 0.001, Bandwidth: 10.0, Liveness: 1.0},
		Now:   time.Now,
	}
}

// EntityState is the Bayesian latent state of one (entity, metric) pair,
// owned exclusively by Manager (spec.md §3).
type EntityState struct {
	EntityID domain.EntityID
	Metric   domain.Metric

	Distribution   domain.Distribution
	Stability      float64
	ProbeInterval  float64
	LastProbeTime  time.Time

	history    [historyCapacity]float64
	histLen    int
	histNext   int
}

// recordHistory appends a raw measurement into the ring buffer.
func (s *EntityState) recordHistory(v float64) {
	s.history[s.histNext] = v
	s.histNext = (s.histNext + 1) % historyCapacity
	if s.histLen < historyCapacity {
		s.histLen++
	}
}

// recentHistory returns up to n of the most recently recorded values,
// oldest first.
func (s *EntityState) recentHistory(n int) []float64 {
	if n > s.histLen {
		n = s.histLen
	}
	out := make([]float64, n)
	// s.histNext is the index the NEXT write lands on; walk backward.
	idx := s.histNext
	for i := n - 1; i >= 0; i-- {
		idx--
		if idx < 0 {
			idx = historyCapacity - 1
		}
		out[i] = s.history[idx]
	}
	return out
}

// History returns up to historyCapacity of the most recent raw
// measurements recorded for this state, oldest first. EM does not read
// it: its rtt spike check runs on a separate history of the posterior
// mean that EM records on each detection pass.
func (s *EntityState) History() []float64 {
	return s.recentHistory(s.histLen)
}

// Uncertainty returns U(i,m), the entropy of the current posterior,
// clamped to [0, maxUncertainty] per spec.md §3.
func (s *EntityState) Uncertainty(maxUncertainty float64) float64 {
	return clamp(s.Distribution.Entropy(), 0, maxUncertainty)
}

// Urgency returns urgency(i,m) = min((now - last_probe_time)/T, 2.0)
// (spec.md §4.1).
func (s *EntityState) Urgency(now time.Time) float64 {
	if s.LastProbeTime.IsZero() {
		return 2.0
	}
	if s.ProbeInterval <= 0 {
		return 2.0
	}
	elapsed := now.Sub(s.LastProbeTime).Seconds()
	return math.Min(elapsed/s.ProbeInterval, 2.0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// EventRateSource lets ESM read EM's normalized recent-event rate for
// the context vector (spec.md §4.1 "event_rate"). EM implements this;
// Manager holds it as a one-way borrow (spec.md §9), wired once at
// startup. A nil source reports a rate of 0 (e.g. before EM exists yet).
type EventRateSource interface {
	EventRateNormalized() float64
}

// ContextVector is the 4-dim normalized snapshot fed to CMAB (spec.md
// §4.1 get_context_vector / GLOSSARY).
type ContextVector struct {
	UMean       float64
	SMean       float64
	UrgencyMean float64
	EventRate   float64
}

// Vector returns the context as a plain [4]float64 in the fixed order
// (u_mean, s_mean, urgency_mean, event_rate) APS's linear model expects.
func (c ContextVector) Vector() [4]float64 {
	return [4]float64{c.UMean, c.SMean, c.UrgencyMean, c.EventRate}
}

// Manager is the Entity State Manager. It is safe for concurrent use:
// spec.md §5 calls for "a single logical lock ... or a coarse RW-lock
// over the whole table"; Manager uses the latter, the simpler of the two
// and sufficient at the scale this core targets.
type Manager struct {
	mu    sync.RWMutex
	cfg   Config
	table map[domain.EntityID]map[domain.Metric]*EntityState
	order []domain.EntityID // insertion order, for deterministic iteration/reporting

	events EventRateSource
}

// New creates an empty Entity State Manager.
func New(cfg Config) *Manager {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		cfg:   cfg,
		table: make(map[domain.EntityID]map[domain.Metric]*EntityState),
	}
}

// SetEventSource wires EM's event-rate accessor in. Called once by the
// composition root after both ESM and EM exist.
func (m *Manager) SetEventSource(src EventRateSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = src
}

// AddEntity creates one EntityState per configured metric for entityID,
// using the initial distribution family and parameters from Config
// (spec.md §4.1). Idempotent (R1): re-adding an existing entity is a
// no-op.
func (m *Manager) AddEntity(entityID domain.EntityID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.table[entityID]; ok {
		return
	}

	states := make(map[domain.Metric]*EntityState, len(domain.Metrics))
	now := m.cfg.Now()
	for _, metric := range domain.Metrics {
		states[metric] = &EntityState{
			EntityID:      entityID,
			Metric:        metric,
			Distribution:  m.initialDistribution(metric),
			Stability:     0,
			ProbeInterval: m.cfg.ProbeIntervalDefault,
			LastProbeTime: now,
		}
	}
	m.table[entityID] = states
	m.order = append(m.order, entityID)
}

func (m *Manager) initialDistribution(metric domain.Metric) domain.Distribution {
	switch metric {
	case domain.MetricLiveness:
		return domain.NewBeta(m.cfg.Init.LivenessAlpha, m.cfg.Init.LivenessBeta)
	case domain.MetricRTT:
		return domain.NewGaussian(m.cfg.Init.RTTMu, m.cfg.Init.RTTSigma2)
	case domain.MetricPLR:
		return domain.NewGaussian(m.cfg.Init.PLRMu, m.cfg.Init.PLRSigma2)
	default: // bandwidth
		return domain.NewGaussian(m.cfg.Init.BWMu, m.cfg.Init.BWSigma2)
	}
}

// noiseVar returns the configured measurement noise variance for metric.
func (m *Manager) noiseVar(metric domain.Metric) float64 {
	switch metric {
	case domain.MetricRTT:
		return m.cfg.Noise.RTT
	case domain.MetricPLR:
		return m.cfg.Noise.PLR
	case domain.MetricBandwidth:
		return m.cfg.Noise.Bandwidth
	default:
		return m.cfg.Noise.Liveness
	}
}

// GetState returns the state for (entityID, metric), or nil if the
// entity was never added (spec.md §4.1 "get_state").
func (m *Manager) GetState(entityID domain.EntityID, metric domain.Metric) *EntityState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getStateLocked(entityID, metric)
}

func (m *Manager) getStateLocked(entityID domain.EntityID, metric domain.Metric) *EntityState {
	metrics, ok := m.table[entityID]
	if !ok {
		return nil
	}
	return metrics[metric]
}

// Uncertainty returns U(i,m), clamped to [0, max_uncertainty], for
// (entityID, metric). Satisfies rfu.StateUpdater's read half.
func (m *Manager) Uncertainty(entityID domain.EntityID, metric domain.Metric) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.getStateLocked(entityID, metric)
	if s == nil {
		return 0, false
	}
	return s.Uncertainty(m.cfg.MaxUncertainty), true
}

// Snapshot returns a shallow copy of the current state — a value, not a
// pointer — so callers (e.g. RFU caching U_before) can read it without
// holding ESM's lock across a probe round.
func (m *Manager) Snapshot(entityID domain.EntityID, metric domain.Metric) (EntityState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.getStateLocked(entityID, metric)
	if s == nil {
		return EntityState{}, false
	}
	return *s, true
}

// UpdateDistribution performs the Bayesian posterior update for
// (entityID, metric), appends to history, and recomputes stability
// (spec.md §4.1 "update_distribution"). Returns false if the entity/
// metric is unknown (spec.md §7 "Missing state" — caller logs once).
func (m *Manager) UpdateDistribution(entityID domain.EntityID, metric domain.Metric, value float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.getStateLocked(entityID, metric)
	if state == nil {
		return false
	}

	state.Distribution.Update(value, m.noiseVar(metric))
	state.recordHistory(value)
	state.Stability = clamp(computeStability(state), 0, m.cfg.MaxStability)
	state.LastProbeTime = m.cfg.Now()
	return true
}

// computeStability recomputes S(i,m): the sample variance of the last W
// measurements (default 20) if available, else 0 (spec.md §4.1). Gaussian
// metrics use raw variance of recorded values; Beta metrics use the
// variance of the success indicator recorded in history (1.0/0.0).
func computeStability(state *EntityState) float64 {
	window := state.recentHistory(stabilityWindow)
	if len(window) < 2 {
		return 0
	}
	return sampleVariance(window)
}

func sampleVariance(xs []float64) float64 {
	n := float64(len(xs))
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= n
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return ss / (n - 1)
}

// SetProbeInterval clamps T to [min, max] and stores it (spec.md §4.1
// "set_probe_interval"; invariant P3).
func (m *Manager) SetProbeInterval(entityID domain.EntityID, metric domain.Metric, t float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.getStateLocked(entityID, metric)
	if state == nil {
		return false
	}
	state.ProbeInterval = clamp(t, m.cfg.ProbeIntervalMin, m.cfg.ProbeIntervalMax)
	return true
}

// MaxUncertainty returns the configured clamp bound for U(i,m), for
// callers (Core) that need to build a ScoredCandidate outside Manager.
func (m *Manager) MaxUncertainty() float64 {
	return m.cfg.MaxUncertainty
}

// Now returns the current time from ESM's configured clock.
func (m *Manager) Now() time.Time {
	return m.cfg.Now()
}

// Entities returns all known entity IDs in the order they were added.
func (m *Manager) Entities() []domain.EntityID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.EntityID, len(m.order))
	copy(out, m.order)
	return out
}

// EntityIDs satisfies uq.StateSource.
func (m *Manager) EntityIDs() []domain.EntityID {
	return m.Entities()
}

// StateFor satisfies uq.StateSource: it returns the live distribution
// and configured measurement noise variance for (id, metric).
func (m *Manager) StateFor(id domain.EntityID, metric domain.Metric) (domain.Distribution, float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.getStateLocked(id, metric)
	if s == nil {
		return domain.Distribution{}, 0, false
	}
	return s.Distribution, m.noiseVar(metric), true
}

// States returns a snapshot of every EntityState currently tracked,
// across all entities and metrics. Used by Core to build EM inputs and
// PRIO candidates, and by the status/report surfaces.
func (m *Manager) States() []EntityState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]EntityState, 0, len(m.order)*len(domain.Metrics))
	for _, id := range m.order {
		for _, metric := range domain.Metrics {
			if s := m.table[id][metric]; s != nil {
				out = append(out, *s)
			}
		}
	}
	return out
}

// GetContextVector computes the population-mean context snapshot
// (spec.md §4.1). UMean, SMean and EventRate lie in [0,1]; UrgencyMean
// is the plain mean of Urgency, which is capped at 2.0, so it lies in
// [0,2].
// Taken under a single RLock so every mean is over one consistent
// snapshot of the table (spec.md §5 "Context vector computation reads
// ESM under a single consistent snapshot").
func (m *Manager) GetContextVector() ContextVector {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var uSum, sSum, urgSum float64
	var n int
	now := m.cfg.Now()
	for _, id := range m.order {
		for _, metric := range domain.Metrics {
			state := m.table[id][metric]
			if state == nil {
				continue
			}
			n++
			uSum += state.Uncertainty(m.cfg.MaxUncertainty) / m.cfg.MaxUncertainty
			sSum += clamp(state.Stability, 0, m.cfg.MaxStability) / m.cfg.MaxStability
			urgSum += state.Urgency(now)
		}
	}

	cv := ContextVector{}
	if n > 0 {
		cv.UMean = uSum / float64(n)
		cv.SMean = sSum / float64(n)
		cv.UrgencyMean = urgSum / float64(n)
	}
	if m.events != nil {
		cv.EventRate = m.events.EventRateNormalized()
	}
	return cv
}

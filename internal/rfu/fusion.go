// Package rfu implements the Result Fusion Unit (spec.md §4.5): closes
// the loop between a probe batch's results and ESM/APS, computing the
// scalar reward CMAB learns from.
package rfu

import (
	"log"

	"github.com/netiads/iads/internal/domain"
)

// Config holds RFU's reward-aggregation weights (spec.md §6 "Reward:").
type Config struct {
	UncertaintyWeight       float64
	CostWeight              float64
	MaxUncertaintyReduction float64
}

// DefaultConfig returns the spec.md §6 production defaults.
func DefaultConfig() Config {
	return Config{UncertaintyWeight: 0.7, CostWeight: 0.3, MaxUncertaintyReduction: 1.0}
}

// Measurement is one selected task's probe outcome, ready for fusion
// (spec.md §4.5 "process_results").
type Measurement struct {
	EntityID  domain.EntityID
	Metric    domain.Metric
	Success   bool
	Value     float64
}

// StateUpdater is the narrow ESM write access RFU needs: apply the
// posterior update for a successful measurement and read back the
// entropy before/after (spec.md §9 "one-way borrows from Core").
type StateUpdater interface {
	// Uncertainty returns U(i,m) for the current posterior.
	Uncertainty(id domain.EntityID, metric domain.Metric) (float64, bool)
	// UpdateDistribution applies the measurement and returns true if
	// the entity/metric was known.
	UpdateDistribution(id domain.EntityID, metric domain.Metric, value float64) bool
}

// TaskDelta is one task's uncertainty reduction, part of RFU's return
// value (spec.md §4.5 step 5).
type TaskDelta struct {
	EntityID   domain.EntityID
	Metric     domain.Metric
	UBefore    float64
	UAfter     float64
	DeltaU     float64
	Success    bool
}

// Result is process_results's full return value.
type Result struct {
	Deltas []TaskDelta
	Reward float64
}

// Fusion is the Result Fusion Unit. Its own state is the U_before
// cache for the in-flight round (spec.md §5 "cache_states_before_probe")
// and the set of (entity, metric) pairs already logged as missing.
type Fusion struct {
	cfg     Config
	kMax    int // K_max, the configured top_k, used in the cost term
	cachedU map[key]float64

	warnedMissing map[key]bool // logged once per (entity, metric), spec.md §7
}

type key struct {
	id     domain.EntityID
	metric domain.Metric
}

// New creates a Fusion unit. kMax is APS's configured top_k (used as
// K_max in the reward's cost term).
func New(cfg Config, kMax int) *Fusion {
	return &Fusion{cfg: cfg, kMax: kMax, cachedU: make(map[key]float64), warnedMissing: make(map[key]bool)}
}

// CacheStatesBeforeProbe snapshots U_before(i,m) for each selected task
// (spec.md §4.5 "cache_states_before_probe").
func (f *Fusion) CacheStatesBeforeProbe(selected []domain.ProbeTask, esm StateUpdater) {
	f.cachedU = make(map[key]float64, len(selected))
	for _, t := range selected {
		if u, ok := esm.Uncertainty(t.EntityID, t.Metric); ok {
			f.cachedU[key{t.EntityID, t.Metric}] = u
		}
	}
}

// ProcessResults applies every measurement to ESM, computes per-task
// delta-uncertainty, and aggregates the round's reward (spec.md §4.5
// "process_results"). Failed results contribute no delta-U but still
// count toward the cost term.
func (f *Fusion) ProcessResults(results []domain.ProbeResult, esm StateUpdater) Result {
	deltas := make([]TaskDelta, 0, len(results))
	var sumDeltaU float64

	for _, r := range results {
		k := key{r.EntityID, r.Metric}
		uBefore, hadBefore := f.cachedU[k]

		var uAfter float64
		if r.Success {
			if ok := esm.UpdateDistribution(r.EntityID, r.Metric, r.Value); !ok {
				f.logMissingOnce(k)
			}
			if u, ok := esm.Uncertainty(r.EntityID, r.Metric); ok {
				uAfter = u
			}
		} else if hadBefore {
			uAfter = uBefore
		}

		deltaU := 0.0
		if hadBefore && r.Success {
			deltaU = uBefore - uAfter
			if deltaU < 0 {
				deltaU = 0
			}
		}
		sumDeltaU += deltaU

		deltas = append(deltas, TaskDelta{
			EntityID: r.EntityID, Metric: r.Metric,
			UBefore: uBefore, UAfter: uAfter, DeltaU: deltaU, Success: r.Success,
		})
	}

	reward := f.computeReward(sumDeltaU, len(results))
	return Result{Deltas: deltas, Reward: reward}
}

// logMissingOnce logs a "missing state on update" warning the first time
// k is seen, then stays silent for the rest of the process lifetime
// (spec.md §7 "ignored, logged once per (entity, metric)").
func (f *Fusion) logMissingOnce(k key) {
	if f.warnedMissing[k] {
		return
	}
	f.warnedMissing[k] = true
	log.Printf("[rfu] missing state on update: entity=%s metric=%s (ignored)", k.id, k.metric)
}

// computeReward aggregates
// reward = w_unc * sum(deltaU) / (|selected| * deltaU_max)
//          - w_cost * (|selected| / K_max)
// (spec.md §4.5 step 3). An empty batch contributes no uncertainty
// term and the minimum cost term (0 probes issued).
func (f *Fusion) computeReward(sumDeltaU float64, n int) float64 {
	if n == 0 {
		return 0
	}
	deltaUMax := f.cfg.MaxUncertaintyReduction
	if deltaUMax <= 0 {
		deltaUMax = 1.0
	}
	kMax := f.kMax
	if kMax <= 0 {
		kMax = n
	}

	ratio := sumDeltaU / (float64(n) * deltaUMax)
	if ratio > 1.0 {
		// P6 bounds reward to [-w_cost, w_unc]; a batch of unusually
		// large single-step entropy reductions should saturate the
		// uncertainty term rather than push the reward above w_unc.
		ratio = 1.0
	}
	uncertaintyTerm := f.cfg.UncertaintyWeight * ratio

	costRatio := float64(n) / float64(kMax)
	if costRatio > 1.0 {
		costRatio = 1.0
	}
	costTerm := f.cfg.CostWeight * costRatio
	return uncertaintyTerm - costTerm
}

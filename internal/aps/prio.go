package aps

import (
	"math"
	"sort"

	"github.com/netiads/iads/internal/domain"
)

// PriorityWeights are PRIO's linear weights (spec.md §4.3.3).
type PriorityWeights struct {
	EIG         float64
	Urgency     float64
	PolicyMatch float64
	EventTrig   float64
}

// PrioConfig bundles PRIO's tuning.
type PrioConfig struct {
	Weights        PriorityWeights
	MaxUncertainty float64
	MaxStability   float64
}

// PRIO is the weighted linear priority ranker (spec.md §4.3.3).
type PRIO struct {
	cfg PrioConfig
}

// NewPRIO constructs a PRIO with the given weights/scales.
func NewPRIO(cfg PrioConfig) *PRIO {
	return &PRIO{cfg: cfg}
}

// ScoredCandidate is everything PRIO needs to score and the tie-break
// needs to order one (entity, metric) task: Core assembles these from
// UQ's pool plus ESM/EM reads each round.
type ScoredCandidate struct {
	EntityID   domain.EntityID
	Metric     domain.Metric
	EIG        float64
	Urgency    float64
	Uncertainty float64 // U(i,m), used by the FOCUS_UNCERTAINTY policy match
	Stability  float64 // S(i,m), used by the HIGHFREQ_UNSTABLE policy match
	EventTrig  float64 // 0.0 or 1.0, from EM
}

// ScoredTask is one ranked result (spec.md §4.3.3 output "tasks:
// [(task, priority, components)]").
type ScoredTask struct {
	EntityID   domain.EntityID
	Metric     domain.Metric
	Priority   float64
	PolicyMatch float64
	EventTrig  float64
	EIG        float64
	Urgency    float64
}

// policyMatch computes the strategy-specific match term (spec.md
// §4.3.3 "policyMatch(task, strategy)").
func (p *PRIO) policyMatch(c ScoredCandidate, strategy Strategy) float64 {
	switch strategy {
	case FocusUncertainty:
		if p.cfg.MaxUncertainty <= 0 {
			return 0
		}
		return c.Uncertainty / p.cfg.MaxUncertainty
	case HighfreqUnstable:
		if p.cfg.MaxStability <= 0 {
			return 0
		}
		return math.Min(c.Stability/p.cfg.MaxStability, 1.0)
	case CoverageBalancer:
		return 1.0
	case EventTrigger:
		if c.EventTrig > 0 {
			return 1.0
		}
		return 0.0
	default:
		return 0.0
	}
}

// CalculatePriority computes the weighted-linear priority score
// (spec.md §4.3.3).
func (p *PRIO) CalculatePriority(eig, urgency, policyMatch, eventTrig float64) float64 {
	w := p.cfg.Weights
	return w.EIG*eig + w.Urgency*urgency + w.PolicyMatch*policyMatch + w.EventTrig*eventTrig
}

// SelectTopK scores every candidate under strategy and returns the top
// k by descending priority, ties broken by EIG descending then by
// entity_id lexicographic (spec.md §4.3.3 step 4).
func (p *PRIO) SelectTopK(candidates []ScoredCandidate, strategy Strategy, k int) []ScoredTask {
	scored := make([]ScoredTask, len(candidates))
	for i, c := range candidates {
		match := p.policyMatch(c, strategy)
		scored[i] = ScoredTask{
			EntityID: c.EntityID, Metric: c.Metric,
			Priority:    p.CalculatePriority(c.EIG, c.Urgency, match, c.EventTrig),
			PolicyMatch: match,
			EventTrig:   c.EventTrig,
			EIG:         c.EIG,
			Urgency:     c.Urgency,
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Priority != scored[j].Priority {
			return scored[i].Priority > scored[j].Priority
		}
		if scored[i].EIG != scored[j].EIG {
			return scored[i].EIG > scored[j].EIG
		}
		return scored[i].EntityID < scored[j].EntityID
	})

	if k < len(scored) {
		scored = scored[:k]
	}
	return scored
}

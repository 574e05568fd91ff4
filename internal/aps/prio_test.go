package aps

import (
	"testing"

	"github.com/netiads/iads/internal/domain"
)

func testPrio() *PRIO {
	return NewPRIO(PrioConfig{
		Weights:        PriorityWeights{EIG: 0.4, Urgency: 0.3, PolicyMatch: 0.2, EventTrig: 0.1},
		MaxUncertainty: 2.0,
		MaxStability:   5.0,
	})
}

func TestPolicyMatchPerStrategy(t *testing.T) {
	p := testPrio()
	c := ScoredCandidate{Uncertainty: 1.0, Stability: 2.5, EventTrig: 1.0}

	if got := p.policyMatch(c, FocusUncertainty); got != 0.5 {
		t.Fatalf("FOCUS_UNCERTAINTY match = %v, want 0.5", got)
	}
	if got := p.policyMatch(c, HighfreqUnstable); got != 0.5 {
		t.Fatalf("HIGHFREQ_UNSTABLE match = %v, want 0.5", got)
	}
	if got := p.policyMatch(c, CoverageBalancer); got != 1.0 {
		t.Fatalf("COVERAGE_BALANCER match = %v, want 1.0", got)
	}
	if got := p.policyMatch(c, EventTrigger); got != 1.0 {
		t.Fatalf("EVENT_TRIGGER match = %v, want 1.0 when eventTrig > 0", got)
	}

	c.EventTrig = 0
	if got := p.policyMatch(c, EventTrigger); got != 0.0 {
		t.Fatalf("EVENT_TRIGGER match = %v, want 0.0 when eventTrig == 0", got)
	}
}

// HIGHFREQ_UNSTABLE's policy match must clamp to 1.0 rather than let a
// stability value above MaxStability push the term past its documented
// [0,1] range.
func TestPolicyMatchHighfreqUnstableClampsAboveMax(t *testing.T) {
	p := testPrio()
	c := ScoredCandidate{Stability: 50.0}

	if got := p.policyMatch(c, HighfreqUnstable); got != 1.0 {
		t.Fatalf("HIGHFREQ_UNSTABLE match = %v, want 1.0 (clamped)", got)
	}
}

// Ties on priority break by EIG descending, then by entity_id
// lexicographic (spec.md §4.3.3).
func TestSelectTopKTieBreak(t *testing.T) {
	p := testPrio()
	candidates := []ScoredCandidate{
		{EntityID: "z-entity", Metric: domain.MetricRTT, EIG: 0.5, Urgency: 0, Uncertainty: 0, Stability: 0},
		{EntityID: "a-entity", Metric: domain.MetricRTT, EIG: 0.5, Urgency: 0, Uncertainty: 0, Stability: 0},
		{EntityID: "m-entity", Metric: domain.MetricRTT, EIG: 0.9, Urgency: 0, Uncertainty: 0, Stability: 0},
	}
	ranked := p.SelectTopK(candidates, CoverageBalancer, 3)
	if ranked[0].EntityID != "m-entity" {
		t.Fatalf("highest EIG should rank first, got %s", ranked[0].EntityID)
	}
	if ranked[1].EntityID != "a-entity" || ranked[2].EntityID != "z-entity" {
		t.Fatalf("tied EIG entries should break by entity_id lexicographic, got %v, %v", ranked[1].EntityID, ranked[2].EntityID)
	}
}

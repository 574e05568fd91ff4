package aps

import (
	"testing"

	"github.com/netiads/iads/internal/domain"
)

func testScheduler() *Scheduler {
	cmab := NewCMAB(1)
	ctlc := NewCTLC(CTLCConfig{Kp: 0.1, TargetStability: 1.0, MinInterval: 1, MaxInterval: 60})
	prio := NewPRIO(PrioConfig{
		Weights:        PriorityWeights{EIG: 0.4, Urgency: 0.3, PolicyMatch: 0.2, EventTrig: 0.1},
		MaxUncertainty: 2.0,
		MaxStability:   5.0,
	})
	return NewScheduler(cmab, ctlc, prio)
}

func uniformCandidates(n int) []ScoredCandidate {
	out := make([]ScoredCandidate, n)
	for i := 0; i < n; i++ {
		out[i] = ScoredCandidate{
			EntityID: domain.EntityID(string(rune('a' + i))), Metric: domain.MetricRTT,
			EIG: float64(i) * 0.1, Urgency: 0, Uncertainty: 1.0, Stability: 0, EventTrig: 0,
		}
	}
	return out
}

// S2: first round, no events, uniform context: APS.select_tasks(k=5)
// must return exactly 5 tasks, sorted desc by priority, a valid
// strategy name, and no interval outside [1,60].
func TestFirstRoundSelectsExactlyK(t *testing.T) {
	s := testScheduler()
	ctx := Context{0, 0, 0, 0}
	candidates := uniformCandidates(20)

	var ctlcStates []StabilityState
	for _, c := range candidates {
		ctlcStates = append(ctlcStates, StabilityState{
			EntityID: c.EntityID, Metric: c.Metric, ProbeInterval: 10, Stability: 0,
			Apply: func(float64) {},
		})
	}

	result := s.SelectTasks(ctx, candidates, ctlcStates, 5)
	if len(result.Tasks) != 5 {
		t.Fatalf("tasks = %d, want 5", len(result.Tasks))
	}
	for i := 1; i < len(result.Tasks); i++ {
		if result.Tasks[i].Priority > result.Tasks[i-1].Priority {
			t.Fatalf("tasks not sorted descending by priority at %d", i)
		}
	}

	valid := map[Strategy]bool{FocusUncertainty: true, HighfreqUnstable: true, CoverageBalancer: true, EventTrigger: true}
	if !valid[result.Strategy] {
		t.Fatalf("strategy %q not one of the four names", result.Strategy)
	}

	for _, adj := range result.IntervalAdjustments {
		if adj.NewInterval < 1 || adj.NewInterval > 60 {
			t.Fatalf("interval %v outside [1,60]", adj.NewInterval)
		}
	}
}

// P4: APS never returns more than k tasks; returned tasks are a subset
// of the candidate pool.
func TestSelectTopKNeverExceedsK(t *testing.T) {
	s := testScheduler()
	candidates := uniformCandidates(3)
	result := s.SelectTasks(Context{}, candidates, nil, 5)
	if len(result.Tasks) > 5 {
		t.Fatalf("tasks = %d, want <= 5", len(result.Tasks))
	}
	ids := make(map[domain.EntityID]bool)
	for _, c := range candidates {
		ids[c.EntityID] = true
	}
	for _, task := range result.Tasks {
		if !ids[task.EntityID] {
			t.Fatalf("task %s not in candidate pool", task.EntityID)
		}
	}
}

// S5, APS side: after a round, feeding a positive reward (0.7 here)
// back through UpdateReward strictly increases the winning arm's mu . c.
func TestRewardLoopIncreasesWinningArmScore(t *testing.T) {
	s := testScheduler()
	ctx := Context{0.5, 0.5, 0.5, 0.5}
	candidates := uniformCandidates(5)

	result := s.SelectTasks(ctx, candidates, nil, 5)

	var before ArmStats
	for _, a := range s.cmab.Stats() {
		if a.Strategy == result.Strategy {
			before = a
		}
	}
	beforeScore := dot(vector(ctx), vector(before.Mu))

	s.UpdateReward(0.7)

	var after ArmStats
	for _, a := range s.cmab.Stats() {
		if a.Strategy == result.Strategy {
			after = a
		}
	}
	afterScore := dot(vector(ctx), vector(after.Mu))

	if afterScore <= beforeScore {
		t.Fatalf("winning arm's mu.c did not increase: before=%v after=%v", beforeScore, afterScore)
	}
}

// status() must surface recent rewards (spec.md §6), not just
// rounds/tasks/arm stats.
func TestStatsReportsRecentRewards(t *testing.T) {
	s := testScheduler()
	ctx := Context{0.5, 0.5, 0.5, 0.5}
	candidates := uniformCandidates(5)

	rewards := []float64{0.1, -0.2, 0.3}
	for _, r := range rewards {
		s.SelectTasks(ctx, candidates, nil, 5)
		s.UpdateReward(r)
	}

	got := s.Stats().RecentRewards
	if len(got) != len(rewards) {
		t.Fatalf("RecentRewards = %v, want %v", got, rewards)
	}
	for i, r := range rewards {
		if got[i] != r {
			t.Fatalf("RecentRewards[%d] = %v, want %v", i, got[i], r)
		}
	}
}

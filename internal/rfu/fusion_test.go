package rfu

import (
	"testing"
	"time"

	"github.com/netiads/iads/internal/domain"
)

type fakeESM struct {
	u map[string]float64
}

func key2(id domain.EntityID, m domain.Metric) string { return string(id) + "/" + string(m) }

func (f *fakeESM) Uncertainty(id domain.EntityID, metric domain.Metric) (float64, bool) {
	v, ok := f.u[key2(id, metric)]
	return v, ok
}

func (f *fakeESM) UpdateDistribution(id domain.EntityID, metric domain.Metric, value float64) bool {
	k := key2(id, metric)
	if _, ok := f.u[k]; !ok {
		return false
	}
	f.u[k] = f.u[k] / 2 // simulate halved uncertainty after a successful probe
	return true
}

func newFakeESM(entries map[string]float64) *fakeESM {
	return &fakeESM{u: entries}
}

func tasksFor(ids ...domain.EntityID) []domain.ProbeTask {
	out := make([]domain.ProbeTask, len(ids))
	for i, id := range ids {
		out[i] = domain.ProbeTask{EntityID: id, Metric: domain.MetricRTT}
	}
	return out
}

// S5: all successes halving uncertainty must produce a positive
// reward.
func TestRewardLoopAllSuccessPositiveReward(t *testing.T) {
	ids := []domain.EntityID{"a", "b", "c", "d", "e"}
	esm := newFakeESM(map[string]float64{
		"a/rtt": 1.0, "b/rtt": 1.0, "c/rtt": 1.0, "d/rtt": 1.0, "e/rtt": 1.0,
	})
	f := New(DefaultConfig(), 5)

	selected := tasksFor(ids...)
	f.CacheStatesBeforeProbe(selected, esm)

	var results []domain.ProbeResult
	for _, id := range ids {
		results = append(results, domain.ProbeResult{
			EntityID: id, Metric: domain.MetricRTT, Success: true, Value: 10, Timestamp: time.Now(),
		})
	}
	result := f.ProcessResults(results, esm)
	if result.Reward <= 0 {
		t.Fatalf("reward = %v, want > 0 for an all-success batch", result.Reward)
	}
	for _, d := range result.Deltas {
		if d.DeltaU <= 0 {
			t.Fatalf("expected positive delta-u for %s/%s, got %v", d.EntityID, d.Metric, d.DeltaU)
		}
	}
}

// S6: all failures -> reward == -w_cost (batch size == k_max), no ESM
// state changes.
func TestAllFailureBatchNegativeCostReward(t *testing.T) {
	ids := []domain.EntityID{"a", "b", "c", "d", "e"}
	esm := newFakeESM(map[string]float64{
		"a/rtt": 1.0, "b/rtt": 1.0, "c/rtt": 1.0, "d/rtt": 1.0, "e/rtt": 1.0,
	})
	cfg := DefaultConfig()
	f := New(cfg, 5)

	selected := tasksFor(ids...)
	f.CacheStatesBeforeProbe(selected, esm)

	var results []domain.ProbeResult
	for _, id := range ids {
		results = append(results, domain.ProbeResult{EntityID: id, Metric: domain.MetricRTT, Success: false})
	}
	result := f.ProcessResults(results, esm)

	want := -cfg.CostWeight
	if diff := result.Reward - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("reward = %v, want %v", result.Reward, want)
	}
	for _, v := range esm.u {
		if v != 1.0 {
			t.Fatalf("ESM state changed despite an all-failure batch: %v", esm.u)
		}
	}
}

// P6: reward is always in [-w_cost, w_unc].
func TestRewardWithinBounds(t *testing.T) {
	cfg := DefaultConfig()
	f := New(cfg, 5)
	esm := newFakeESM(map[string]float64{"a/rtt": 2.0})
	selected := tasksFor("a")
	f.CacheStatesBeforeProbe(selected, esm)

	result := f.ProcessResults([]domain.ProbeResult{
		{EntityID: "a", Metric: domain.MetricRTT, Success: true, Value: 10},
	}, esm)

	if result.Reward < -cfg.CostWeight-1e-9 || result.Reward > cfg.UncertaintyWeight+1e-9 {
		t.Fatalf("reward = %v, want in [%v, %v]", result.Reward, -cfg.CostWeight, cfg.UncertaintyWeight)
	}
}

func TestEmptyBatchZeroReward(t *testing.T) {
	f := New(DefaultConfig(), 5)
	result := f.ProcessResults(nil, newFakeESM(nil))
	if result.Reward != 0 {
		t.Fatalf("reward for empty batch = %v, want 0", result.Reward)
	}
}

// A result for an entity/metric ESM never learned about (removed mid
// round, or never registered) must be ignored rather than panic, and
// must not contribute a delta-u.
func TestMissingStateResultIgnored(t *testing.T) {
	f := New(DefaultConfig(), 5)
	esm := newFakeESM(map[string]float64{})

	result := f.ProcessResults([]domain.ProbeResult{
		{EntityID: "ghost", Metric: domain.MetricRTT, Success: true, Value: 10, Timestamp: time.Now()},
	}, esm)

	if len(result.Deltas) != 1 || result.Deltas[0].DeltaU != 0 {
		t.Fatalf("expected a zero delta-u for an unknown entity, got %+v", result.Deltas)
	}
	f.logMissingOnce(key{"ghost", domain.MetricRTT}) // idempotent, should not panic or double-log
}

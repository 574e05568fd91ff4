package uq

import (
	"testing"

	"github.com/netiads/iads/internal/domain"
)

type fakeSource struct {
	ids   []domain.EntityID
	dists map[domain.EntityID]map[domain.Metric]domain.Distribution
	noise map[domain.Metric]float64
}

func (f fakeSource) EntityIDs() []domain.EntityID { return f.ids }

func (f fakeSource) StateFor(id domain.EntityID, metric domain.Metric) (domain.Distribution, float64, bool) {
	byMetric, ok := f.dists[id]
	if !ok {
		return domain.Distribution{}, 0, false
	}
	d, ok := byMetric[metric]
	if !ok {
		return domain.Distribution{}, 0, false
	}
	return d, f.noise[metric], true
}

func oneEntitySource(id domain.EntityID, rtt domain.Distribution, liveness domain.Distribution) fakeSource {
	return fakeSource{
		ids: []domain.EntityID{id},
		dists: map[domain.EntityID]map[domain.Metric]domain.Distribution{
			id: {
				domain.MetricRTT:       rtt,
				domain.MetricLiveness:  liveness,
				domain.MetricPLR:       domain.NewGaussian(0.01, 0.001),
				domain.MetricBandwidth: domain.NewGaussian(100, 1000),
			},
		},
		noise: map[domain.Metric]float64{
			domain.MetricRTT:       1.0,
			domain.MetricPLR:       0.001,
			domain.MetricBandwidth: 10.0,
			domain.MetricLiveness:  1.0,
		},
	}
}

// P5: EIG is never negative for either family.
func TestEIGNonNegative(t *testing.T) {
	id := domain.LinkID(1, 1, 2, 1)
	src := oneEntitySource(id, domain.NewGaussian(10, 100), domain.NewBeta(1, 1))
	q := New(src)
	q.UpdateEntityList()

	for _, st := range q.GetTaskPoolWithEIG() {
		if st.EIG < 0 {
			t.Fatalf("%s/%s eig = %v, want >= 0", st.Task.EntityID, st.Task.Metric, st.EIG)
		}
	}
}

func TestTaskPoolMirrorsEntities(t *testing.T) {
	id1 := domain.LinkID(1, 1, 2, 1)
	id2 := domain.LinkID(2, 1, 3, 1)
	src := fakeSource{
		ids: []domain.EntityID{id1, id2},
		dists: map[domain.EntityID]map[domain.Metric]domain.Distribution{
			id1: {
				domain.MetricRTT:       domain.NewGaussian(10, 100),
				domain.MetricLiveness:  domain.NewBeta(1, 1),
				domain.MetricPLR:       domain.NewGaussian(0.01, 0.001),
				domain.MetricBandwidth: domain.NewGaussian(100, 1000),
			},
			id2: {
				domain.MetricRTT:       domain.NewGaussian(10, 100),
				domain.MetricLiveness:  domain.NewBeta(1, 1),
				domain.MetricPLR:       domain.NewGaussian(0.01, 0.001),
				domain.MetricBandwidth: domain.NewGaussian(100, 1000),
			},
		},
		noise: map[domain.Metric]float64{
			domain.MetricRTT: 1.0, domain.MetricPLR: 0.001,
			domain.MetricBandwidth: 10.0, domain.MetricLiveness: 1.0,
		},
	}
	q := New(src)
	q.UpdateEntityList()
	pool := q.GetTaskPoolWithEIG()
	if len(pool) != 2*len(domain.Metrics) {
		t.Fatalf("pool size = %d, want %d", len(pool), 2*len(domain.Metrics))
	}
}

func TestTaskPoolSortedByEIGDescending(t *testing.T) {
	id := domain.LinkID(1, 1, 2, 1)
	// High-variance rtt should have a larger EIG than a near-converged
	// liveness posterior (alpha, beta both large).
	src := oneEntitySource(id, domain.NewGaussian(10, 1000), domain.NewBeta(500, 500))
	q := New(src)
	q.UpdateEntityList()
	pool := q.GetTaskPoolWithEIG()
	for i := 1; i < len(pool); i++ {
		if pool[i].EIG > pool[i-1].EIG {
			t.Fatalf("pool not sorted descending at index %d: %v > %v", i, pool[i].EIG, pool[i-1].EIG)
		}
	}
}

func TestGaussianEIGIncreasesWithVariance(t *testing.T) {
	low := gaussianEIG(1, 1)
	high := gaussianEIG(1000, 1)
	if high <= low {
		t.Fatalf("eig should grow with sigma2: low=%v high=%v", low, high)
	}
}

func TestBetaEIGSmallAtExtremeConfidence(t *testing.T) {
	// A near-certain posterior has almost nothing left to learn.
	certain := betaEIG(domain.NewBeta(10000, 1))
	uncertain := betaEIG(domain.NewBeta(1, 1))
	if certain >= uncertain {
		t.Fatalf("near-certain eig (%v) should be far smaller than uniform eig (%v)", certain, uncertain)
	}
	if certain < 0 {
		t.Fatalf("eig must never be negative, got %v", certain)
	}
}

func TestUpdateEntityListRebuildsFromScratch(t *testing.T) {
	id := domain.LinkID(1, 1, 2, 1)
	src := oneEntitySource(id, domain.NewGaussian(10, 100), domain.NewBeta(1, 1))
	q := New(src)
	q.UpdateEntityList()
	if len(q.tasks) != len(domain.Metrics) {
		t.Fatalf("tasks = %d, want %d", len(q.tasks), len(domain.Metrics))
	}
	// Calling it again with the same source is idempotent in shape.
	q.UpdateEntityList()
	if len(q.tasks) != len(domain.Metrics) {
		t.Fatalf("tasks after second update = %d, want %d", len(q.tasks), len(domain.Metrics))
	}
}

// Package uq implements the Uncertainty Quantifier (spec.md §4.2): a
// task pool mirroring ESM's (entity, metric) table, with each task's
// Expected Information Gain recomputed on demand.
package uq

import (
	"math"
	"sort"

	"github.com/netiads/iads/internal/domain"
)

// state is the subset of esm.EntityState the EIG formula needs. UQ
// depends on this narrow shape rather than importing package esm
// directly so it can be unit tested without constructing a full
// Manager, and so the dependency runs ESM -> UQ, never the reverse.
type state struct {
	Distribution domain.Distribution
	NoiseVar     float64
}

// StateSource supplies UQ with the current ESM table. esm.Manager
// implements it directly.
type StateSource interface {
	// EntityIDs returns every known entity.
	EntityIDs() []domain.EntityID
	// StateFor returns the distribution and measurement noise variance
	// for (id, metric), or ok=false if unknown.
	StateFor(id domain.EntityID, metric domain.Metric) (domain.Distribution, float64, bool)
}

// Task is one (entity, metric) candidate for probing, with its cached
// Expected Information Gain (spec.md §4.2 "task pool mirroring ESM").
type Task struct {
	EntityID domain.EntityID
	Metric   domain.Metric
	EIG      float64
}

// ScoredTask pairs a Task with its EIG for sorted output.
type ScoredTask struct {
	Task Task
	EIG  float64
}

// Quantifier owns the task pool. It holds no lock of its own: it is
// rebuilt from ESM on every call to UpdateEntityList, which the
// Scheduler Loop invokes once per round before scoring.
type Quantifier struct {
	source StateSource
	tasks  []Task
}

// New creates a Quantifier reading from source.
func New(source StateSource) *Quantifier {
	return &Quantifier{source: source}
}

// UpdateEntityList reconciles the task pool with ESM's current entity
// set (spec.md §4.2 "update_entity_list"): one task per (entity,
// metric) pair, EIG recomputed fresh against the live distribution.
func (q *Quantifier) UpdateEntityList() {
	ids := q.source.EntityIDs()
	tasks := make([]Task, 0, len(ids)*len(domain.Metrics))
	for _, id := range ids {
		for _, metric := range domain.Metrics {
			dist, noiseVar, ok := q.source.StateFor(id, metric)
			if !ok {
				continue
			}
			tasks = append(tasks, Task{
				EntityID: id,
				Metric:   metric,
				EIG:      eig(dist, noiseVar),
			})
		}
	}
	q.tasks = tasks
}

// GetTaskPoolWithEIG returns every task paired with its EIG, sorted by
// EIG descending (spec.md §4.2 "get_task_pool_with_eig").
func (q *Quantifier) GetTaskPoolWithEIG() []ScoredTask {
	out := make([]ScoredTask, len(q.tasks))
	for i, t := range q.tasks {
		out[i] = ScoredTask{Task: t, EIG: t.EIG}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EIG > out[j].EIG })
	return out
}

// eig computes the Expected Information Gain of one prospective
// measurement against dist (spec.md §4.2).
func eig(dist domain.Distribution, noiseVar float64) float64 {
	if dist.Family == domain.FamilyGaussian {
		return gaussianEIG(dist.Sigma2, noiseVar)
	}
	return betaEIG(dist)
}

// gaussianEIG is the closed form 1/2 * log(1 + sigma2/sigma2_noise)
// (spec.md §4.2).
func gaussianEIG(sigma2, noiseVar float64) float64 {
	if noiseVar <= 0 {
		noiseVar = 1e-6
	}
	return 0.5 * math.Log(1+sigma2/noiseVar)
}

// betaEIG is the expected entropy reduction for a Bernoulli observation
// against Beta(alpha, beta): H(Beta(a,b)) - E_y[H(Beta(a',b'))], with
// y in {0,1} weighted by the predictive probability alpha/(alpha+beta)
// (spec.md §4.2, both branches evaluated).
func betaEIG(dist domain.Distribution) float64 {
	pUp := dist.Confidence()
	current := dist.Entropy()

	hUp := dist.PredictiveEntropy(1, 0)
	hDown := dist.PredictiveEntropy(0, 0)
	expected := pUp*hUp + (1-pUp)*hDown

	gain := current - expected
	if gain < 0 {
		// Entropy reduction is expected to be non-negative; a tiny
		// negative value can arise from floating point error when the
		// true gain is close to zero (a near-certain posterior). Clamp
		// rather than report spurious information loss (spec.md §8 P5).
		return 0
	}
	return gain
}

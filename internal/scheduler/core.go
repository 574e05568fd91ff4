// Package scheduler wires ESM, UQ, EM, APS and RFU into one round
// orchestration (spec.md §2 "A single Scheduler Loop orchestrates rounds").
// None of the five component packages imports another; they meet only
// here and in the composition root in internal/cli (spec.md §9 "one-way
// borrows from Core; no cyclic ownership").
package scheduler

import (
	"github.com/netiads/iads/internal/aps"
	"github.com/netiads/iads/internal/domain"
	"github.com/netiads/iads/internal/em"
	"github.com/netiads/iads/internal/esm"
	"github.com/netiads/iads/internal/rfu"
	"github.com/netiads/iads/internal/uq"
)

// Core aggregates the five component managers plus the topK budget the
// loop needs each round. Core holds no entity state itself; ESM remains
// the sole mutable store (spec.md §5 "The core is otherwise logically
// single-threaded").
type Core struct {
	ESM       *esm.Manager
	UQ        *uq.Quantifier
	EM        *em.Manager
	Scheduler *aps.Scheduler
	RFU       *rfu.Fusion

	topK int
}

// NewCore wires the five managers into a Core. Call esm.SetEventSource
// with em before running any round, so the context vector's event_rate
// component is live from round one.
func NewCore(esmMgr *esm.Manager, uqMgr *uq.Quantifier, emMgr *em.Manager, sched *aps.Scheduler, fusion *rfu.Fusion, topK int) *Core {
	return &Core{ESM: esmMgr, UQ: uqMgr, EM: emMgr, Scheduler: sched, RFU: fusion, topK: topK}
}

// AddEntity registers a new entity with ESM and, if core, marks it in EM
// so an rtt event on it escalates to plr/bandwidth triggers too.
func (c *Core) AddEntity(entityID domain.EntityID, isCore bool) {
	c.ESM.AddEntity(entityID)
	if isCore {
		c.EM.AddCoreEntity(entityID)
	}
}

// RoundPlan is Prepare's output: the probe batch the caller should hand
// to a domain.ProbeExecutor, plus the context the selection used.
type RoundPlan struct {
	Tasks          []domain.ProbeTask
	Context        aps.Context
	Strategy       aps.Strategy
	Events         []em.Event
	CandidateCount int
}

type candidateKey struct {
	id     domain.EntityID
	metric domain.Metric
}

// DetectEvents runs EM's detection pass over the current ESM snapshot
// (spec.md §4.4 "Periodically (>= every round) inspects ESM and raises
// events"). Prepare calls this at the start of every round; the Event
// Analyzer fiber also calls it independently on its own (slower) cadence
// so detection still happens even if round cadence were configured
// slower than a minute (spec.md §5 "One Event Analyzer fiber runs EM
// every minute").
func (c *Core) DetectEvents() []em.Event {
	states := c.ESM.States()
	emInputs := make([]em.StateInput, len(states))
	for i, s := range states {
		emInputs[i] = em.StateInput{
			EntityID:   s.EntityID,
			Metric:     s.Metric,
			Family:     s.Distribution.Family,
			Confidence: s.Distribution.Confidence(),
			Stability:  s.Stability,
			Mu:         s.Distribution.Mu,
		}
	}
	return c.EM.CheckAndDetectEvents(emInputs)
}

// Prepare runs the read-only half of a round: EM detection, UQ
// reconciliation, APS selection, and RFU's before-snapshot (spec.md §5
// "EM.detect -> APS.select -> snapshot_before"). It returns the probe
// batch the caller should execute against an external ProbeExecutor.
func (c *Core) Prepare() RoundPlan {
	events := c.DetectEvents()
	states := c.ESM.States()

	c.UQ.UpdateEntityList()
	eigByKey := make(map[candidateKey]float64, len(states))
	for _, t := range c.UQ.GetTaskPoolWithEIG() {
		eigByKey[candidateKey{t.Task.EntityID, t.Task.Metric}] = t.EIG
	}

	now := c.ESM.Now()
	maxU := c.ESM.MaxUncertainty()
	candidates := make([]aps.ScoredCandidate, len(states))
	ctlcStates := make([]aps.StabilityState, len(states))
	for i := range states {
		s := states[i]
		k := candidateKey{s.EntityID, s.Metric}
		candidates[i] = aps.ScoredCandidate{
			EntityID:    s.EntityID,
			Metric:      s.Metric,
			EIG:         eigByKey[k],
			Urgency:     s.Urgency(now),
			Uncertainty: s.Uncertainty(maxU),
			Stability:   s.Stability,
			EventTrig:   c.EM.GetEventTrigger(s.EntityID, s.Metric),
		}
		entityID, metric := s.EntityID, s.Metric
		ctlcStates[i] = aps.StabilityState{
			EntityID:      entityID,
			Metric:        metric,
			ProbeInterval: s.ProbeInterval,
			Stability:     s.Stability,
			Apply: func(newInterval float64) {
				c.ESM.SetProbeInterval(entityID, metric, newInterval)
			},
		}
	}

	ctx := aps.Context(c.ESM.GetContextVector().Vector())
	result := c.Scheduler.SelectTasks(ctx, candidates, ctlcStates, c.topK)

	selected := make([]domain.ProbeTask, len(result.Tasks))
	for i, t := range result.Tasks {
		selected[i] = domain.ProbeTask{EntityID: t.EntityID, Metric: t.Metric, Priority: t.Priority}
	}
	c.RFU.CacheStatesBeforeProbe(selected, c.ESM)

	return RoundPlan{Tasks: selected, Context: ctx, Strategy: result.Strategy, Events: events, CandidateCount: len(states)}
}

// Finish applies PE's results: RFU folds them into ESM, computes the
// round's reward, and feeds it back to CMAB (spec.md §5 ordering,
// "RFU.process -> CMAB.update").
func (c *Core) Finish(results []domain.ProbeResult) rfu.Result {
	outcome := c.RFU.ProcessResults(results, c.ESM)
	c.Scheduler.UpdateReward(outcome.Reward)
	return outcome
}

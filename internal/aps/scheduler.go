package aps

import "sync"

// SelectionResult is APS.select_tasks's output (spec.md §4.3.3).
type SelectionResult struct {
	Tasks               []ScoredTask
	Strategy            Strategy
	Context             Context
	IntervalAdjustments []IntervalAdjustment
}

// Scheduler orchestrates CMAB, CTLC and PRIO into one
// select_tasks/update_reward cycle (spec.md §4.3 "Composed of three
// cooperating sub-engines").
type Scheduler struct {
	cmab *CMAB
	ctlc *CTLC
	prio *PRIO

	mu           sync.Mutex
	lastContext  Context
	lastStrategy Strategy
	rounds       int
	tasksTotal   int
	rewards      []float64
}

// NewScheduler wires the three sub-engines into one Scheduler.
func NewScheduler(cmab *CMAB, ctlc *CTLC, prio *PRIO) *Scheduler {
	return &Scheduler{cmab: cmab, ctlc: ctlc, prio: prio}
}

// SelectTasks runs one selection cycle (spec.md §4.3.3 "Selection"):
// CMAB picks a strategy from ctx, CTLC sweeps ctlcStates updating
// intervals as a side effect, then PRIO ranks candidates under the
// chosen strategy and returns the top k.
func (s *Scheduler) SelectTasks(ctx Context, candidates []ScoredCandidate, ctlcStates []StabilityState, k int) SelectionResult {
	strategy := s.cmab.SelectStrategy(ctx)
	adjustments := s.ctlc.BatchAdjust(ctlcStates)
	tasks := s.prio.SelectTopK(candidates, strategy, k)

	s.mu.Lock()
	s.lastContext = ctx
	s.lastStrategy = strategy
	s.rounds++
	s.tasksTotal += len(tasks)
	s.mu.Unlock()

	return SelectionResult{
		Tasks:               tasks,
		Strategy:            strategy,
		Context:             ctx,
		IntervalAdjustments: adjustments,
	}
}

// UpdateReward feeds RFU's aggregated reward back into CMAB, updating
// the arm selected in the most recent SelectTasks call against the
// context that selection used (spec.md §4.3.1 "Bayesian update").
func (s *Scheduler) UpdateReward(reward float64) {
	s.mu.Lock()
	ctx := s.lastContext
	strategy := s.lastStrategy
	s.rewards = append(s.rewards, reward)
	s.mu.Unlock()
	s.cmab.Update(strategy, ctx, reward, 1.0)
}

// RecentRewards returns up to n of the most recently recorded rewards,
// oldest first, the same tail-slice pattern CMAB.RecentStrategies uses
// (spec.md §6 "status() -> ... recent rewards ...").
func (s *Scheduler) RecentRewards(n int) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := len(s.rewards) - n
	if start < 0 {
		start = 0
	}
	out := make([]float64, len(s.rewards)-start)
	copy(out, s.rewards[start:])
	return out
}

// Stats summarizes APS's cumulative activity for the status/report
// surfaces (spec.md §6 "status()").
type Stats struct {
	TotalRounds        int
	TotalTasksSelected int
	RecentStrategies   []Strategy
	RecentRewards      []float64
	ArmStats           []ArmStats
}

// Stats returns a snapshot of APS's activity.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	rounds, total := s.rounds, s.tasksTotal
	s.mu.Unlock()
	return Stats{
		TotalRounds:        rounds,
		TotalTasksSelected: total,
		RecentStrategies:   s.cmab.RecentStrategies(10),
		RecentRewards:      s.RecentRewards(10),
		ArmStats:           s.cmab.Stats(),
	}
}

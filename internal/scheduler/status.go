package scheduler

import (
	"sort"

	"github.com/netiads/iads/internal/domain"
	"github.com/netiads/iads/internal/em"
)

// TopEntity is one entry in Status's top-N uncertain/unstable lists.
type TopEntity struct {
	EntityID domain.EntityID
	Metric   domain.Metric
	Value    float64
}

// Status is status()'s structured summary (spec.md §6 "status() ->
// structured summary of topology sizes, per-module statistics, recent
// rewards, top-N uncertain/unstable entities").
type Status struct {
	EntityCount  int
	APS          StatusAPS
	EM           em.Stats
	TopUncertain []TopEntity
	TopUnstable  []TopEntity
}

// StatusAPS summarizes APS's cumulative activity for the status surface.
type StatusAPS struct {
	TotalRounds        int
	TotalTasksSelected int
	RecentRewards      []float64
}

// Status builds status()'s snapshot (spec.md §6). topN bounds the
// uncertain/unstable entity lists; a non-positive topN defaults to 10.
func (c *Core) Status(topN int) Status {
	if topN <= 0 {
		topN = 10
	}

	states := c.ESM.States()
	maxU := c.ESM.MaxUncertainty()

	uncertain := make([]TopEntity, len(states))
	unstable := make([]TopEntity, len(states))
	for i, s := range states {
		uncertain[i] = TopEntity{EntityID: s.EntityID, Metric: s.Metric, Value: s.Uncertainty(maxU)}
		unstable[i] = TopEntity{EntityID: s.EntityID, Metric: s.Metric, Value: s.Stability}
	}
	sort.Slice(uncertain, func(i, j int) bool { return uncertain[i].Value > uncertain[j].Value })
	sort.Slice(unstable, func(i, j int) bool { return unstable[i].Value > unstable[j].Value })
	if len(uncertain) > topN {
		uncertain = uncertain[:topN]
	}
	if len(unstable) > topN {
		unstable = unstable[:topN]
	}

	aps := c.Scheduler.Stats()
	return Status{
		EntityCount: len(c.ESM.Entities()),
		APS: StatusAPS{
			TotalRounds:        aps.TotalRounds,
			TotalTasksSelected: aps.TotalTasksSelected,
			RecentRewards:      aps.RecentRewards,
		},
		EM:           c.EM.Stats(),
		TopUncertain: uncertain,
		TopUnstable:  unstable,
	}
}

// Report is report()'s snapshot (spec.md §6 "report() -> snapshot
// including recent events and update history").
type Report struct {
	RecentEvents     []em.Event
	RecentStrategies []string
	ArmStats         []ArmSummary
}

// ArmSummary is one CMAB arm's posterior mean, for the report surface.
type ArmSummary struct {
	Strategy   string
	Mu         [4]float64
	Selections int
}

// Report builds report()'s snapshot. eventLimit bounds the recent-events
// list; a non-positive eventLimit defaults to 50.
func (c *Core) Report(eventLimit int) Report {
	if eventLimit <= 0 {
		eventLimit = 50
	}

	aps := c.Scheduler.Stats()
	strategies := make([]string, len(aps.RecentStrategies))
	for i, s := range aps.RecentStrategies {
		strategies[i] = string(s)
	}
	arms := make([]ArmSummary, len(aps.ArmStats))
	for i, a := range aps.ArmStats {
		arms[i] = ArmSummary{Strategy: string(a.Strategy), Mu: a.Mu, Selections: a.Selections}
	}

	return Report{
		RecentEvents:     c.EM.RecentEvents(eventLimit),
		RecentStrategies: strategies,
		ArmStats:         arms,
	}
}

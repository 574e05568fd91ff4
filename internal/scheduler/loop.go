package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/netiads/iads/internal/audit"
	"github.com/netiads/iads/internal/domain"
	"github.com/netiads/iads/internal/observability"
)

// LoopConfig holds the Scheduler Loop's cadence knobs (spec.md §5
// "Scheduling model").
type LoopConfig struct {
	// RoundInterval is probe_interval_default: the cadence the main
	// Scheduler Loop fiber runs rounds at (default 5-10s).
	RoundInterval time.Duration
	// AnalyzerInterval is the Event Analyzer fiber's independent
	// cadence (default 1 minute).
	AnalyzerInterval time.Duration
	// RoundTimeout bounds how long a single round waits on PE before
	// the round is closed and outstanding tasks count as failures
	// (default 30s).
	RoundTimeout time.Duration
}

// DefaultLoopConfig returns the spec.md §5 production cadence defaults.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		RoundInterval:    10 * time.Second,
		AnalyzerInterval: time.Minute,
		RoundTimeout:     30 * time.Second,
	}
}

// Loop drives Core's rounds on a ticker and independently runs EM's
// Event Analyzer fiber, the way gossip.SWIM.Start runs a probe-cycle
// ticker alongside a separate receive goroutine.
type Loop struct {
	core     *Core
	pe       domain.ProbeExecutor
	topology domain.Topology
	cfg      LoopConfig

	metrics *observability.Metrics // nil if metrics are disabled
	tracer  *observability.Tracer  // nil if tracing is disabled
	audit   *audit.DB              // nil if the audit mirror is disabled

	mu          sync.Mutex
	rounds      int
	roundErrors int
}

// NewLoop builds a Loop around core, dispatching probe batches to pe and
// draining topology events to discover new entities.
func NewLoop(core *Core, pe domain.ProbeExecutor, topology domain.Topology, cfg LoopConfig) *Loop {
	return &Loop{core: core, pe: pe, topology: topology, cfg: cfg}
}

// SetMetrics attaches a Prometheus collector set; rounds record to it
// once set. Call before Run.
func (l *Loop) SetMetrics(m *observability.Metrics) { l.metrics = m }

// SetTracer attaches a span tracer; each round is traced once set.
func (l *Loop) SetTracer(t *observability.Tracer) { l.tracer = t }

// SetAudit attaches a SQLite audit mirror; each round's outcome and
// detected events are written to it once set.
func (l *Loop) SetAudit(db *audit.DB) { l.audit = db }

// Run blocks until ctx is cancelled. It runs three fibers: the main
// round loop, the Event Analyzer, and the topology drain — mirroring
// gossip.SWIM.Start's receiver-goroutine-plus-ticker-loop shape (spec.md
// §5 "Ordering guarantees" / "Cancellation").
func (l *Loop) Run(ctx context.Context) {
	go l.runAnalyzer(ctx)
	go l.drainTopology(ctx)
	l.runRounds(ctx)
}

// runRounds is the main Scheduler Loop fiber. Overlapping rounds are
// disallowed by construction: runRound blocks the ticker loop until the
// round completes or its timeout elapses (spec.md §5 "Overlapping
// rounds are disallowed").
func (l *Loop) runRounds(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.RoundInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[scheduler] loop stopping, %d rounds run", l.rounds)
			return
		case <-ticker.C:
			l.runRound(ctx)
		}
	}
}

// runRound executes one full cycle: Prepare, PE.ExecuteBatch bounded by
// RoundTimeout, then Finish — reconciling any task PE never returned a
// result for as a failure (spec.md §7 "Round overrun (PE timeout): round
// closed, outstanding tasks counted as failures, next round proceeds").
func (l *Loop) runRound(ctx context.Context) {
	startedAt := time.Now()
	var span *observability.Span
	if l.tracer != nil {
		ctx, span = l.tracer.StartSpan(ctx, "round", observability.SpanInternal, nil)
	}

	plan := l.core.Prepare()
	l.recordStateGauges(plan)
	if l.audit != nil && len(plan.Events) > 0 {
		if err := l.audit.RecordEvents(plan.Events); err != nil {
			log.Printf("[scheduler] audit: record events: %v", err)
		}
	}
	if len(plan.Tasks) == 0 {
		l.mu.Lock()
		l.rounds++
		l.mu.Unlock()
		if span != nil {
			l.tracer.EndSpan(span, nil)
			if l.metrics != nil {
				l.metrics.TracesRecorded.Inc()
			}
		}
		return
	}

	roundCtx, cancel := context.WithTimeout(ctx, l.cfg.RoundTimeout)
	defer cancel()

	results, err := l.pe.ExecuteBatch(roundCtx, plan.Tasks)
	failed := 0
	if err != nil {
		log.Printf("[scheduler] round overrun: %v (%d/%d results returned)", err, len(results), len(plan.Tasks))
		l.mu.Lock()
		l.roundErrors++
		l.mu.Unlock()
		if l.metrics != nil {
			l.metrics.RoundErrors.Inc()
		}
	}
	results = fillMissing(plan.Tasks, results)
	for _, r := range results {
		outcome := "success"
		if !r.Success {
			failed++
			outcome = "failure"
		}
		if l.metrics != nil {
			l.metrics.ProbeOutcomes.WithLabelValues(string(r.Metric), outcome).Inc()
		}
	}

	outcome := l.core.Finish(results)
	l.mu.Lock()
	l.rounds++
	rounds := l.rounds
	l.mu.Unlock()
	log.Printf("[scheduler] round %d: %d tasks, reward=%.3f", rounds, len(plan.Tasks), outcome.Reward)

	duration := time.Since(startedAt)
	if l.metrics != nil {
		l.metrics.RoundsTotal.Inc()
		l.metrics.TasksSelected.Add(float64(len(plan.Tasks)))
		l.metrics.RoundDuration.Observe(duration.Seconds())
		l.metrics.Reward.Observe(outcome.Reward)
		l.metrics.ArmSelections.WithLabelValues(string(plan.Strategy)).Inc()
		for _, ev := range plan.Events {
			l.metrics.EventsTotal.WithLabelValues(ev.Type).Inc()
		}
	}
	if l.audit != nil {
		record := audit.RoundRecord{
			StartedAt:     startedAt,
			Duration:      duration,
			Strategy:      string(plan.Strategy),
			TasksSelected: len(plan.Tasks),
			TasksFailed:   failed,
			Reward:        outcome.Reward,
		}
		if err := l.audit.RecordRound(record); err != nil {
			log.Printf("[scheduler] audit: record round: %v", err)
		}
	}
	if span != nil {
		l.tracer.EndSpan(span, err)
		if l.metrics != nil {
			l.metrics.TracesRecorded.Inc()
		}
	}
}

// recordStateGauges publishes per-entity uncertainty/probe-interval
// gauges and the candidate pool size straight off the ESM snapshot
// Prepare just took, so scrapes always see this round's state rather
// than last round's.
func (l *Loop) recordStateGauges(plan RoundPlan) {
	if l.metrics == nil {
		return
	}
	l.metrics.TaskPoolSize.Set(float64(plan.CandidateCount))
	l.metrics.EntityCount.Set(float64(len(l.core.ESM.Entities())))

	maxU := l.core.ESM.MaxUncertainty()
	for _, s := range l.core.ESM.States() {
		entity, metric := string(s.EntityID), string(s.Metric)
		l.metrics.EntityUncertain.WithLabelValues(entity, metric).Set(s.Uncertainty(maxU))
		l.metrics.ProbeInterval.WithLabelValues(entity, metric).Set(s.ProbeInterval)
	}
}

// fillMissing adds a failed ProbeResult for every selected task PE did
// not report back on, so RFU's cost term still reflects the full batch.
func fillMissing(tasks []domain.ProbeTask, results []domain.ProbeResult) []domain.ProbeResult {
	seen := make(map[taskKey]bool, len(results))
	for _, r := range results {
		seen[taskKey{r.EntityID, r.Metric}] = true
	}
	out := results
	for _, t := range tasks {
		if seen[taskKey{t.EntityID, t.Metric}] {
			continue
		}
		out = append(out, domain.ProbeResult{
			EntityID: t.EntityID, Metric: t.Metric,
			Success: false, Timestamp: time.Now(),
		})
	}
	return out
}

type taskKey struct {
	id     domain.EntityID
	metric domain.Metric
}

// runAnalyzer is the Event Analyzer fiber: an independent detection
// cadence decoupled from round cadence (spec.md §5 "One Event Analyzer
// fiber runs EM every minute").
func (l *Loop) runAnalyzer(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.AnalyzerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			events := l.core.DetectEvents()
			if len(events) > 0 {
				log.Printf("[scheduler] event analyzer: %d event(s) raised", len(events))
			}
		}
	}
}

// drainTopology discovers new entities from the topology stream. It
// never updates entity state directly (spec.md §5 "Topology streams are
// drained without state updates" on shutdown) beyond registering newly
// seen links with ESM/EM.
func (l *Loop) drainTopology(ctx context.Context) {
	if l.topology == nil {
		return
	}
	events := l.topology.Events(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			l.handleTopologyEvent(ev)
		}
	}
}

func (l *Loop) handleTopologyEvent(ev domain.TopologyEvent) {
	if ev.Kind != domain.LinkAdd {
		return
	}
	entityID := domain.LinkID(ev.SrcDPID, ev.SrcPort, ev.DstDPID, ev.DstPort)
	l.core.AddEntity(entityID, false)
}

// Stats summarizes the loop's own cumulative activity, for the
// status/report surfaces.
type LoopStats struct {
	Rounds      int
	RoundErrors int
}

// Stats returns a snapshot of the loop's round counters.
func (l *Loop) Stats() LoopStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LoopStats{Rounds: l.rounds, RoundErrors: l.roundErrors}
}

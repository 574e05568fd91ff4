package domain

import (
	"context"
	"time"
)

// ─── Consumed Interfaces ────────────────────────────────────────────────────
// These boundaries are implemented OUTSIDE the core (spec.md §1 Out of
// scope / §6 Consumed interfaces). The core only ever depends on these
// shapes, never on a concrete SDN controller, topology service, or probe
// backend.

// TopologyEvent is one item from the Topology stream.
type TopologyEvent struct {
	Kind TopologyEventKind

	// Populated for SwitchEnter.
	DPID uint64

	// Populated for LinkAdd.
	SrcDPID, SrcPort, DstDPID, DstPort uint64
}

// TopologyEventKind discriminates TopologyEvent.Kind.
type TopologyEventKind int

const (
	SwitchEnter TopologyEventKind = iota
	LinkAdd
)

// Topology is the external collaborator that reports switch and link
// discovery events (spec.md §6). The core never queries it directly; it
// only drains the channel returned by Events.
type Topology interface {
	// Events returns a channel of topology events. The channel is closed
	// when ctx is cancelled or the underlying discovery stream ends.
	Events(ctx context.Context) <-chan TopologyEvent
}

// ProbeTask is the (entity, metric) pair a scheduled probe targets,
// alongside the priority APS assigned it — everything PE needs to decide
// how urgently/how to execute the probe.
type ProbeTask struct {
	EntityID EntityID
	Metric   Metric
	Priority float64
}

// ProbeResult is what PE reports back for one scheduled task (spec.md §6).
type ProbeResult struct {
	EntityID  EntityID
	Metric    Metric
	Success   bool
	Value     float64 // for liveness: 1.0 = up, 0.0 = down
	Timestamp time.Time
	Err       error
}

// ProbeExecutor is the external adapter that turns a batch of scheduled
// tasks into actual wire probes (spec.md §1 "Out of scope", §6). The core
// is deliberately ignorant of LLDP/ICMP/flow-stats mechanics; it only
// calls ExecuteBatch and waits.
type ProbeExecutor interface {
	// ExecuteBatch runs every task in the batch (possibly in parallel,
	// capped by the caller's own concurrency policy — spec.md §5) and
	// blocks until all results are available or ctx is done. A context
	// cancellation/timeout mid-flight should return the partial results
	// gathered so far alongside the context error, not block forever.
	ExecuteBatch(ctx context.Context, tasks []ProbeTask) ([]ProbeResult, error)
}

package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.
// No package in this module returns these sentinels: ESM reports a
// missing state with a false or nil result, and config.Validate builds
// its errors with fmt.Errorf.

var (
	// ErrUnknownMetric denotes a metric name outside the enumerated set
	// (spec.md §3).
	ErrUnknownMetric = errors.New("domain: unknown metric")

	// ErrEntityNotFound denotes an operation addressing an entity that
	// was never added (§7 "Missing state").
	ErrEntityNotFound = errors.New("domain: entity not found")

	// ErrNoCandidates denotes a selection operation with nothing to
	// choose from (empty task pool, empty candidate set).
	ErrNoCandidates = errors.New("domain: no candidates available")

	// ErrInvalidConfig signals a fatal startup misconfiguration (§7).
	ErrInvalidConfig = errors.New("domain: invalid configuration")

	// ErrRoundOverrun marks a round that exceeded its timeout; outstanding
	// tasks are counted as failures (§7 "Round overrun").
	ErrRoundOverrun = errors.New("domain: round overrun")
)

package aps

import "github.com/netiads/iads/internal/domain"

// CTLCConfig holds the proportional controller's tuning knobs
// (spec.md §4.3.2).
type CTLCConfig struct {
	Kp              float64
	TargetStability float64
	MinInterval     float64
	MaxInterval     float64
}

// CTLC is the Control-Theoretic interval tuner: a proportional
// controller on each state's probe interval.
type CTLC struct {
	cfg CTLCConfig
}

// NewCTLC constructs a CTLC with the given tuning.
func NewCTLC(cfg CTLCConfig) *CTLC {
	return &CTLC{cfg: cfg}
}

// AdjustProbeInterval computes
// T_new = clamp(T_old * (1 + Kp*(1 - S/S_target)), T_min, T_max)
// (spec.md §4.3.2).
func (c *CTLC) AdjustProbeInterval(currentInterval, stability float64) float64 {
	factor := 1 + c.cfg.Kp*(1-stability/c.cfg.TargetStability)
	next := currentInterval * factor
	if next < c.cfg.MinInterval {
		return c.cfg.MinInterval
	}
	if next > c.cfg.MaxInterval {
		return c.cfg.MaxInterval
	}
	return next
}

// IntervalAdjustment records one state's interval change for
// reporting.
type IntervalAdjustment struct {
	EntityID    domain.EntityID
	Metric      domain.Metric
	OldInterval float64
	NewInterval float64
	Stability   float64
}

// StabilityState is the narrow view BatchAdjust needs per (entity,
// metric): the current interval and stability to feed the controller,
// plus a setter invoked with the new clamped interval. Core builds
// these from esm.Manager.States() each round.
type StabilityState struct {
	EntityID      domain.EntityID
	Metric        domain.Metric
	ProbeInterval float64
	Stability     float64
	Apply         func(newInterval float64)
}

// BatchAdjust sweeps every state, applying AdjustProbeInterval and
// invoking Apply when the interval actually changes (spec.md §4.3.2
// "batch_adjust"). Returns the adjustments made, for the round report.
func (c *CTLC) BatchAdjust(states []StabilityState) []IntervalAdjustment {
	var adjustments []IntervalAdjustment
	for _, s := range states {
		next := c.AdjustProbeInterval(s.ProbeInterval, s.Stability)
		if next == s.ProbeInterval {
			continue
		}
		s.Apply(next)
		adjustments = append(adjustments, IntervalAdjustment{
			EntityID: s.EntityID, Metric: s.Metric,
			OldInterval: s.ProbeInterval, NewInterval: next, Stability: s.Stability,
		})
	}
	return adjustments
}

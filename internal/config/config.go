// Package config loads and validates IADS's TOML configuration (spec.md
// §6). Every recognized key has a production default; an out-of-range
// value at startup is an Invalid Configuration error (spec.md §7) — fatal,
// by design: Load returns an error and the caller (cmd/iadsd) exits.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// PriorityWeights are PRIO's linear weights (spec.md §4.3.3).
type PriorityWeights struct {
	EIG         float64 `toml:"eig"`
	Urgency     float64 `toml:"urgency"`
	PolicyMatch float64 `toml:"policy_match"`
	EventTrig   float64 `toml:"event_trig"`
}

// SystemConfig holds scheduling cadence and budget knobs.
type SystemConfig struct {
	TopK                 int     `toml:"top_k"`
	ProbeIntervalDefault  float64 `toml:"probe_interval_default"`
	ProbeIntervalMin      float64 `toml:"probe_interval_min"`
	ProbeIntervalMax      float64 `toml:"probe_interval_max"`
	SlidingWindow         float64 `toml:"sliding_window"`
	MaxParallelProbes     int     `toml:"max_parallel_probes"`
	RoundTimeoutSeconds   float64 `toml:"round_timeout_seconds"`
}

// APSConfig holds CMAB/CTLC/PRIO tuning (spec.md §6 "APS:").
type APSConfig struct {
	MaxUncertainty  float64         `toml:"max_uncertainty"`
	MaxStability    float64         `toml:"max_stability"`
	TargetStability float64         `toml:"target_stability"`
	Kp              float64         `toml:"kp"`
	PriorityWeights PriorityWeights `toml:"priority_weights"`
}

// EventConfig holds EM's detection thresholds.
type EventConfig struct {
	LivenessThreshold  float64 `toml:"liveness_threshold"`
	StabilityThreshold float64 `toml:"stability_threshold"`
	RTTSpikeFactor     float64 `toml:"rtt_spike_factor"`
	MaxRecentEvents    int     `toml:"max_recent_events"`
}

// RewardConfig holds RFU's reward-aggregation weights.
type RewardConfig struct {
	UncertaintyWeight      float64 `toml:"uncertainty_weight"`
	CostWeight             float64 `toml:"cost_weight"`
	MaxUncertaintyReduction float64 `toml:"max_uncertainty_reduction"`
}

// DistInit describes one metric's initial posterior parameters. Beta
// metrics (liveness) use Alpha/Beta; Gaussian metrics use Mu/Sigma2.
type DistInit struct {
	Alpha  float64 `toml:"alpha"`
	Beta   float64 `toml:"beta"`
	Mu     float64 `toml:"mu"`
	Sigma2 float64 `toml:"sigma2"`
}

// InitConfig holds the initial-distribution parameters per metric
// (spec.md §6 "Initial distributions:").
type InitConfig struct {
	Liveness  DistInit `toml:"liveness"`
	RTT       DistInit `toml:"rtt"`
	PLR       DistInit `toml:"plr"`
	Bandwidth DistInit `toml:"bandwidth"`
}

// NoiseConfig holds measurement noise variances per metric (spec.md §6
// "Measurement noise variances:").
type NoiseConfig struct {
	RTT       float64 `toml:"rtt"`
	PLR       float64 `toml:"plr"`
	Bandwidth float64 `toml:"bandwidth"`
	Liveness  float64 `toml:"liveness"`
}

// ServerConfig holds the operator HTTP surface's settings.
type ServerConfig struct {
	ListenAddr    string `toml:"listen_addr"`
	EnableMetrics bool   `toml:"enable_metrics"`
}

// AuditConfig holds the optional SQLite audit-trail settings.
type AuditConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Config is the complete IADS configuration tree.
type Config struct {
	System SystemConfig `toml:"system"`
	APS    APSConfig    `toml:"aps"`
	Events EventConfig  `toml:"events"`
	Reward RewardConfig `toml:"reward"`
	Init   InitConfig   `toml:"init"`
	Noise  NoiseConfig  `toml:"noise"`
	Server ServerConfig `toml:"server"`
	Audit  AuditConfig  `toml:"audit"`
}

// Default returns the production defaults enumerated in spec.md §6.
func Default() Config {
	return Config{
		System: SystemConfig{
			TopK:                5,
			ProbeIntervalDefault: 10,
			ProbeIntervalMin:     1,
			ProbeIntervalMax:     60,
			SlidingWindow:        300,
			MaxParallelProbes:    10,
			RoundTimeoutSeconds:  30,
		},
		APS: APSConfig{
			MaxUncertainty:  2.0,
			MaxStability:    5.0,
			TargetStability: 1.0,
			Kp:              0.1,
			PriorityWeights: PriorityWeights{EIG: 0.4, Urgency: 0.3, PolicyMatch: 0.2, EventTrig: 0.1},
		},
		Events: EventConfig{
			LivenessThreshold:  0.8,
			StabilityThreshold: 3.0,
			RTTSpikeFactor:     3.0,
			MaxRecentEvents:    100,
		},
		Reward: RewardConfig{
			UncertaintyWeight:       0.7,
			CostWeight:              0.3,
			MaxUncertaintyReduction: 1.0,
		},
		Init: InitConfig{
			Liveness:  DistInit{Alpha: 1, Beta: 1},
			RTT:       DistInit{Mu: 10, Sigma2: 100},
			PLR:       DistInit{Mu: 0.01, Sigma2: 0.001},
			Bandwidth: DistInit{Mu: 100, Sigma2: 1000},
		},
		Noise: NoiseConfig{RTT: 1.0, PLR: 0.001, Bandwidth: 10.0, Liveness: 1.0},
		Server: ServerConfig{ListenAddr: ":8090", EnableMetrics: true},
		Audit:  AuditConfig{Enabled: false, Path: "./iads-audit.db"},
	}
}

// Load reads a TOML file at path, starting from Default() so any key the
// file omits keeps its documented default, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants spec.md §3/§7 require at startup. A
// violation here is an Invalid Configuration error — fatal.
func (c Config) Validate() error {
	if c.System.TopK <= 0 {
		return fmt.Errorf("config: top_k must be positive, got %d", c.System.TopK)
	}
	if c.System.ProbeIntervalMin <= 0 {
		return fmt.Errorf("config: probe_interval_min must be > 0, got %v", c.System.ProbeIntervalMin)
	}
	if c.System.ProbeIntervalMax < c.System.ProbeIntervalMin {
		return fmt.Errorf("config: probe_interval_max (%v) must be >= probe_interval_min (%v)",
			c.System.ProbeIntervalMax, c.System.ProbeIntervalMin)
	}
	if c.System.ProbeIntervalDefault < c.System.ProbeIntervalMin || c.System.ProbeIntervalDefault > c.System.ProbeIntervalMax {
		return fmt.Errorf("config: probe_interval_default (%v) must be within [%v, %v]",
			c.System.ProbeIntervalDefault, c.System.ProbeIntervalMin, c.System.ProbeIntervalMax)
	}
	if c.System.MaxParallelProbes <= 0 {
		return fmt.Errorf("config: max_parallel_probes must be positive, got %d", c.System.MaxParallelProbes)
	}
	if c.APS.MaxUncertainty <= 0 || c.APS.MaxStability <= 0 {
		return fmt.Errorf("config: max_uncertainty and max_stability must be positive")
	}
	w := c.APS.PriorityWeights
	if w.EIG < 0 || w.Urgency < 0 || w.PolicyMatch < 0 || w.EventTrig < 0 {
		return fmt.Errorf("config: priority_weights must be non-negative")
	}
	if c.Reward.UncertaintyWeight < 0 || c.Reward.CostWeight < 0 {
		return fmt.Errorf("config: reward weights must be non-negative")
	}
	return nil
}

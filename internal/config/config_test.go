package config

import (
	"os"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") should not error: %v", err)
	}
	if cfg.System.TopK != Default().System.TopK {
		t.Fatalf("Load(\"\") should return defaults")
	}
}

func TestValidateRejectsBadInterval(t *testing.T) {
	cfg := Default()
	cfg.System.ProbeIntervalMin = 10
	cfg.System.ProbeIntervalMax = 1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for min > max")
	}
}

func TestValidateRejectsZeroTopK(t *testing.T) {
	cfg := Default()
	cfg.System.TopK = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for top_k=0")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/iads.toml"
	contents := `
[system]
top_k = 3

[aps]
kp = 0.2
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.System.TopK != 3 {
		t.Fatalf("top_k = %d, want 3", cfg.System.TopK)
	}
	if cfg.APS.Kp != 0.2 {
		t.Fatalf("kp = %v, want 0.2", cfg.APS.Kp)
	}
	// Untouched keys keep their defaults.
	if cfg.System.ProbeIntervalMax != Default().System.ProbeIntervalMax {
		t.Fatalf("probe_interval_max should keep its default")
	}
}

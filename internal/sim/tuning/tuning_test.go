package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults: %v", err)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := []byte("tick_rate_hz: 10\nagent:\n  strike_range: 3.5\n  hunt_mode: false\narena:\n  agents: 4\n")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.TickRateHz != 10 || got.Agent.StrikeRange != 3.5 || got.Agent.HuntMode || got.Arena.Agents != 4 {
		t.Fatalf("overrides not applied: %+v", got)
	}
	if got.Agent.ThrowRange != Defaults().Agent.ThrowRange {
		t.Fatalf("throw_range should keep default, got %v", got.Agent.ThrowRange)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("agent:\n  hunger_min_s: 30\n  hunger_max_s: 10\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestShippedTuningMatchesDefaults(t *testing.T) {
	got, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.DomainPath != "domain.yaml" {
		t.Fatalf("domain_path=%q", got.DomainPath)
	}
	got.DomainPath = ""
	if got != Defaults() {
		t.Fatalf("configs/tuning.yaml drifted from Defaults:\n got=%+v\nwant=%+v", got, Defaults())
	}
}

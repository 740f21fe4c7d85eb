package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.ScoringTimeout != 2*time.Second {
		t.Fatalf("expected default scoring timeout 2s, got %v", cfg.ScoringTimeout)
	}
	if cfg.SLAUrgent != 2*time.Hour || cfg.SLAStandard != 24*time.Hour {
		t.Fatalf("unexpected default SLA tiers: %v / %v", cfg.SLAUrgent, cfg.SLAStandard)
	}
	if cfg.SweepSchedule != "@every 60s" {
		t.Fatalf("expected default sweep schedule, got %q", cfg.SweepSchedule)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SLA_URGENT", "30m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("expected port override, got %q", cfg.Port)
	}
	if cfg.SLAUrgent != 30*time.Minute {
		t.Fatalf("expected SLA override, got %v", cfg.SLAUrgent)
	}
}

func TestSLAFor(t *testing.T) {
	cfg := Config{SLAUrgent: time.Hour, SLAStandard: 8 * time.Hour}
	if got := cfg.SLAFor("urgent"); got != time.Hour {
		t.Fatalf("urgent tier: got %v", got)
	}
	if got := cfg.SLAFor("standard"); got != 8*time.Hour {
		t.Fatalf("standard tier: got %v", got)
	}
	if got := cfg.SLAFor(""); got != 8*time.Hour {
		t.Fatalf("unknown priority should fall back to standard, got %v", got)
	}
}

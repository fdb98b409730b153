package config

import "testing"

func TestResolveDefaults_DerivesStickyBudget(t *testing.T) {
	cfg := &Config{WorkersMin: 8, WorkersMax: 8192, QueueWarnStep: 3}
	if err := cfg.ResolveDefaults(); err != nil {
		t.Fatalf("resolve defaults: %v", err)
	}
	want := 8192 - (8192 * 3 / 4)
	if cfg.WorkersSticky != want {
		t.Fatalf("expected derived workers_sticky %d, got %d", want, cfg.WorkersSticky)
	}
}

func TestResolveDefaults_RejectsMaxBelowMin(t *testing.T) {
	cfg := &Config{WorkersMin: 16, WorkersMax: 8, QueueWarnStep: 3}
	if err := cfg.ResolveDefaults(); err == nil {
		t.Fatalf("expected error when workers_max < workers_min")
	}
}

func TestResolveDefaults_QueueHardMaxZeroBecomesUnbounded(t *testing.T) {
	cfg := &Config{WorkersMin: 1, WorkersMax: 2, QueueWarnStep: 3, QueueHardMax: 0}
	if err := cfg.ResolveDefaults(); err != nil {
		t.Fatalf("resolve defaults: %v", err)
	}
	if cfg.QueueHardMax <= 0 {
		t.Fatalf("expected QueueHardMax to resolve to a positive ceiling")
	}
}

func TestResolveDefaults_ExplicitStickyBudgetPreserved(t *testing.T) {
	cfg := &Config{WorkersMin: 8, WorkersMax: 8192, WorkersSticky: 100, QueueWarnStep: 3}
	if err := cfg.ResolveDefaults(); err != nil {
		t.Fatalf("resolve defaults: %v", err)
	}
	if cfg.WorkersSticky != 100 {
		t.Fatalf("expected explicit workers_sticky to be preserved, got %d", cfg.WorkersSticky)
	}
}

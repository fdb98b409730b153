package config

import (
	"os"
	"testing"
)

func TestConfigLoad_Defaults(t *testing.T) {
	_ = os.Unsetenv("DISPATCH_WORKERS_MIN")
	_ = os.Unsetenv("DISPATCH_WORKERS_MAX")
	_ = os.Unsetenv("DISPATCH_QUEUE_WARN_STEP")

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.WorkersMin != 8 || cfg.WorkersMax != 8192 || cfg.QueueWarnStep != 3 {
		t.Fatalf("unexpected default scheduler config: %+v", cfg)
	}
	if cfg.QueueHardMax <= 0 {
		t.Fatalf("expected QueueHardMax to resolve to a positive ceiling, got %d", cfg.QueueHardMax)
	}
}

func TestConfigLoad_EnvOverride(t *testing.T) {
	_ = os.Setenv("DISPATCH_WORKERS_MIN", "16")
	defer func() { _ = os.Unsetenv("DISPATCH_WORKERS_MIN") }()

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.WorkersMin != 16 {
		t.Fatalf("workers_min env override failed, got %d", cfg.WorkersMin)
	}
}

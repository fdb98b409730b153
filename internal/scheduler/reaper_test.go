package scheduler

import (
	"testing"
	"time"
)

func TestScheduler_ForkWithReapCollectsExitStatus(t *testing.T) {
	s := newTestScheduler(t, Params{MinWorkers: 1, MaxWorkers: 1, MaxIdleInterval: time.Second})

	pid, err := s.ForkWithReap("short-lived", "/bin/sh", "-c", "exit 0")
	if err != nil {
		t.Skipf("cannot spawn /bin/sh in this environment: %v", err)
	}
	if pid <= 0 {
		t.Fatalf("expected a positive pid, got %d", pid)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		s.reaper.mu.Lock()
		_, stillTracked := s.reaper.pids[pid]
		s.reaper.mu.Unlock()
		if !stillTracked {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("reaper never collected pid %d", pid)
}

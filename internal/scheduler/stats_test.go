package scheduler

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestScheduler_StatsWireFormat(t *testing.T) {
	s := newTestScheduler(t, Params{MinWorkers: 1, MaxWorkers: 2, MaxIdleInterval: time.Second})

	done := make(chan struct{})
	s.Submit(newFnJob("one", func() { close(done) }))
	<-done
	time.Sleep(20 * time.Millisecond)

	var buf bytes.Buffer
	n, err := s.Stats(&buf)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if n != buf.Len() {
		t.Fatalf("reported byte count %d does not match written %d", n, buf.Len())
	}

	got := buf.String()
	for _, tag := range []string{"<stats id=\"sched\">", "<jobs>", "<inq>", "<maxinq>", "<threads>", "<idle>", "<tcr>", "<tde>", "<tlimr>", "</stats>"} {
		if !strings.Contains(got, tag) {
			t.Fatalf("expected stats output to contain %q, got %q", tag, got)
		}
	}
}

func TestScheduler_StatsNilReportsUpperBound(t *testing.T) {
	s := newTestScheduler(t, Params{MinWorkers: 1, MaxWorkers: 1, MaxIdleInterval: time.Second})

	n, err := s.Stats(nil)
	if err != nil {
		t.Fatalf("Stats(nil): %v", err)
	}
	if n <= 0 {
		t.Fatalf("expected a positive upper-bound byte count, got %d", n)
	}
}

package scheduler

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/corepool/dispatch/internal/job"
)

func testLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.Disabled)
}

type fnJob struct {
	job.Base
	fn func()
}

func newFnJob(desc string, fn func()) *fnJob {
	return &fnJob{Base: job.NewBase(desc), fn: fn}
}

func (j *fnJob) Execute() { j.fn() }

func newTestScheduler(t *testing.T, p Params) *Scheduler {
	t.Helper()
	s, err := New(p, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func TestScheduler_BurstAndDrain(t *testing.T) {
	s := newTestScheduler(t, Params{MinWorkers: 2, MaxWorkers: 4, MaxIdleInterval: time.Second})

	var ran int64
	var wg sync.WaitGroup
	wg.Add(100)
	for i := 0; i < 100; i++ {
		s.Submit(newFnJob("burst", func() {
			atomic.AddInt64(&ran, 1)
			wg.Done()
		}))
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for all jobs to run, ran=%d", atomic.LoadInt64(&ran))
	}

	if got := atomic.LoadInt64(&ran); got != 100 {
		t.Fatalf("expected all 100 jobs to run, got %d", got)
	}

	snap := s.StatsSnapshot()
	if snap.Created > 4 {
		t.Fatalf("expected at most 4 workers ever created, got %d", snap.Created)
	}
	if snap.MaxInQ > 100 {
		t.Fatalf("expected max_inq <= 100, got %d", snap.MaxInQ)
	}
}

func TestScheduler_SubmitBatchRunsWholeChain(t *testing.T) {
	s := newTestScheduler(t, Params{MinWorkers: 2, MaxWorkers: 4, MaxIdleInterval: time.Second})

	var ran int64
	var wg sync.WaitGroup
	const n = 10
	wg.Add(n)

	jobs := make([]*fnJob, n)
	for i := 0; i < n; i++ {
		jobs[i] = newFnJob("batch", func() {
			atomic.AddInt64(&ran, 1)
			wg.Done()
		})
	}
	for i := 0; i < n-1; i++ {
		jobs[i].SetNext(jobs[i+1])
	}

	s.SubmitBatch(jobs[0], jobs[n-1], n)

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out, ran=%d of %d", atomic.LoadInt64(&ran), n)
	}
}

func TestScheduler_KeepOneIdleHiresUnderLoad(t *testing.T) {
	s := newTestScheduler(t, Params{MinWorkers: 1, MaxWorkers: 8, MaxIdleInterval: time.Minute})

	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(5)
	for i := 0; i < 5; i++ {
		s.Submit(newFnJob("spin", func() {
			started.Done()
			<-release
		}))
	}
	started.Wait()
	defer close(release)

	// With 5 workers pinned, the keep-one-idle rule must have hired a
	// sixth so at least one worker is left waiting for new work.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.StatsSnapshot().Threads >= 6 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected at least 6 workers while 5 jobs are pinned, got %d", s.StatsSnapshot().Threads)
}

func TestScheduler_CancelBeforeFire(t *testing.T) {
	s := newTestScheduler(t, Params{MinWorkers: 1, MaxWorkers: 2, MaxIdleInterval: time.Second})

	ran := make(chan struct{}, 1)
	j := newFnJob("delayed", func() { ran <- struct{}{} })

	s.SubmitDelayed(j, time.Now().Add(500*time.Millisecond))
	if ok := s.Cancel(j); !ok {
		t.Fatalf("expected Cancel to find the job before it fired")
	}

	select {
	case <-ran:
		t.Fatalf("canceled job ran anyway")
	case <-time.After(800 * time.Millisecond):
	}
}

func TestScheduler_CancelUnknownJobReturnsFalse(t *testing.T) {
	s := newTestScheduler(t, Params{MinWorkers: 1, MaxWorkers: 1, MaxIdleInterval: time.Second})
	j := newFnJob("never submitted", func() {})
	if s.Cancel(j) {
		t.Fatalf("expected Cancel on an unknown job to return false")
	}
}

func TestScheduler_TimerOrdering(t *testing.T) {
	s := newTestScheduler(t, Params{MinWorkers: 2, MaxWorkers: 2, MaxIdleInterval: time.Second})

	var mu sync.Mutex
	var order []string
	record := func(name string) func() {
		return func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	now := time.Now()
	s.SubmitDelayed(newFnJob("c", record("c")), now.Add(300*time.Millisecond))
	s.SubmitDelayed(newFnJob("a", record("a")), now.Add(100*time.Millisecond))
	s.SubmitDelayed(newFnJob("b", record("b")), now.Add(200*time.Millisecond))

	time.Sleep(600 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 {
		t.Fatalf("expected 3 jobs to run, got %v", order)
	}
	if order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("expected order a,b,c, got %v", order)
	}
}

func TestScheduler_ActiveCountAndSticky(t *testing.T) {
	s := newTestScheduler(t, Params{MinWorkers: 1, MaxWorkers: 8, StickyWorkers: 4, MaxIdleInterval: time.Second})

	if !s.CanKeepSticky() {
		t.Fatalf("expected a freshly started scheduler to allow sticky reservation")
	}

	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(3)
	for i := 0; i < 3; i++ {
		s.Submit(newFnJob("block", func() {
			started.Done()
			<-release
		}))
	}
	started.Wait()
	time.Sleep(50 * time.Millisecond)

	if s.ActiveCount() < 3 {
		t.Fatalf("expected ActiveCount >= 3 while 3 jobs are running, got %d", s.ActiveCount())
	}
	close(release)
}

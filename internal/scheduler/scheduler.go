// Package scheduler implements an elastic worker-pool job scheduler: a
// FIFO ready queue drained by a pool of goroutines that grows under load
// and shrinks back during idle periods, plus a deadline-ordered timer
// queue and a child-process reaper.
package scheduler

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/corepool/dispatch/internal/job"
)

// capacityLogEvery is the rate at which "hit workers_max" events are
// logged; a fixed modulus keeps the logging rate bounded under sustained
// overload.
const capacityLogEvery = 4096

// defaultLongWait bounds how long the timer thread ever sleeps with an
// empty timer queue.
const defaultLongWait = time.Hour

// Params holds the tunable worker-pool policy.
type Params struct {
	MinWorkers      int
	MaxWorkers      int
	StickyWorkers   int
	MaxIdleInterval time.Duration
}

// Stats is a point-in-time snapshot of the scheduler's counters, used both
// by the XML wire format (see xmlStats and Stats in stats.go) and the JSON stats
// HTTP surface.
type Stats struct {
	Jobs      int64 `xml:"jobs" json:"jobs"`
	InQueue   int   `xml:"inq" json:"inq"`
	MaxInQ    int   `xml:"maxinq" json:"max_inq"`
	Threads   int   `xml:"threads" json:"threads"`
	Idle      int   `xml:"idle" json:"idle"`
	Created   int64 `xml:"tcr" json:"total_created"`
	Destroyed int64 `xml:"tde" json:"total_destroyed"`
	Limited   int64 `xml:"tlimr" json:"capacity_limited_events"`
}

// Scheduler is the elastic worker pool. The zero value is not usable; build
// one with New.
type Scheduler struct {
	log zerolog.Logger

	// dispatchMu guards idle only, kept separate from schedMu so a worker
	// waking up and decrementing idle never contends with a producer
	// appending to the ready FIFO.
	dispatchMu sync.Mutex
	idle       int

	// schedMu guards the ready FIFO and the worker-count bookkeeping.
	schedMu   sync.Mutex
	minW      int
	maxW      int
	maxIdle   time.Duration
	stickyW   int
	numW      int
	inQ       int
	layoffs   int
	workAvail chan struct{} // counting semaphore: one token per ready job

	first job.Job
	last  job.Job

	// statistics, updated under schedMu unless noted.
	totalJobs    int64
	maxQLength   int
	totalCreated int64
	totalDestroy int64
	numLimited   int64

	timer  *timerQueue
	reaper *reaper

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup

	paramsOnceDone bool
	paramsMu       sync.Mutex
}

// New builds a Scheduler with the given policy. Call Start to launch the
// worker pool and timer thread.
func New(p Params, log zerolog.Logger) (*Scheduler, error) {
	if p.MinWorkers <= 0 {
		return nil, fmt.Errorf("scheduler: MinWorkers must be positive, got %d", p.MinWorkers)
	}
	if p.MaxWorkers < p.MinWorkers {
		return nil, fmt.Errorf("scheduler: MaxWorkers (%d) must be >= MinWorkers (%d)", p.MaxWorkers, p.MinWorkers)
	}

	maxW := clampToRlimit(p.MaxWorkers, log)

	sticky := p.StickyWorkers
	if sticky <= 0 {
		sticky = maxW - (maxW * 3 / 4)
	}

	maxIdle := p.MaxIdleInterval
	if maxIdle <= 0 {
		maxIdle = 780 * time.Second
	}

	s := &Scheduler{
		log:       log,
		minW:      p.MinWorkers,
		maxW:      maxW,
		stickyW:   sticky,
		maxIdle:   maxIdle,
		workAvail: make(chan struct{}, math.MaxInt32),
		stopCh:    make(chan struct{}),
	}
	s.timer = newTimerQueue(s, log)
	s.reaper = newReaper(log)
	return s, nil
}

// Start launches the timer thread and an initial complement of workers. It
// must be called exactly once.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		initial := s.minW / 3
		if initial < 2 {
			initial = 2
		}
		for i := 0; i < initial; i++ {
			s.hireWorker(false)
		}
		s.wg.Add(1)
		go s.timer.run(s.stopCh, &s.wg)

		s.timer.scheduleIdleMonitor()
	})
}

// Stop signals all workers, the timer thread and the reaper to exit and
// waits for them (bounded by ctx). In-flight Execute() calls are not
// interrupted; Stop waits only for goroutines to notice the stop signal at
// their next suspension point.
func (s *Scheduler) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.reaper.stop()

		done := make(chan struct{})
		go func() { s.wg.Wait(); close(done) }()
		select {
		case <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}
	})
	return err
}

// Submit appends job j to the tail of the ready FIFO in O(1) and wakes one
// waiting worker. It never blocks.
func (s *Scheduler) Submit(j job.Job) {
	s.schedMu.Lock()
	s.enqueueLocked(j)
	s.schedMu.Unlock()
	s.workAvail <- struct{}{}
}

// SubmitBatch splices an externally built chain of n jobs (head..tail,
// linked via job.Linked.Next) onto the ready FIFO tail in O(1) and wakes n
// workers.
func (s *Scheduler) SubmitBatch(head, tail job.Job, n int) {
	if head == nil || n <= 0 {
		return
	}
	s.schedMu.Lock()
	if s.last == nil {
		s.first = head
	} else {
		setNext(s.last, head)
	}
	s.last = tail
	s.inQ += n
	s.totalJobs += int64(n)
	if s.inQ > s.maxQLength {
		s.maxQLength = s.inQ
	}
	s.schedMu.Unlock()
	for i := 0; i < n; i++ {
		s.workAvail <- struct{}{}
	}
}

// SubmitDelayed cancels any prior timer-queue entry for j (exact identity)
// then inserts it into the timer queue at the position keeping the queue
// sorted by deadline.
func (s *Scheduler) SubmitDelayed(j job.Linked, at time.Time) {
	s.timer.cancel(j)
	s.timer.insert(j, at)
}

// Cancel removes j from the timer queue if present. It returns false (and
// has no effect) if j was never queued, already dispatched, or already ran.
func (s *Scheduler) Cancel(j job.Job) bool {
	return s.timer.cancel(j)
}

// ActiveCount returns the number of jobs either running or waiting to run:
// workers currently busy plus the ready-queue depth.
func (s *Scheduler) ActiveCount() int {
	s.schedMu.Lock()
	numW, inQ := s.numW, s.inQ
	s.schedMu.Unlock()
	s.dispatchMu.Lock()
	idle := s.idle
	s.dispatchMu.Unlock()
	return numW - idle + inQ
}

// CanKeepSticky reports whether the caller may safely pin a long-running
// per-session task without risking exhaustion of the shared pool.
func (s *Scheduler) CanKeepSticky() bool {
	s.schedMu.Lock()
	numW, sticky := s.numW, s.stickyW
	s.schedMu.Unlock()
	s.dispatchMu.Lock()
	idle := s.idle
	s.dispatchMu.Unlock()
	return numW < sticky || (numW-idle) < sticky
}

// SetParams atomically updates the worker-pool policy. If once is true and
// a prior SetParams(once=true) already took effect, this call is a no-op.
func (s *Scheduler) SetParams(minw, maxw, stickyw int, maxIdle time.Duration, once bool) {
	s.paramsMu.Lock()
	defer s.paramsMu.Unlock()
	if once && s.paramsOnceDone {
		return
	}

	s.schedMu.Lock()
	if minw > 0 {
		s.minW = minw
	}
	if maxw > 0 {
		s.maxW = clampToRlimit(maxw, s.log)
	}
	if stickyw > 0 {
		s.stickyW = stickyw
	}
	if maxIdle > 0 {
		s.maxIdle = maxIdle
	}
	s.schedMu.Unlock()

	if maxIdle > 0 {
		s.timer.rescheduleIdleMonitor()
	}

	if once {
		s.paramsOnceDone = true
	}
}

// idleInterval returns the current idle-monitor period under schedMu.
func (s *Scheduler) idleInterval() time.Duration {
	s.schedMu.Lock()
	defer s.schedMu.Unlock()
	return s.maxIdle
}

// enqueueLocked appends j to the ready FIFO tail. Caller must hold schedMu.
func (s *Scheduler) enqueueLocked(j job.Job) {
	setNext(j, nil)
	if s.last == nil {
		s.first = j
	} else {
		setNext(s.last, j)
	}
	s.last = j
	s.inQ++
	s.totalJobs++
	if s.inQ > s.maxQLength {
		s.maxQLength = s.inQ
	}
}

// dequeueLocked unlinks and returns the FIFO head, or nil if empty. Caller
// must hold schedMu.
func (s *Scheduler) dequeueLocked() job.Job {
	j := s.first
	if j == nil {
		return nil
	}
	s.first = next(j)
	if s.first == nil {
		s.last = nil
	}
	if s.inQ <= 0 {
		s.log.Warn().Msg("scheduler: ready queue depth underflow, clamping to 0")
		s.inQ = 0
	} else {
		s.inQ--
	}
	return j
}

func next(j job.Job) job.Job {
	if lj, ok := j.(job.Linked); ok {
		return lj.Next()
	}
	return nil
}

func setNext(j job.Job, n job.Job) {
	if lj, ok := j.(job.Linked); ok {
		lj.SetNext(n)
	}
}

package scheduler

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/corepool/dispatch/internal/job"
)

// timerQueue is the deadline-sorted secondary queue. It runs on its own
// goroutine and migrates due jobs into the scheduler's ready FIFO.
type timerQueue struct {
	sched *Scheduler
	log   zerolog.Logger

	mu    sync.Mutex
	head  job.Linked
	wake  chan struct{} // non-blocking signal that the head changed

	idleMon *idleMonitorJob
}

func newTimerQueue(s *Scheduler, log zerolog.Logger) *timerQueue {
	return &timerQueue{sched: s, log: log, wake: make(chan struct{}, 1)}
}

// insert places j into the timer queue at the position keeping it sorted
// by non-decreasing ScheduledAt; ties preserve insertion order.
func (tq *timerQueue) insert(j job.Linked, at time.Time) {
	j.SetScheduledAt(at)
	j.SetNext(nil)

	tq.mu.Lock()
	defer tq.mu.Unlock()

	if tq.head == nil || at.Before(tq.head.ScheduledAt()) {
		j.SetNext(tq.head)
		tq.head = j
		tq.signalLocked()
		return
	}

	prev := tq.head
	for {
		nxt := linkedOrNil(prev.Next())
		if nxt == nil || at.Before(nxt.ScheduledAt()) {
			j.SetNext(nxt)
			prev.SetNext(j)
			return
		}
		prev = nxt
	}
}

// cancel removes j from the timer queue by exact identity. It returns false
// if j is not present.
func (tq *timerQueue) cancel(target job.Job) bool {
	tq.mu.Lock()
	defer tq.mu.Unlock()

	var prev job.Linked
	cur := tq.head
	for cur != nil {
		if jobIdentity(cur) == jobIdentity(target) {
			if prev == nil {
				tq.head = linkedOrNil(cur.Next())
			} else {
				prev.SetNext(cur.Next())
			}
			return true
		}
		prev = cur
		cur = linkedOrNil(cur.Next())
	}
	return false
}

func (tq *timerQueue) signalLocked() {
	select {
	case tq.wake <- struct{}{}:
	default:
	}
}

// run is the timer-thread body. It blocks until the earliest deadline
// elapses, or until insert signals a new head, or until stopCh closes.
// Cancel does not signal; a canceled head only costs one early wakeup.
func (tq *timerQueue) run(stopCh <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		tq.mu.Lock()
		wait := defaultLongWait
		if tq.head != nil {
			if until := time.Until(tq.head.ScheduledAt()); until < wait {
				wait = until
			}
		}
		tq.mu.Unlock()

		if wait <= 0 {
			tq.dispatchDue()
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-tq.wake:
			timer.Stop()
		case <-stopCh:
			timer.Stop()
			return
		}
	}
}

// dispatchDue moves every job whose deadline has passed into the ready FIFO.
func (tq *timerQueue) dispatchDue() {
	now := time.Now()
	for {
		tq.mu.Lock()
		if tq.head == nil || tq.head.ScheduledAt().After(now) {
			tq.mu.Unlock()
			return
		}
		due := tq.head
		tq.head = linkedOrNil(due.Next())
		tq.mu.Unlock()

		due.SetNext(nil)
		tq.sched.Submit(due)
	}
}

func linkedOrNil(j job.Job) job.Linked {
	if j == nil {
		return nil
	}
	if lj, ok := j.(job.Linked); ok {
		return lj
	}
	return nil
}

func jobIdentity(j job.Job) any {
	// Job is always a pointer-backed interface in practice (concrete job
	// types embed job.Base); comparing the interface value directly
	// compares both dynamic type and pointer, giving Cancel its
	// exact-identity semantics.
	return j
}

// idleMonitorJob is the scheduler's self-rescheduling housekeeping job:
// every MaxIdleInterval, if the ready FIFO is empty, lay off half the
// excess idle workers above MinWorkers, then resubmit itself.
type idleMonitorJob struct {
	job.Base
	tq *timerQueue
}

func (m *idleMonitorJob) Execute() {
	s := m.tq.sched
	s.dispatchMu.Lock()
	idle := s.idle
	s.dispatchMu.Unlock()

	s.schedMu.Lock()
	empty := s.inQ == 0
	minW := s.minW
	s.schedMu.Unlock()

	if empty {
		extra := idle - minW
		if extra > 1 {
			s.layoff(extra / 2)
		}
	}

	m.tq.rescheduleIdleMonitor()
}

// scheduleIdleMonitor installs the first idle-monitor tick. Called once
// from Start.
func (tq *timerQueue) scheduleIdleMonitor() {
	mon := &idleMonitorJob{Base: job.NewBase("scheduler idle monitor"), tq: tq}
	tq.mu.Lock()
	tq.idleMon = mon
	tq.mu.Unlock()
	tq.sched.SubmitDelayed(mon, time.Now().Add(tq.sched.idleInterval()))
}

// rescheduleIdleMonitor re-arms the idle monitor for another interval.
func (tq *timerQueue) rescheduleIdleMonitor() {
	tq.mu.Lock()
	mon := tq.idleMon
	tq.mu.Unlock()
	if mon == nil {
		return
	}
	tq.sched.SubmitDelayed(mon, time.Now().Add(tq.sched.idleInterval()))
}

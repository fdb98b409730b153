package scheduler

import (
	"github.com/corepool/dispatch/internal/job"
)

// hireWorker starts one additional worker goroutine if the pool has spare
// capacity under maxW. When the ceiling is hit, it bumps numLimited and
// logs a warning only every capacityLogEvery-th such event.
func (s *Scheduler) hireWorker(dotrace bool) {
	s.schedMu.Lock()
	if s.numW >= s.maxW {
		s.numLimited++
		limited := s.numLimited
		numW, maxW := s.numW, s.maxW
		s.schedMu.Unlock()
		if limited%capacityLogEvery == 1 {
			s.log.Warn().
				Int("workers", numW).
				Int("workers_max", maxW).
				Int64("capacity_limited_events", limited).
				Msg("scheduler: worker pool at capacity, not hiring")
		}
		return
	}
	s.numW++
	s.totalCreated++
	s.schedMu.Unlock()

	s.wg.Add(1)
	go s.runWorker(dotrace)
}

// runWorker is the body of one worker goroutine: wait for a ready token,
// dequeue and run one job, hiring a replacement idler when this worker was
// the last one waiting.
func (s *Scheduler) runWorker(dotrace bool) {
	defer s.wg.Done()
	for {
		s.dispatchMu.Lock()
		s.idle++
		s.dispatchMu.Unlock()

		select {
		case <-s.workAvail:
		case <-s.stopCh:
			s.dispatchMu.Lock()
			s.idle--
			s.dispatchMu.Unlock()
			s.retireSelf()
			return
		}

		s.dispatchMu.Lock()
		s.idle--
		waitingAfter := s.idle
		s.dispatchMu.Unlock()

		s.schedMu.Lock()
		j := s.dequeueLocked()
		if j == nil {
			// Woken with an empty queue: this token was a layoff
			// instruction from the idle monitor, not a job. Retire
			// only if other idle workers remain.
			if s.layoffs > 0 && waitingAfter > 0 {
				s.layoffs--
				s.numW--
				s.totalDestroy++
				s.schedMu.Unlock()
				return
			}
			s.schedMu.Unlock()
			continue
		}
		s.schedMu.Unlock()

		// Keep-one-idle: if no worker would be left idle to pick up the
		// next submission, try to hire one before running this job.
		if waitingAfter == 0 {
			s.hireWorker(dotrace)
		}

		s.execute(j)
	}
}

// execute runs j.Execute(), recovering any panic so a misbehaving job can
// never crash a worker goroutine or the process.
func (s *Scheduler) execute(j job.Job) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Str("job", j.Description()).
				Interface("panic", r).
				Msg("scheduler: job panicked, recovered")
		}
	}()
	j.Execute()
}

// retireSelf accounts for a worker exiting because Stop was called.
func (s *Scheduler) retireSelf() {
	s.schedMu.Lock()
	s.numW--
	s.totalDestroy++
	s.schedMu.Unlock()
}

// layoff signals n idle workers to self-terminate at their next wakeup by
// posting n semaphore tokens and recording the intent to retire them
// instead of dispatching a job. Callers need not hold schedMu.
func (s *Scheduler) layoff(n int) {
	if n <= 0 {
		return
	}
	s.schedMu.Lock()
	s.layoffs += n
	s.schedMu.Unlock()
	for i := 0; i < n; i++ {
		s.workAvail <- struct{}{}
	}
}

package scheduler

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// reaper collects exit statuses for child processes spawned through
// Scheduler.ForkWithReap. The reaper goroutine is started lazily on the
// first successful spawn and is the sole subscriber to SIGCHLD for the
// process: rather than giving every spawn its own cmd.Wait() goroutine, a
// dedicated reaper walks a pid list with non-blocking waitpid.
type reaper struct {
	log zerolog.Logger

	mu      sync.Mutex
	pids    map[int]string // pid -> tag, for the exit-status log line
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func newReaper(log zerolog.Logger) *reaper {
	return &reaper{log: log, pids: make(map[int]string)}
}

// fork spawns name with args as a child process tagged for diagnostics,
// registering it with the reaper (starting the reaper goroutine on first
// use). It returns the child's pid.
func (r *reaper) fork(tag, name string, args ...string) (int, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("scheduler: fork %s: %w", name, err)
	}
	pid := cmd.Process.Pid

	r.mu.Lock()
	r.pids[pid] = tag
	if !r.started {
		r.started = true
		r.stopCh = make(chan struct{})
		r.wg.Add(1)
		go r.run()
	}
	r.mu.Unlock()

	return pid, nil
}

// run is the reaper-thread body: block for SIGCHLD (falling back to a
// periodic poll if signal delivery is unavailable, e.g. under a test
// harness that has claimed SIGCHLD for itself), then drain every exited
// pid with a non-blocking waitpid.
func (r *reaper) run() {
	defer r.wg.Done()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGCHLD)
	defer signal.Stop(sigCh)

	fallback := time.NewTicker(time.Second)
	defer fallback.Stop()

	for {
		select {
		case <-sigCh:
			r.reapAll()
		case <-fallback.C:
			r.reapAll()
		case <-r.stopCh:
			return
		}
	}
}

// reapAll issues a non-blocking waitpid for every tracked pid, removing and
// logging any that have exited.
func (r *reaper) reapAll() {
	r.mu.Lock()
	pids := make([]int, 0, len(r.pids))
	for pid := range r.pids {
		pids = append(pids, pid)
	}
	r.mu.Unlock()

	for _, pid := range pids {
		var status syscall.WaitStatus
		got, err := syscall.Wait4(pid, &status, syscall.WNOHANG, nil)
		if err != nil || got == 0 {
			continue
		}
		r.mu.Lock()
		tag := r.pids[pid]
		delete(r.pids, pid)
		r.mu.Unlock()
		r.log.Info().
			Int("pid", pid).
			Str("tag", tag).
			Int("exit_status", status.ExitStatus()).
			Msg("scheduler: reaped child process")
	}
}

func (r *reaper) stop() {
	r.mu.Lock()
	started := r.started
	stopCh := r.stopCh
	r.mu.Unlock()
	if !started {
		return
	}
	close(stopCh)
	r.wg.Wait()
}

// ForkWithReap spawns name with args as a child process under the
// scheduler's reaper, starting the reaper goroutine on first use. It
// returns the parent-side pid.
func (s *Scheduler) ForkWithReap(tag, name string, args ...string) (int, error) {
	return s.reaper.fork(tag, name, args...)
}

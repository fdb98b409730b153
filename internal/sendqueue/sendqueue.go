// Package sendqueue implements a per-connection egress buffer: writes to a
// blocked peer are queued and drained by a single scheduler job, with
// bounded buffering and an overload-shed discard policy.
package sendqueue

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/corepool/dispatch/internal/job"
)

// discardLogEvery is the rate at which overload discards are logged; the
// fixed modulus keeps the logging rate bounded under sustained overload.
const discardLogEvery = 256

// Conn is the narrow write surface a SendQueue drains into. TrySend
// attempts a non-blocking send: it returns the number of bytes actually
// written and blocked=true if the peer would have blocked on the
// remainder. Send performs an ordinary blocking send of the full buffer.
type Conn interface {
	TrySend(b []byte) (n int, blocked bool, err error)
	Send(b []byte) error
}

// Submitter is the subset of the scheduler a SendQueue needs: the ability
// to run its drain job. internal/scheduler.Scheduler satisfies this.
type Submitter interface {
	Submit(job.Job)
}

type msgBuf struct {
	next *msgBuf
	data []byte
}

// Shutdowner is implemented by a Link-like owner that can force-close the
// peer socket. Terminate schedules a call to RequestShutdown as its own
// job, so the socket close runs off the caller's stack rather than inline
// under the write mutex.
type Shutdowner interface {
	RequestShutdown()
}

// SendQueue is the per-connection egress buffer. The zero value is not
// usable; build one with New. The write mutex is owned by the caller (the
// enclosing Link), not by the SendQueue itself, and must outlive the
// queue.
type SendQueue struct {
	log   zerolog.Logger
	sched Submitter
	conn  Conn

	mu *sync.Mutex // the Link's write mutex; must be held across Send/Terminate

	qHardMax  int
	qWarnStep int

	first, last *msgBuf
	del         *msgBuf // deletion list, freed by the drain job on its next pass

	inQ       int
	warnAt    int
	discards  int
	active    bool
	terminate bool

	shutdowner Shutdowner
}

// New builds a SendQueue writing to conn, serialized by mu (owned by the
// caller), with the given overload and warn thresholds. shutdowner may be
// nil if the caller has no force-close action to run on Terminate.
func New(conn Conn, mu *sync.Mutex, sched Submitter, qHardMax, qWarnStep int, shutdowner Shutdowner, log zerolog.Logger) *SendQueue {
	if qWarnStep <= 0 {
		qWarnStep = 3
	}
	return &SendQueue{
		log:        log,
		sched:      sched,
		conn:       conn,
		mu:         mu,
		qHardMax:   qHardMax,
		qWarnStep:  qWarnStep,
		warnAt:     qWarnStep,
		shutdowner: shutdowner,
	}
}

// Backlog returns the number of messages currently buffered.
func (q *SendQueue) Backlog() int { return q.inQ }

// Send delivers b to the peer, buffering it if the peer is currently
// blocked. The caller must hold the link's write mutex (q.mu) across this
// call.
func (q *SendQueue) Send(b []byte) error {
	if q.terminate {
		return nil
	}

	if !q.active {
		n, blocked, err := q.conn.TrySend(b)
		if err != nil {
			return err
		}
		if !blocked {
			return nil
		}
		b = append([]byte(nil), b[n:]...)
	}

	if q.inQ >= q.qHardMax {
		q.discards++
		if q.discards%discardLogEvery == 1 {
			q.log.Warn().
				Int("discards", q.discards).
				Int("queue_hard_max", q.qHardMax).
				Msg("sendqueue: overload, discarding message")
		}
		return nil
	}

	msg := &msgBuf{data: append([]byte(nil), b...)}
	if q.last == nil {
		q.first = msg
	} else {
		q.last.next = msg
	}
	q.last = msg
	q.inQ++

	if !q.active {
		q.active = true
		q.sched.Submit(newDrainJob(q))
	}

	q.maybeWarn()
	return nil
}

// SendV delivers the concatenation of bufs as one message, with the same
// buffering, discard and warn rules as Send. The caller must hold the
// link's write mutex.
func (q *SendQueue) SendV(bufs ...[]byte) error {
	if len(bufs) == 1 {
		return q.Send(bufs[0])
	}
	total := 0
	for _, b := range bufs {
		total += len(b)
	}
	msg := make([]byte, 0, total)
	for _, b := range bufs {
		msg = append(msg, b...)
	}
	return q.Send(msg)
}

// maybeWarn emits an escalating warning each time inQ crosses the next
// multiple of qWarnStep, resetting the watermark once the backlog recedes
// below the initial threshold.
func (q *SendQueue) maybeWarn() {
	if q.inQ < q.qWarnStep {
		q.warnAt = q.qWarnStep
		return
	}
	if q.inQ >= q.warnAt {
		q.log.Warn().
			Int("backlog", q.inQ).
			Msg("sendqueue: backlog growing, peer may be slow")
		q.warnAt += q.qWarnStep
	}
}

// Terminate tears the queue down. If no drain is in flight, buffers are
// released inline; otherwise the in-flight drain job finishes the cleanup
// on its next pass. The caller must hold the link's write mutex.
//
// A shutdown, if one is configured, is always scheduled as a separate job
// regardless of whether a drain is in flight.
func (q *SendQueue) Terminate() {
	q.terminate = true
	q.conn = nil

	if q.shutdowner != nil {
		q.sched.Submit(newShutdownJob(q.shutdowner))
	}

	if !q.active {
		q.release(q.first)
		q.first, q.last = nil, nil
		q.inQ = 0
		return
	}

	q.moveRemainingToDeletionLocked()
}

// release drops a chain of buffers; Go's GC reclaims them once the last
// reference goes.
func (q *SendQueue) release(head *msgBuf) {
	_ = head // nothing to do beyond letting references drop
}

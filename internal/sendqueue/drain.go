package sendqueue

import (
	"github.com/corepool/dispatch/internal/job"
)

// drainJob is the single scheduler job that serializes writes out of one
// SendQueue. At most one drain job is ever in flight per SendQueue: Send
// only submits a new one while q.active is false, and sets active true
// before releasing the write mutex.
type drainJob struct {
	job.Base
	q *SendQueue
}

func newDrainJob(q *SendQueue) *drainJob {
	return &drainJob{Base: job.NewBase("sendqueue drain"), q: q}
}

// Execute drains q until it is empty or a write fails, then relinquishes
// q.active so a later Send can submit a fresh drain job.
func (d *drainJob) Execute() {
	q := d.q
	q.mu.Lock()
	q.recycleDeletionList()

	for !q.terminate && q.first != nil {
		msg := q.first
		q.first = msg.next
		if q.first == nil {
			q.last = nil
		}
		q.inQ--
		conn := q.conn
		q.mu.Unlock()

		err := conn.Send(msg.data)

		q.mu.Lock()
		if err != nil {
			q.log.Warn().Err(err).Msg("sendqueue: drain send failed, abandoning queue")
			q.moveRemainingToDeletionLocked()
			break
		}
	}

	q.active = false
	q.warnAt = q.qWarnStep

	if q.terminate {
		q.recycleDeletionList()
	}
	q.mu.Unlock()
}

// shutdownJob force-closes a terminated SendQueue's peer socket off the
// caller's stack.
type shutdownJob struct {
	job.Base
	target Shutdowner
}

func newShutdownJob(target Shutdowner) *shutdownJob {
	return &shutdownJob{Base: job.NewBase("sendqueue shutdown"), target: target}
}

func (j *shutdownJob) Execute() { j.target.RequestShutdown() }

// recycleDeletionList drops the deletion-list chain built up by Terminate
// or a failed drain pass. Caller must hold q.mu; Go's GC reclaims the
// buffers once dereferenced.
func (q *SendQueue) recycleDeletionList() {
	q.del = nil
}

// moveRemainingToDeletionLocked transfers whatever is still queued onto the
// deletion list after a send error, so it is freed under the write mutex
// instead of mid-drain. Caller must hold q.mu.
func (q *SendQueue) moveRemainingToDeletionLocked() {
	if q.first == nil {
		return
	}
	tail := q.first
	for tail.next != nil {
		tail = tail.next
	}
	tail.next = q.del
	q.del = q.first
	q.first, q.last = nil, nil
	q.inQ = 0
}

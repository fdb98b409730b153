// Package job defines the unit-of-work contract shared by the scheduler,
// timer queue and send queue.
package job

import (
	"time"

	"github.com/google/uuid"
)

// Job is implemented by anything that can be run by the scheduler. A Job's
// Execute method is invoked at most once by the scheduler — exactly once for
// any job that is not canceled before it reaches the ready queue.
type Job interface {
	// Execute runs the unit of work. The scheduler recovers any panic
	// raised here and logs it against Description; it never propagates
	// outward and never terminates the worker goroutine.
	Execute()

	// Description returns a short string used only for diagnostics. It
	// must remain valid for the lifetime of the job.
	Description() string
}

// Linked is implemented by any Job whose queue linkage is provided via an
// embedded Base. The ready FIFO and timer queue require this to splice jobs
// in and out without a separate per-submission queue-node allocation.
type Linked interface {
	Job
	Next() Job
	SetNext(Job)
	ScheduledAt() time.Time
	SetScheduledAt(time.Time)
}

// Base is an embeddable struct giving a concrete Job type the intrusive
// queue linkage the scheduler and timer queue rely on, plus its immutable
// identity: a diagnostic description and a caller-supplied opaque tag. A
// job is a member of at most one queue at a time; the ScheduledAt field is
// meaningful only while the job sits on the timer queue.
type Base struct {
	next Job
	at   time.Time
	desc string
	tag  uuid.UUID
}

// NewBase returns a Base carrying the given diagnostic description and a
// freshly generated opaque tag.
func NewBase(desc string) Base { return Base{desc: desc, tag: uuid.New()} }

// NewBaseWithTag returns a Base carrying the given description and a
// caller-supplied opaque tag, for callers that need to correlate a job with
// an external identifier (a request ID, a connection ID) rather than
// accept a generated one.
func NewBaseWithTag(desc string, tag uuid.UUID) Base {
	return Base{desc: desc, tag: tag}
}

func (b *Base) Description() string       { return b.desc }
func (b *Base) Next() Job                 { return b.next }
func (b *Base) SetNext(j Job)             { b.next = j }
func (b *Base) ScheduledAt() time.Time    { return b.at }
func (b *Base) SetScheduledAt(t time.Time) { b.at = t }

// Tag returns this job's opaque identity token, used only for caller-side
// correlation; the scheduler never inspects it.
func (b *Base) Tag() uuid.UUID { return b.tag }

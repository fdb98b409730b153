package sendqueue

import (
	"sync"

	"github.com/rs/zerolog"
)

// Link owns the write mutex its SendQueue only borrows. Callers that don't
// need a distinct owner object can still build a SendQueue directly with
// their own *sync.Mutex via New.
type Link struct {
	mu   sync.Mutex
	conn Conn

	// Queue is this link's serializing egress buffer. Exported so callers
	// can call Queue.Backlog() for diagnostics without going through Link.
	Queue *SendQueue
}

// NewLink builds a Link around conn and its own SendQueue, registering
// itself as the SendQueue's Shutdowner so Terminate can force-close conn.
func NewLink(conn Conn, sched Submitter, qHardMax, qWarnStep int, log zerolog.Logger) *Link {
	l := &Link{conn: conn}
	l.Queue = New(conn, &l.mu, sched, qHardMax, qWarnStep, l, log)
	return l
}

// Send acquires the write mutex and forwards b to the queue, matching the
// "Send is called with wMutex held" contract SendQueue.Send documents.
func (l *Link) Send(b []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Queue.Send(b)
}

// SendV acquires the write mutex and forwards the concatenation of bufs to
// the queue as one message.
func (l *Link) SendV(bufs ...[]byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Queue.SendV(bufs...)
}

// Terminate acquires the write mutex and tears the queue down.
func (l *Link) Terminate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Queue.Terminate()
}

// RequestShutdown force-closes the underlying connection if it exposes a
// Close method, satisfying the Shutdowner contract SendQueue.Terminate
// schedules a job against.
func (l *Link) RequestShutdown() {
	if closer, ok := l.conn.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}

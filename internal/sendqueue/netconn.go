package sendqueue

import (
	"net"
	"time"
)

// NetConn adapts a net.Conn to the Conn interface a SendQueue drains into.
// TrySend uses a zero-wait SetWriteDeadline probe: the standard net package
// has no portable non-blocking write primitive distinct from a zero/short
// deadline.
type NetConn struct {
	Conn net.Conn
}

// TrySend attempts an immediate write. A deadline-exceeded error is treated
// as "peer would block"; any other error is reported as-is with no further
// buffering.
func (n NetConn) TrySend(b []byte) (int, bool, error) {
	if err := n.Conn.SetWriteDeadline(time.Now()); err != nil {
		return 0, false, err
	}
	defer func() { _ = n.Conn.SetWriteDeadline(time.Time{}) }()

	written, err := n.Conn.Write(b)
	if err == nil {
		return written, false, nil
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return written, true, nil
	}
	return written, false, err
}

// Send performs an ordinary blocking write of the full buffer.
func (n NetConn) Send(b []byte) error {
	if err := n.Conn.SetWriteDeadline(time.Time{}); err != nil {
		return err
	}
	_, err := n.Conn.Write(b)
	return err
}

// Close closes the underlying connection, satisfying io.Closer so Link's
// RequestShutdown can force it closed.
func (n NetConn) Close() error { return n.Conn.Close() }

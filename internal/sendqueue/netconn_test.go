package sendqueue

import (
	"net"
	"testing"
)

func TestNetConn_TrySendReportsBlockedWhenPeerNotReading(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	nc := NetConn{Conn: a}
	n, blocked, err := nc.TrySend([]byte("hello"))
	if err != nil {
		t.Fatalf("TrySend: %v", err)
	}
	if !blocked {
		t.Fatalf("expected TrySend to report blocked when nobody is reading, got n=%d", n)
	}
}

func TestNetConn_SendDeliversWhenPeerReads(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	nc := NetConn{Conn: a}
	done := make(chan error, 1)
	go func() { done <- nc.Send([]byte("hello")) }()

	buf := make([]byte, 5)
	if _, err := b.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}
	if string(buf) != "hello" {
		t.Fatalf("expected %q, got %q", "hello", buf)
	}
}

func TestNetConn_Close(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()

	nc := NetConn{Conn: a}
	if err := nc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := a.Write([]byte("x")); err == nil {
		t.Fatalf("expected a write on a closed connection to fail")
	}
}

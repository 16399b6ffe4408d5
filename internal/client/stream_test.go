package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeConn struct {
	events chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		events: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadEvent() ([]byte, error) {
	select {
	case b := <-c.events:
		return b, nil
	case <-c.closed:
		return nil, errors.New("connection lost")
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(data string) {
	c.events <- []byte(data)
}

// scriptDialer hands out pre-built connections in order and counts dials.
// A nil entry simulates a failed dial.
type scriptDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	dials int
}

func (d *scriptDialer) dial(_ context.Context) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.conns) == 0 {
		return nil, errors.New("dial refused")
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	if conn == nil {
		return nil, errors.New("dial refused")
	}
	return conn, nil
}

func (d *scriptDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type statusRecorder struct {
	mu       sync.Mutex
	statuses []Status
}

func (r *statusRecorder) notify(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *statusRecorder) snapshot() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, len(r.statuses))
	copy(out, r.statuses)
	return out
}

func waitForStatus(t *testing.T, s *Stream, want Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Status() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for status %s, at %s", want, s.Status())
}

func recvEvent(t *testing.T, s *Stream) []byte {
	t.Helper()
	select {
	case data := <-s.Events():
		return data
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		return nil
	}
}

func TestStreamDeliversAndDeduplicates(t *testing.T) {
	conn := newFakeConn()
	dialer := &scriptDialer{conns: []*fakeConn{conn}}
	stream := NewStream(Options{Dial: dialer.dial})
	defer stream.Close()

	stream.Start(context.Background())
	waitForStatus(t, stream, StatusConnected)

	conn.push(`{"type":"task","sessionId":"s1","status":"active"}`)
	first := recvEvent(t, stream)
	if string(first) != `{"type":"task","sessionId":"s1","status":"active"}` {
		t.Fatalf("unexpected first event: %s", first)
	}

	// Heartbeats never surface, and a structurally identical event with a
	// different key order is suppressed.
	conn.push(`{"type":"heartbeat"}`)
	conn.push(`{"sessionId":"s1","type":"task","status":"active"}`)
	conn.push(`{"type":"task","sessionId":"s1","status":"completed"}`)

	second := recvEvent(t, stream)
	if string(second) != `{"type":"task","sessionId":"s1","status":"completed"}` {
		t.Fatalf("expected the changed event next, got %s", second)
	}
}

func TestStreamReconnectsAndNotifiesRecovery(t *testing.T) {
	conn1 := newFakeConn()
	conn2 := newFakeConn()
	dialer := &scriptDialer{conns: []*fakeConn{conn1, conn2}}
	recorder := &statusRecorder{}
	stream := NewStream(Options{
		Dial:        dialer.dial,
		Notify:      recorder.notify,
		NotifyDelay: 5 * time.Millisecond,
		BackoffBase: 50 * time.Millisecond,
	})
	defer stream.Close()

	stream.Start(context.Background())
	waitForStatus(t, stream, StatusConnected)

	conn1.Close()
	waitForStatus(t, stream, StatusReconnecting)
	waitForStatus(t, stream, StatusConnected)
	if dialer.dialCount() != 2 {
		t.Fatalf("expected 2 dials, got %d", dialer.dialCount())
	}

	// The outage outlived the debounce, so both the drop and the recovery
	// were surfaced, in order.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(recorder.snapshot()) >= 2 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	got := recorder.snapshot()
	if len(got) != 2 || got[0] != StatusReconnecting || got[1] != StatusConnected {
		t.Fatalf("expected [reconnecting connected], got %v", got)
	}

	// The new connection keeps delivering.
	conn2.push(`{"type":"task","sessionId":"s1"}`)
	recvEvent(t, stream)
}

func TestStreamSubDelayBlipStaysInvisible(t *testing.T) {
	conn1 := newFakeConn()
	conn2 := newFakeConn()
	dialer := &scriptDialer{conns: []*fakeConn{conn1, conn2}}
	recorder := &statusRecorder{}
	stream := NewStream(Options{
		Dial:        dialer.dial,
		Notify:      recorder.notify,
		NotifyDelay: 200 * time.Millisecond,
		BackoffBase: time.Millisecond,
	})
	defer stream.Close()

	stream.Start(context.Background())
	waitForStatus(t, stream, StatusConnected)

	conn1.Close()
	waitForStatus(t, stream, StatusConnected)

	// Give a stale notify timer a chance to misfire.
	time.Sleep(250 * time.Millisecond)
	if got := recorder.snapshot(); len(got) != 0 {
		t.Fatalf("expected no surfaced notifications for a fast recovery, got %v", got)
	}
}

func TestStreamGivesUpAfterMaxAttempts(t *testing.T) {
	dialer := &scriptDialer{}
	stream := NewStream(Options{
		Dial:        dialer.dial,
		BackoffBase: time.Millisecond,
		BackoffCap:  2 * time.Millisecond,
		MaxAttempts: 3,
		NotifyDelay: time.Millisecond,
	})
	defer stream.Close()

	stream.Start(context.Background())
	waitForStatus(t, stream, StatusReconnectingFailed)

	if dialer.dialCount() != 3 {
		t.Fatalf("expected exactly 3 dial attempts, got %d", dialer.dialCount())
	}
	// No further retries once failed.
	time.Sleep(50 * time.Millisecond)
	if dialer.dialCount() != 3 {
		t.Fatalf("expected no dials after giving up, got %d", dialer.dialCount())
	}
}

type visibility struct {
	mu      sync.Mutex
	visible bool
}

func (v *visibility) set(b bool) {
	v.mu.Lock()
	v.visible = b
	v.mu.Unlock()
}

func (v *visibility) get() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visible
}

func TestStreamIgnoresDialFailuresWhileHidden(t *testing.T) {
	conn := newFakeConn()
	dialer := &scriptDialer{conns: []*fakeConn{conn}}
	vis := &visibility{visible: true}
	recorder := &statusRecorder{}
	stream := NewStream(Options{
		Dial:        dialer.dial,
		Visible:     vis.get,
		Notify:      recorder.notify,
		NotifyDelay: time.Millisecond,
		BackoffBase: 50 * time.Millisecond,
		MaxAttempts: 3,
	})
	defer stream.Close()

	stream.Start(context.Background())
	waitForStatus(t, stream, StatusConnected)

	// A visible drop schedules a redial, then the tab goes hidden before
	// the redial fires. The dialer refuses from here on.
	conn.Close()
	waitForStatus(t, stream, StatusReconnecting)
	vis.set(false)

	time.Sleep(250 * time.Millisecond)
	if got := stream.Status(); got != StatusReconnecting {
		t.Fatalf("hidden dial failures changed the status to %s", got)
	}
	if got := dialer.dialCount(); got != 2 {
		t.Fatalf("expected only the already scheduled redial, got %d dials", got)
	}
}

func TestStreamIgnoresErrorsWhileHidden(t *testing.T) {
	conn := newFakeConn()
	dialer := &scriptDialer{conns: []*fakeConn{conn}}
	stream := NewStream(Options{
		Dial:    dialer.dial,
		Visible: func() bool { return false },
	})
	defer stream.Close()

	stream.Start(context.Background())
	waitForStatus(t, stream, StatusConnected)

	conn.Close()
	time.Sleep(50 * time.Millisecond)

	// A backgrounded consumer neither churns status nor redials.
	if got := stream.Status(); got != StatusConnected {
		t.Fatalf("expected status unchanged while hidden, got %s", got)
	}
	if dialer.dialCount() != 1 {
		t.Fatalf("expected no redial while hidden, got %d dials", dialer.dialCount())
	}
}

func TestStreamCloseSilencesTransport(t *testing.T) {
	conn := newFakeConn()
	dialer := &scriptDialer{conns: []*fakeConn{conn}}
	recorder := &statusRecorder{}
	stream := NewStream(Options{
		Dial:        dialer.dial,
		Notify:      recorder.notify,
		NotifyDelay: time.Millisecond,
		BackoffBase: time.Millisecond,
	})

	stream.Start(context.Background())
	waitForStatus(t, stream, StatusConnected)

	stream.Close()
	time.Sleep(50 * time.Millisecond)

	// The read error caused by our own Close never triggers a reconnect.
	if dialer.dialCount() != 1 {
		t.Fatalf("expected no redial after close, got %d dials", dialer.dialCount())
	}
	if got := recorder.snapshot(); len(got) != 0 {
		t.Fatalf("expected no notifications after close, got %v", got)
	}
}

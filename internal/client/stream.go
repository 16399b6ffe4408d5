// Package client implements the consuming side of the event delivery
// protocol: a reconnecting stream that survives transport drops with
// exponential backoff, discards superseded sockets and deduplicates
// redundant events.
package client

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"time"
)

// Status is the reconnection state machine's externally visible state.
type Status string

const (
	StatusInitialized        Status = "initialized"
	StatusConnected          Status = "connected"
	StatusReconnecting       Status = "reconnecting"
	StatusReconnectingFailed Status = "reconnecting_failed"
)

// Conn is one established transport connection delivering raw event frames.
type Conn interface {
	ReadEvent() ([]byte, error)
	Close() error
}

// Dialer opens a new transport connection.
type Dialer func(ctx context.Context) (Conn, error)

// Notifier surfaces user-facing connection status changes. Calls are
// debounced: a sub-delay blip never reaches the notifier, and a connected
// notice only follows a surfaced reconnect notice.
type Notifier func(Status)

// Options configures a Stream. Zero values fall back to the protocol
// defaults: 1s backoff base doubling to a 30s cap, 10 transport errors
// before giving up, 500ms notification debounce.
type Options struct {
	Dial        Dialer
	Visible     func() bool
	Notify      Notifier
	NotifyDelay time.Duration
	BackoffBase time.Duration
	BackoffCap  time.Duration
	MaxAttempts int
}

const (
	defaultNotifyDelay = 500 * time.Millisecond
	defaultBackoffBase = time.Second
	defaultBackoffCap  = 30 * time.Second
	defaultMaxAttempts = 10
)

// Stream consumes one participant's push stream and keeps it alive across
// transport failures. Every connection attempt is tagged with a
// monotonically increasing instance id; events and errors from an instance
// that lost a race against a newer attempt are discarded, so a slow doomed
// socket can never resurrect stale state.
type Stream struct {
	opts Options

	mu          sync.Mutex
	status      Status
	instance    uint64
	conn        Conn
	attempts    int
	closed      bool
	recovering  bool
	lastEvent   any
	notifyTimer *time.Timer
	retryTimer  *time.Timer

	events chan []byte
}

func NewStream(opts Options) *Stream {
	if opts.NotifyDelay <= 0 {
		opts.NotifyDelay = defaultNotifyDelay
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaultBackoffBase
	}
	if opts.BackoffCap <= 0 {
		opts.BackoffCap = defaultBackoffCap
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	return &Stream{
		opts:   opts,
		status: StatusInitialized,
		events: make(chan []byte, 16),
	}
}

// Events delivers non-heartbeat events that are semantically different from
// the previously delivered one.
func (s *Stream) Events() <-chan []byte {
	return s.events
}

// Status returns the current reconnection state.
func (s *Stream) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Start opens the stream. The context governs all dials and redials.
func (s *Stream) Start(ctx context.Context) {
	s.mu.Lock()
	s.instance++
	instance := s.instance
	s.mu.Unlock()
	go s.dial(ctx, instance)
}

// Close shuts the stream down locally. Transport errors arriving afterwards
// (e.g. the server noticing the closed socket) are ignored entirely.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.retryTimer != nil {
		s.retryTimer.Stop()
	}
	if s.notifyTimer != nil {
		s.notifyTimer.Stop()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

func (s *Stream) dial(ctx context.Context, instance uint64) {
	conn, err := s.opts.Dial(ctx)

	s.mu.Lock()
	if s.closed || instance != s.instance {
		s.mu.Unlock()
		// A superseded attempt connected after losing the race.
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		s.transportErrorLocked(ctx)
		s.mu.Unlock()
		return
	}
	s.conn = conn
	s.attempts = 0
	s.status = StatusConnected
	if s.notifyTimer != nil {
		s.notifyTimer.Stop()
		s.notifyTimer = nil
	}
	notifyRecovered := s.recovering
	s.recovering = false
	s.mu.Unlock()

	// Connected notices only mark recovery, never the first connect.
	if notifyRecovered && s.opts.Notify != nil {
		s.opts.Notify(StatusConnected)
	}

	go s.readLoop(ctx, conn, instance)
}

func (s *Stream) readLoop(ctx context.Context, conn Conn, instance uint64) {
	for {
		data, err := conn.ReadEvent()
		if err != nil {
			s.onTransportError(ctx, instance)
			return
		}
		s.deliver(data, instance)
	}
}

func (s *Stream) onTransportError(ctx context.Context, instance uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || instance != s.instance {
		return
	}
	s.transportErrorLocked(ctx)
}

func (s *Stream) transportErrorLocked(ctx context.Context) {
	if s.opts.Visible != nil && !s.opts.Visible() {
		// Backgrounded tab: no status change, no retry storm. Read errors
		// and failed dials count the same, which is not at all.
		return
	}
	s.attempts++
	if s.attempts >= s.opts.MaxAttempts {
		s.status = StatusReconnectingFailed
		s.scheduleNotifyLocked(StatusReconnectingFailed)
		return
	}
	s.status = StatusReconnecting
	s.scheduleNotifyLocked(StatusReconnecting)

	delay := s.opts.BackoffBase << (s.attempts - 1)
	if delay > s.opts.BackoffCap {
		delay = s.opts.BackoffCap
	}
	s.instance++
	instance := s.instance
	s.retryTimer = time.AfterFunc(delay, func() {
		s.dial(ctx, instance)
	})
}

// scheduleNotifyLocked surfaces a status only if it still holds after the
// debounce delay, so a sub-delay network blip stays invisible.
func (s *Stream) scheduleNotifyLocked(status Status) {
	if s.opts.Notify == nil {
		return
	}
	if s.notifyTimer != nil {
		s.notifyTimer.Stop()
	}
	s.notifyTimer = time.AfterFunc(s.opts.NotifyDelay, func() {
		s.mu.Lock()
		stale := s.closed || s.status != status
		if !stale && status == StatusReconnecting {
			s.recovering = true
		}
		s.mu.Unlock()
		if !stale {
			s.opts.Notify(status)
		}
	})
}

func (s *Stream) deliver(data []byte, instance uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || instance != s.instance {
		return
	}

	var header struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &header); err == nil && header.Type == "heartbeat" {
		return
	}

	// Deep, key-order-insensitive comparison against the last delivered
	// event; structurally identical repeats are suppressed.
	var canonical any
	if err := json.Unmarshal(data, &canonical); err == nil {
		if reflect.DeepEqual(canonical, s.lastEvent) {
			return
		}
		s.lastEvent = canonical
	}

	select {
	case s.events <- data:
	default:
		// Slow consumer: drop the oldest buffered event for the newest.
		select {
		case <-s.events:
		default:
		}
		s.events <- data
	}
}

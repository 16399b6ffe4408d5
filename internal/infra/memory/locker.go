package memory

import (
	"context"
	"sync"
	"time"

	"quizlive/internal/domain"
)

// Locker serializes transitions per session id in a single process. Waiters
// block up to the configured timeout before giving up with
// domain.ErrLockContention.
type Locker struct {
	mu      sync.Mutex
	locks   map[string]chan struct{}
	timeout time.Duration
}

func NewLocker(timeout time.Duration) *Locker {
	return &Locker{
		locks:   make(map[string]chan struct{}),
		timeout: timeout,
	}
}

func (l *Locker) Acquire(ctx context.Context, sessionID string) (func(), error) {
	l.mu.Lock()
	sem, ok := l.locks[sessionID]
	if !ok {
		sem = make(chan struct{}, 1)
		l.locks[sessionID] = sem
	}
	l.mu.Unlock()

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() { <-sem })
		}, nil
	case <-timer.C:
		return nil, domain.ErrLockContention
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

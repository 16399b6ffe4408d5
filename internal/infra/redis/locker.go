package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"quizlive/internal/domain"
)

// releaseScript deletes the lock key only if the caller still owns it, so a
// lease that expired and was re-acquired by someone else is never released
// from under them.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a lease-based per-session lock (SET NX PX). The TTL bounds how
// long a crashed holder can stall a session; live holders release
// explicitly. Acquisition retries briefly with backoff before failing with
// domain.ErrLockContention.
type Locker struct {
	client   *redis.Client
	ttl      time.Duration
	attempts int
	backoff  time.Duration
}

func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	return &Locker{
		client:   client,
		ttl:      ttl,
		attempts: 10,
		backoff:  50 * time.Millisecond,
	}
}

func (l *Locker) Acquire(ctx context.Context, sessionID string) (func(), error) {
	key := "game:lock:" + sessionID
	token := uuid.NewString()

	delay := l.backoff
	for attempt := 0; attempt < l.attempts; attempt++ {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
			}, nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
		delay *= 2
	}
	return nil, domain.ErrLockContention
}

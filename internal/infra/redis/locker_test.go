package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizlive/internal/domain"
)

func TestLockerAcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	locker := NewLocker(client, time.Minute)

	release, err := locker.Acquire(ctx, "s1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !mr.Exists("game:lock:s1") {
		t.Fatalf("expected lock key to be set")
	}

	release()
	if mr.Exists("game:lock:s1") {
		t.Fatalf("expected lock key removed after release")
	}
}

func TestLockerContention(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	locker := NewLocker(client, time.Minute)
	locker.attempts = 2
	locker.backoff = 5 * time.Millisecond

	release, err := locker.Acquire(ctx, "s1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	if _, err := locker.Acquire(ctx, "s1"); !errors.Is(err, domain.ErrLockContention) {
		t.Fatalf("expected ErrLockContention, got %v", err)
	}
}

func TestLockerReleaseOnlyOwnLease(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	locker := NewLocker(client, 50*time.Millisecond)
	locker.attempts = 1

	release, err := locker.Acquire(ctx, "s1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// Lease expires; another holder takes the lock.
	mr.FastForward(100 * time.Millisecond)
	release2, err := locker.Acquire(ctx, "s1")
	if err != nil {
		t.Fatalf("acquire after expiry: %v", err)
	}
	defer release2()

	// The stale holder's release must not free the new holder's lease.
	release()
	if !mr.Exists("game:lock:s1") {
		t.Fatalf("stale release removed a lease it no longer owned")
	}
}

func TestLockerHonorsContext(t *testing.T) {
	_, client := newTestClient(t)
	locker := NewLocker(client, time.Minute)
	locker.backoff = time.Second

	release, err := locker.Acquire(context.Background(), "s1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := locker.Acquire(ctx, "s1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline, got %v", err)
	}
}

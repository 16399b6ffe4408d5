package game

import (
	"context"
	"testing"
	"time"

	"quizlive/internal/domain"
)

func TestReaperSweepsIdleSessions(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	idle, err := f.service.CreateSession(ctx, "quiz-1", "host-idle", domain.ModeClassic)
	if err != nil {
		t.Fatalf("create idle: %v", err)
	}

	// The second session keeps seeing activity.
	f.advanceClock(2 * time.Hour)
	fresh, err := f.service.CreateSession(ctx, "quiz-1", "host-fresh", domain.ModeClassic)
	if err != nil {
		t.Fatalf("create fresh: %v", err)
	}

	reaper := NewReaper(f.store, f.service, time.Minute, time.Hour, f.service.log).WithClock(f.clock)
	reaper.Sweep(ctx)

	got, err := f.service.Session(ctx, idle.ID)
	if err != nil {
		t.Fatalf("get idle: %v", err)
	}
	if got.Status != domain.StatusExpired {
		t.Fatalf("expected idle session expired, got %s", got.Status)
	}
	quit, ok := got.CurrentTask.(*domain.QuitTask)
	if !ok || !quit.Forced {
		t.Fatalf("expected forced quit, got %#v", got.CurrentTask)
	}

	got, err = f.service.Session(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("get fresh: %v", err)
	}
	if got.Status != domain.StatusActive {
		t.Fatalf("expected fresh session untouched, got %s", got.Status)
	}
}

func TestReaperCompletesIdlePodium(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	session, err := f.service.CreateSession(ctx, "quiz-1", "host", domain.ModeClassic)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Play the whole game but abandon it on the podium.
	for _, phase := range []domain.TaskType{
		domain.TaskQuestion, domain.TaskQuestionResult, domain.TaskLeaderboard,
		domain.TaskQuestion, domain.TaskQuestionResult, domain.TaskPodium,
	} {
		session, err = f.service.RequestTransition(ctx, session.ID)
		if err != nil {
			t.Fatalf("advance to %s: %v", phase, err)
		}
	}

	f.advanceClock(2 * time.Hour)
	reaper := NewReaper(f.store, f.service, time.Minute, time.Hour, f.service.log).WithClock(f.clock)
	reaper.Sweep(ctx)

	got, err := f.service.Session(ctx, session.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// The game finished its content: completed, not expired.
	if got.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if f.archiver.count() != 1 {
		t.Fatalf("expected reaped session archived, got %d", f.archiver.count())
	}
}

func TestReaperRunStopsOnCancel(t *testing.T) {
	f := newServiceFixture(t)
	reaper := NewReaper(f.store, f.service, 5*time.Millisecond, time.Hour, f.service.log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reaper.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("reaper did not stop on context cancel")
	}
}

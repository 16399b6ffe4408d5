package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quizlive/internal/domain"
)

func sub(participant string, index int) domain.SubmittedAnswer {
	return domain.SubmittedAnswer{
		ParticipantID: participant,
		QuestionIndex: index,
		Answer:        domain.MultiChoiceAnswer{OptionIndex: 1},
		SubmittedAt:   time.Now(),
	}
}

func TestAnswerBufferSubmitAndDrain(t *testing.T) {
	ctx := context.Background()
	buf := NewAnswerBuffer()

	if err := buf.Open(ctx, "s1", 0); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := buf.Submit(ctx, "s1", sub("p1", 0)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := buf.Submit(ctx, "s1", sub("p2", 0)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	drained, err := buf.Drain(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(drained) != 2 {
		t.Fatalf("expected 2 drained answers, got %d", len(drained))
	}
	if drained[0].ParticipantID != "p1" || drained[1].ParticipantID != "p2" {
		t.Fatalf("expected submission order preserved, got %v", drained)
	}
}

func TestAnswerBufferRejectsAfterDrain(t *testing.T) {
	ctx := context.Background()
	buf := NewAnswerBuffer()

	if err := buf.Open(ctx, "s1", 0); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := buf.Drain(ctx, "s1", 0); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if err := buf.Submit(ctx, "s1", sub("p1", 0)); !errors.Is(err, domain.ErrQuestionClosed) {
		t.Fatalf("expected ErrQuestionClosed after drain, got %v", err)
	}
}

func TestAnswerBufferRejectsWrongQuestion(t *testing.T) {
	ctx := context.Background()
	buf := NewAnswerBuffer()

	if err := buf.Open(ctx, "s1", 2); err != nil {
		t.Fatalf("open: %v", err)
	}
	// An answer for a question that is not the open one never lands.
	if err := buf.Submit(ctx, "s1", sub("p1", 1)); !errors.Is(err, domain.ErrQuestionClosed) {
		t.Fatalf("expected ErrQuestionClosed for stale index, got %v", err)
	}
	if err := buf.Submit(ctx, "s1", sub("p1", 2)); err != nil {
		t.Fatalf("submit current question: %v", err)
	}
}

func TestAnswerBufferNeverOpened(t *testing.T) {
	ctx := context.Background()
	buf := NewAnswerBuffer()

	if err := buf.Submit(ctx, "s1", sub("p1", 0)); !errors.Is(err, domain.ErrQuestionClosed) {
		t.Fatalf("expected ErrQuestionClosed without open, got %v", err)
	}
	drained, err := buf.Drain(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if drained != nil {
		t.Fatalf("expected empty drain without open, got %v", drained)
	}
}

func TestAnswerBufferConcurrentSubmitDrain(t *testing.T) {
	ctx := context.Background()
	buf := NewAnswerBuffer()

	if err := buf.Open(ctx, "s1", 0); err != nil {
		t.Fatalf("open: %v", err)
	}

	const submitters = 32
	var wg sync.WaitGroup
	results := make([]error, submitters)
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = buf.Submit(ctx, "s1", sub("p", 0))
		}(i)
	}

	drained, err := buf.Drain(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	wg.Wait()

	// Every submission either landed in the drained batch or was rejected;
	// none can disappear or leak past the drain.
	accepted := 0
	for _, err := range results {
		if err == nil {
			accepted++
		} else if !errors.Is(err, domain.ErrQuestionClosed) {
			t.Fatalf("unexpected submit error: %v", err)
		}
	}
	if accepted != len(drained) {
		t.Fatalf("accepted %d but drained %d", accepted, len(drained))
	}
}

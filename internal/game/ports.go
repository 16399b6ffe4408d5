package game

import (
	"context"

	"quizlive/internal/domain"
)

// SessionStore abstracts how live sessions are stored (in-memory, Redis-
// decorated, etc). Reads return independent snapshots; Update replaces the
// whole session state. Callers hold the session lock around
// read-modify-write cycles.
type SessionStore interface {
	Create(ctx context.Context, s *domain.GameSession) error
	Get(ctx context.Context, id string) (*domain.GameSession, error)
	// GetByCode resolves a join code to an Active session only.
	GetByCode(ctx context.Context, code string) (*domain.GameSession, error)
	Update(ctx context.Context, s *domain.GameSession) error
	ListActive(ctx context.Context) ([]*domain.GameSession, error)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// SessionLocker is the per-session mutual-exclusion lease. Acquire blocks
// briefly on contention and returns domain.ErrLockContention once its
// bounded retry budget is spent. The returned release func must always be
// called.
type SessionLocker interface {
	Acquire(ctx context.Context, sessionID string) (release func(), err error)
}

// AnswerBuffer accumulates submissions for the currently open question and
// hands them over atomically when the question closes. Submissions racing a
// drain are either included in the drained batch or rejected with
// domain.ErrQuestionClosed, never lost or leaked into the next question.
type AnswerBuffer interface {
	Open(ctx context.Context, sessionID string, questionIndex int) error
	Submit(ctx context.Context, sessionID string, ans domain.SubmittedAnswer) error
	Drain(ctx context.Context, sessionID string, questionIndex int) ([]domain.SubmittedAnswer, error)
}

// Archiver persists terminal sessions for post-game history. Failures are
// surfaced to the caller but never block a transition from committing.
type Archiver interface {
	Archive(ctx context.Context, s *domain.GameSession) error
}

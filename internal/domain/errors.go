package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no live session matches the id or join code.
	ErrSessionNotFound = errors.New("game session not found")
	// ErrParticipantNotFound is returned when a user acts on a session they never joined.
	ErrParticipantNotFound = errors.New("participant not found in session")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrPhaseMismatch signals a transition attempted against the wrong current task.
	// It is a race/stale-client error: the session is left untouched.
	ErrPhaseMismatch = errors.New("transition does not match current phase")
	// ErrLockContention is returned when the per-session lock could not be
	// acquired within the bounded retry budget.
	ErrLockContention = errors.New("session lock contended")
	// ErrQuestionClosed rejects answers that arrive after the question drained.
	ErrQuestionClosed = errors.New("question already closed")
	// ErrJoinCodeTaken indicates a generated join code collided with a live session.
	ErrJoinCodeTaken = errors.New("join code already in use")
	// ErrSessionFinished rejects actions on a completed or expired session.
	ErrSessionFinished = errors.New("game session already finished")
)

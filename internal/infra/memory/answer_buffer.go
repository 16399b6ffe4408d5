package memory

import (
	"context"
	"sync"

	"quizlive/internal/domain"
)

// AnswerBuffer is the in-memory implementation of game.AnswerBuffer. Each
// session has at most one open question; Drain atomically hands over the
// accumulated answers and closes the buffer, so a submission racing the
// drain either lands in the drained batch or is rejected; it can never
// leak into the next question.
type AnswerBuffer struct {
	mu       sync.Mutex
	sessions map[string]*bufferState
}

type bufferState struct {
	open          bool
	questionIndex int
	answers       []domain.SubmittedAnswer
}

func NewAnswerBuffer() *AnswerBuffer {
	return &AnswerBuffer{sessions: make(map[string]*bufferState)}
}

func (b *AnswerBuffer) Open(_ context.Context, sessionID string, questionIndex int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[sessionID] = &bufferState{open: true, questionIndex: questionIndex}
	return nil
}

func (b *AnswerBuffer) Submit(_ context.Context, sessionID string, ans domain.SubmittedAnswer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.sessions[sessionID]
	if !ok || !state.open || state.questionIndex != ans.QuestionIndex {
		return domain.ErrQuestionClosed
	}
	state.answers = append(state.answers, ans)
	return nil
}

func (b *AnswerBuffer) Drain(_ context.Context, sessionID string, questionIndex int) ([]domain.SubmittedAnswer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.sessions[sessionID]
	if !ok || !state.open || state.questionIndex != questionIndex {
		return nil, nil
	}
	drained := state.answers
	delete(b.sessions, sessionID)
	return drained, nil
}

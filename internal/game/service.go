package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"quizlive/internal/domain"
)

const createCodeAttempts = 5

// Service wires the transition engine, the ingestion buffer, the session
// lock and the subscriber hub into the operations exposed to transports.
type Service struct {
	store    SessionStore
	quizzes  QuizRepository
	locker   SessionLocker
	buffer   AnswerBuffer
	archiver Archiver
	engine   *Engine
	hub      *Hub
	log      *slog.Logger
	now      func() time.Time
}

func NewService(store SessionStore, quizzes QuizRepository, locker SessionLocker, buffer AnswerBuffer, archiver Archiver, log *slog.Logger) *Service {
	return &Service{
		store:    store,
		quizzes:  quizzes,
		locker:   locker,
		buffer:   buffer,
		archiver: archiver,
		engine:   NewEngine(),
		hub:      NewHub(),
		log:      log,
		now:      time.Now,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateSession snapshots the quiz content and opens a lobby. The returned
// join code is unique among currently active sessions.
func (s *Service) CreateSession(ctx context.Context, quizID, hostID string, mode domain.GameMode) (*domain.GameSession, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if len(quiz.Questions) == 0 {
		return nil, fmt.Errorf("quiz %s has no questions: %w", quizID, domain.ErrQuizNotFound)
	}
	if mode == "" {
		mode = domain.ModeClassic
	}

	now := s.now()
	session := &domain.GameSession{
		ID:        uuid.NewString(),
		QuizID:    quiz.ID,
		HostID:    hostID,
		Mode:      mode,
		Status:    domain.StatusActive,
		Questions: quiz.Questions,
		CurrentTask: &domain.LobbyTask{
			OpenedAt: now,
		},
		Participants: []*domain.Participant{{
			ID:           hostID,
			Role:         domain.RoleHost,
			JoinedAt:     now,
			LastActiveAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	for attempt := 0; attempt < createCodeAttempts; attempt++ {
		code, err := generateJoinCode()
		if err != nil {
			return nil, err
		}
		session.JoinCode = code
		err = s.store.Create(ctx, session)
		if err == nil {
			s.log.Info("session created",
				"session", session.ID, "quiz", quiz.ID, "code", code, "mode", mode)
			return session, nil
		}
		if !errors.Is(err, domain.ErrJoinCodeTaken) {
			return nil, err
		}
	}
	return nil, domain.ErrJoinCodeTaken
}

// Join registers a player via join code. Only active sessions resolve.
func (s *Service) Join(ctx context.Context, joinCode, participantID, nickname string) (*domain.GameSession, error) {
	session, err := s.store.GetByCode(ctx, joinCode)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err = s.store.Get(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.StatusActive {
		return nil, domain.ErrSessionFinished
	}

	now := s.now()
	if p, ok := session.Participant(participantID); ok {
		p.Nickname = nickname
		p.LastActiveAt = now
	} else {
		session.Participants = append(session.Participants, &domain.Participant{
			ID:           participantID,
			Role:         domain.RolePlayer,
			Nickname:     nickname,
			JoinedAt:     now,
			LastActiveAt: now,
		})
	}
	session.UpdatedAt = now
	if err := s.store.Update(ctx, session); err != nil {
		return nil, err
	}
	s.hub.Broadcast(session)
	return session, nil
}

// SubmitAnswer appends a player's answer to the ingestion buffer for the
// currently open question. It deliberately avoids the session lock: the
// buffer itself guarantees drain atomicity.
func (s *Service) SubmitAnswer(ctx context.Context, sessionID, participantID string, answer domain.Answer) error {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	p, ok := session.Participant(participantID)
	if !ok {
		return domain.ErrParticipantNotFound
	}
	if p.Role != domain.RolePlayer {
		return domain.ErrParticipantNotFound
	}
	current, ok := session.CurrentTask.(*domain.QuestionTask)
	if !ok {
		return domain.ErrQuestionClosed
	}
	return s.buffer.Submit(ctx, sessionID, domain.SubmittedAnswer{
		ParticipantID: participantID,
		QuestionIndex: current.QuestionIndex,
		Answer:        answer,
		SubmittedAt:   s.now(),
	})
}

// RequestTransition advances the session one phase under the per-session
// lock. Leaving the Question phase drains the ingestion buffer atomically;
// entering it opens a fresh one.
func (s *Service) RequestTransition(ctx context.Context, sessionID string) (*domain.GameSession, error) {
	release, err := s.locker.Acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var drained []domain.SubmittedAnswer
	if t, ok := session.CurrentTask.(*domain.QuestionTask); ok {
		drained, err = s.buffer.Drain(ctx, sessionID, t.QuestionIndex)
		if err != nil {
			return nil, fmt.Errorf("drain answers: %w", err)
		}
	}

	if err := s.engine.Advance(session, drained, s.now()); err != nil {
		return nil, err
	}

	if t, ok := session.CurrentTask.(*domain.QuestionTask); ok {
		if err := s.buffer.Open(ctx, sessionID, t.QuestionIndex); err != nil {
			return nil, fmt.Errorf("open answer buffer: %w", err)
		}
	}

	if err := s.store.Update(ctx, session); err != nil {
		return nil, err
	}
	s.archiveIfFinished(ctx, session)
	s.hub.Broadcast(session)
	s.log.Debug("session advanced",
		"session", session.ID, "phase", session.CurrentTask.Phase(), "status", session.Status)
	return session, nil
}

// Rebuild recomputes the current question result from frozen inputs. It is
// idempotent and exists to recover from a partial failure between scoring
// and delivery.
func (s *Service) Rebuild(ctx context.Context, sessionID string) (*domain.GameSession, error) {
	release, err := s.locker.Acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Rebuild(session); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, session); err != nil {
		return nil, err
	}
	s.hub.Broadcast(session)
	return session, nil
}

// RemapParticipant atomically rewrites a participant's identity across the
// whole session record (maintenance operation for anonymous-to-account
// binding).
func (s *Service) RemapParticipant(ctx context.Context, sessionID, oldID, newID string) error {
	release, err := s.locker.Acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer release()

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := session.RemapParticipant(oldID, newID); err != nil {
		return err
	}
	session.UpdatedAt = s.now()
	return s.store.Update(ctx, session)
}

// Leave removes a participant from the session.
func (s *Service) Leave(ctx context.Context, sessionID, participantID string) error {
	release, err := s.locker.Acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer release()

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	for i, p := range session.Participants {
		if p.ID == participantID {
			session.Participants = append(session.Participants[:i], session.Participants[i+1:]...)
			session.UpdatedAt = s.now()
			if err := s.store.Update(ctx, session); err != nil {
				return err
			}
			s.hub.Broadcast(session)
			return nil
		}
	}
	return domain.ErrParticipantNotFound
}

// Subscribe opens the push stream for one participant. The current state is
// delivered immediately, then after every committed transition.
func (s *Service) Subscribe(ctx context.Context, sessionID, participantID string) (<-chan Event, func(), error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	p, ok := session.Participant(participantID)
	if !ok {
		return nil, nil, domain.ErrParticipantNotFound
	}
	ch, cancel := s.hub.Subscribe(session, p.ID, p.Role)
	return ch, cancel, nil
}

// Session returns the session by id (read-only convenience for transports).
func (s *Service) Session(ctx context.Context, sessionID string) (*domain.GameSession, error) {
	return s.store.Get(ctx, sessionID)
}

// ForceEnd terminates an idle session; called by the reaper under the same
// lock discipline as host-driven transitions.
func (s *Service) ForceEnd(ctx context.Context, sessionID string, idleSince time.Time) error {
	release, err := s.locker.Acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer release()

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	// Re-check under the lock: a host action may have raced the sweep.
	if session.Status != domain.StatusActive || session.UpdatedAt.After(idleSince) {
		return nil
	}
	if err := s.engine.ForceEnd(session, s.now()); err != nil {
		return err
	}
	if err := s.store.Update(ctx, session); err != nil {
		return err
	}
	s.archiveIfFinished(ctx, session)
	s.hub.Broadcast(session)
	s.log.Info("idle session reaped", "session", session.ID, "status", session.Status)
	return nil
}

func (s *Service) archiveIfFinished(ctx context.Context, session *domain.GameSession) {
	if s.archiver == nil || session.Status == domain.StatusActive {
		return
	}
	if err := s.archiver.Archive(ctx, session); err != nil {
		s.log.Error("archive session", "session", session.ID, "err", err)
	}
}

package memory

import (
	"context"
	"encoding/json"
	"sync"

	"quizlive/internal/domain"
)

// SessionStore is the in-memory implementation of game.SessionStore. Join
// codes index active sessions only, so a finished game's PIN can be reused
// immediately. Reads hand out deep copies: a caller mutates its own
// snapshot and commits it with Update, exactly like the replace-on-write
// backends, so in-flight edits are never visible to concurrent readers.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.GameSession
	byCode   map[string]string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.GameSession),
		byCode:   make(map[string]string),
	}
}

func cloneSession(session *domain.GameSession) (*domain.GameSession, error) {
	data, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}
	out := &domain.GameSession{}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SessionStore) Create(_ context.Context, session *domain.GameSession) error {
	stored, err := cloneSession(session)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byCode[session.JoinCode]; taken {
		return domain.ErrJoinCodeTaken
	}
	s.sessions[stored.ID] = stored
	s.byCode[stored.JoinCode] = stored.ID
	return nil
}

func (s *SessionStore) Get(_ context.Context, id string) (*domain.GameSession, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return cloneSession(session)
}

func (s *SessionStore) GetByCode(_ context.Context, code string) (*domain.GameSession, error) {
	s.mu.RLock()
	id, ok := s.byCode[code]
	session := s.sessions[id]
	s.mu.RUnlock()
	if !ok || session == nil || session.Status != domain.StatusActive {
		return nil, domain.ErrSessionNotFound
	}
	return cloneSession(session)
}

func (s *SessionStore) Update(_ context.Context, session *domain.GameSession) error {
	stored, err := cloneSession(session)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[stored.ID]; !ok {
		return domain.ErrSessionNotFound
	}
	s.sessions[stored.ID] = stored
	// Terminal sessions release their join code for reuse.
	if stored.Status != domain.StatusActive && s.byCode[stored.JoinCode] == stored.ID {
		delete(s.byCode, stored.JoinCode)
	}
	return nil
}

func (s *SessionStore) ListActive(_ context.Context) ([]*domain.GameSession, error) {
	s.mu.RLock()
	live := make([]*domain.GameSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		if session.Status == domain.StatusActive {
			live = append(live, session)
		}
	}
	s.mu.RUnlock()

	out := make([]*domain.GameSession, 0, len(live))
	for _, session := range live {
		clone, err := cloneSession(session)
		if err != nil {
			return nil, err
		}
		out = append(out, clone)
	}
	return out, nil
}

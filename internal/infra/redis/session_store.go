package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"quizlive/internal/domain"
	"quizlive/internal/infra/memory"
)

// SessionStore decorates the in-memory store with Redis-backed join-code
// reservation and session liveness markers. Codes are claimed with SETNX so
// two instances can never hand out the same PIN; the in-process map keeps
// the existing hub/broadcast wiring working unchanged.
type SessionStore struct {
	client *redis.Client
	inner  *memory.SessionStore
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client: client,
		inner:  memory.NewSessionStore(),
		ttl:    ttl,
	}
}

func (s *SessionStore) Create(ctx context.Context, session *domain.GameSession) error {
	claimed, err := s.client.SetNX(ctx, s.codeKey(session.JoinCode), session.ID, s.ttl).Result()
	if err != nil {
		return err
	}
	if !claimed {
		return domain.ErrJoinCodeTaken
	}
	if err := s.inner.Create(ctx, session); err != nil {
		_ = s.client.Del(ctx, s.codeKey(session.JoinCode)).Err()
		return err
	}
	// best-effort liveness marker
	_ = s.client.Set(ctx, s.liveKey(session.ID), "1", s.ttl).Err()
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*domain.GameSession, error) {
	return s.inner.Get(ctx, id)
}

func (s *SessionStore) GetByCode(ctx context.Context, code string) (*domain.GameSession, error) {
	return s.inner.GetByCode(ctx, code)
}

func (s *SessionStore) Update(ctx context.Context, session *domain.GameSession) error {
	if err := s.inner.Update(ctx, session); err != nil {
		return err
	}
	if session.Status == domain.StatusActive {
		_ = s.client.Set(ctx, s.liveKey(session.ID), "1", s.ttl).Err()
	} else {
		// Terminal sessions free their PIN and liveness marker.
		_ = s.client.Del(ctx, s.codeKey(session.JoinCode), s.liveKey(session.ID)).Err()
	}
	return nil
}

func (s *SessionStore) ListActive(ctx context.Context) ([]*domain.GameSession, error) {
	return s.inner.ListActive(ctx)
}

func (s *SessionStore) codeKey(code string) string {
	return "game:code:" + code
}

func (s *SessionStore) liveKey(id string) string {
	return "game:session:" + id
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizlive/internal/domain"
)

// SessionArchive persists finished sessions as JSONB documents for
// post-game history. Each write replaces the whole session state, matching
// the engine's snapshot semantics.
type SessionArchive struct {
	pool *pgxpool.Pool
}

func NewSessionArchive(pool *pgxpool.Pool) *SessionArchive {
	return &SessionArchive{pool: pool}
}

func (a *SessionArchive) Archive(ctx context.Context, s *domain.GameSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = a.pool.Exec(ctx, `
		INSERT INTO game_sessions (id, status, data, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET status=EXCLUDED.status, data=EXCLUDED.data, updated_at=EXCLUDED.updated_at
	`, s.ID, string(s.Status), data, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("archive session: %w", err)
	}
	return nil
}

// Load reads an archived session back.
func (a *SessionArchive) Load(ctx context.Context, sessionID string) (*domain.GameSession, error) {
	var raw []byte
	err := a.pool.QueryRow(ctx, `SELECT data FROM game_sessions WHERE id=$1`, sessionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var s domain.GameSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &s, nil
}

// RemapParticipant rewrites a participant id throughout an archived
// session document in a single transaction (anonymous join later bound to
// an authenticated identity).
func (a *SessionArchive) RemapParticipant(ctx context.Context, sessionID, oldID, newID string) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var raw []byte
	err = tx.QueryRow(ctx, `SELECT data FROM game_sessions WHERE id=$1 FOR UPDATE`, sessionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	var s domain.GameSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("unmarshal session: %w", err)
	}
	if err := s.RemapParticipant(oldID, newID); err != nil {
		return err
	}
	data, err := json.Marshal(&s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE game_sessions SET data=$2 WHERE id=$1`, sessionID, data); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return tx.Commit(ctx)
}

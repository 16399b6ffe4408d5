package game

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"quizlive/internal/domain"
)

// Reaper periodically force-ends sessions that have been inactive past the
// idle window, so orphaned games (host gone for good) terminate
// deterministically. Sessions stuck on the podium are completed; any other
// idle phase is expired.
type Reaper struct {
	store      SessionStore
	service    *Service
	interval   time.Duration
	idleWindow time.Duration
	log        *slog.Logger
	now        func() time.Time
}

func NewReaper(store SessionStore, service *Service, interval, idleWindow time.Duration, log *slog.Logger) *Reaper {
	return &Reaper{
		store:      store,
		service:    service,
		interval:   interval,
		idleWindow: idleWindow,
		log:        log,
		now:        time.Now,
	}
}

// WithClock is test-only for deterministic sweeps.
func (r *Reaper) WithClock(now func() time.Time) *Reaper {
	r.now = now
	return r
}

// Run sweeps on a fixed interval until the context is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep scans active sessions once and reaps the idle ones. Lock contention
// is not an error: the contending host action is activity by definition.
func (r *Reaper) Sweep(ctx context.Context) {
	sessions, err := r.store.ListActive(ctx)
	if err != nil {
		r.log.Error("reaper list sessions", "err", err)
		return
	}
	idleSince := r.now().Add(-r.idleWindow)
	for _, s := range sessions {
		if s.UpdatedAt.After(idleSince) {
			continue
		}
		if err := r.service.ForceEnd(ctx, s.ID, idleSince); err != nil {
			if errors.Is(err, domain.ErrLockContention) || errors.Is(err, domain.ErrSessionNotFound) {
				continue
			}
			r.log.Error("reap session", "session", s.ID, "err", err)
		}
	}
}

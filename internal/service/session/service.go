package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wolffbe/real-time-agents/internal/logging"
	"github.com/wolffbe/real-time-agents/internal/model/session"
)

// Service is the session lifecycle surface used by the gateway handlers.
type Service struct {
	store Store
	log   *logging.Logger
	ttl   time.Duration
}

// NewService wraps a store. ttl <= 0 disables idle eviction.
func NewService(store Store, log *logging.Logger, ttl time.Duration) *Service {
	return &Service{store: store, log: log.Sub("session"), ttl: ttl}
}

// Start provisions a fresh session with zeroed counters and returns it.
func (s *Service) Start(ctx context.Context) (session.Session, error) {
	now := time.Now().UTC()
	sess := session.Session{
		ID:           uuid.NewString(),
		StartedAt:    now,
		LastActivity: now,
		PagesViewed:  []string{},
		Actions:      make(map[string]session.Action),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return session.Session{}, err
	}
	s.log.Debug().Str("session", sess.ID).Msg("session started")
	return sess, nil
}

// End removes the session and every action it owns.
func (s *Service) End(ctx context.Context, id string) error {
	if err := s.store.DeleteSession(ctx, id); err != nil {
		return err
	}
	s.log.Debug().Str("session", id).Msg("session ended")
	return nil
}

// Get returns a snapshot of the session.
func (s *Service) Get(ctx context.Context, id string) (session.Session, error) {
	return s.store.GetSession(ctx, id)
}

// RecordEvent ingests one analytics event. Late or duplicate events for
// unknown sessions are harmless, so failures are logged, never returned.
func (s *Service) RecordEvent(ctx context.Context, id string, ev session.UserEvent) {
	if err := s.store.RecordEvent(ctx, id, ev); err != nil {
		s.log.Warn().Err(err).Str("session", id).Msg("event ingestion failed")
	}
}

// Pending lists the session's unacknowledged actions in creation order.
func (s *Service) Pending(ctx context.Context, id string) ([]session.Action, error) {
	return s.store.ListPendingActions(ctx, id)
}

// RunJanitor evicts idle sessions every ttl/2 until ctx is canceled. It is a
// no-op when eviction is disabled.
func (s *Service) RunJanitor(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}

	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.store.DeleteIdle(ctx, time.Now().UTC().Add(-s.ttl))
			if err != nil {
				s.log.Warn().Err(err).Msg("idle sweep failed")
				continue
			}
			if n > 0 {
				s.log.Info().Int("evicted", n).Msg("idle sessions evicted")
			}
		}
	}
}

package session

import (
	"context"
	"sync"
	"time"

	"github.com/wolffbe/real-time-agents/internal/model/session"
)

// MemoryStore keeps all session state behind a single mutex. It is the
// default backing and the one tests run against.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*record
}

// record pairs a session with its action creation order so pending polls
// come back deterministic.
type record struct {
	sess  session.Session
	order []string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*record)}
}

func (m *MemoryStore) CreateSession(_ context.Context, s session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.Actions == nil {
		s.Actions = make(map[string]session.Action)
	}
	m.sessions[s.ID] = &record{sess: s}
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.sessions[id]
	if !ok {
		return session.Session{}, ErrSessionNotFound
	}
	return copySession(rec.sess), nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) RecordEvent(_ context.Context, id string, ev session.UserEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.sessions[id]
	if !ok {
		return nil
	}

	rec.sess.EventsCount++
	rec.sess.LastActivity = time.Now().UTC()
	if page := ev.Page(); page != "" {
		rec.sess.PagesViewed = append(rec.sess.PagesViewed, page)
	}
	return nil
}

func (m *MemoryStore) PutAction(_ context.Context, sessionID string, a session.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}

	rec.sess.Actions[a.ID] = a
	rec.order = append(rec.order, a.ID)
	at := a.CreatedAt
	rec.sess.LastAgentAction = &at
	return nil
}

func (m *MemoryStore) ListPendingActions(_ context.Context, sessionID string) ([]session.Action, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	pending := make([]session.Action, 0, len(rec.order))
	for _, id := range rec.order {
		if a, ok := rec.sess.Actions[id]; ok && a.Status == session.StatusPending {
			pending = append(pending, a)
		}
	}
	return pending, nil
}

func (m *MemoryStore) AckAction(_ context.Context, sessionID, actionID string, status session.ActionStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	a, ok := rec.sess.Actions[actionID]
	if !ok {
		return ErrActionNotFound
	}
	if a.Status != session.StatusPending {
		return ErrActionDone
	}

	a.Status = status
	a.ExecutedAt = &at
	rec.sess.Actions[actionID] = a
	return nil
}

func (m *MemoryStore) DeleteIdle(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, rec := range m.sessions {
		if rec.sess.LastActivity.Before(cutoff) {
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted, nil
}

func (m *MemoryStore) Close() error { return nil }

func copySession(s session.Session) session.Session {
	out := s
	out.PagesViewed = append([]string(nil), s.PagesViewed...)
	out.Actions = make(map[string]session.Action, len(s.Actions))
	for id, a := range s.Actions {
		out.Actions[id] = a
	}
	return out
}

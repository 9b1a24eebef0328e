// Package history stores the capped per-session conversation window the
// agent replays into every model call. Only user and assistant turns are
// stored; the system message is rebuilt fresh for each request.
package history

import (
	"context"
	"sync"
)

// Roles of a stored turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one role-tagged message.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Store holds recent conversation turns per session, bounded to a fixed
// window so memory and prompt size stay capped.
type Store interface {
	// Append adds turns and evicts the oldest beyond the cap.
	Append(ctx context.Context, sessionID string, turns ...Turn) error
	// Load returns the retained window, oldest first.
	Load(ctx context.Context, sessionID string) ([]Turn, error)
	// Reset drops the session's conversation entirely.
	Reset(ctx context.Context, sessionID string) error
}

// MemoryStore is the default volatile implementation.
type MemoryStore struct {
	mu    sync.RWMutex
	limit int
	turns map[string][]Turn
}

// NewMemoryStore creates a store retaining at most limit turns per session.
func NewMemoryStore(limit int) *MemoryStore {
	return &MemoryStore{limit: limit, turns: make(map[string][]Turn)}
}

func (m *MemoryStore) Append(_ context.Context, sessionID string, turns ...Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	window := append(m.turns[sessionID], turns...)
	if len(window) > m.limit {
		window = window[len(window)-m.limit:]
	}
	m.turns[sessionID] = window
	return nil
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) ([]Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Turn(nil), m.turns[sessionID]...), nil
}

func (m *MemoryStore) Reset(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.turns, sessionID)
	return nil
}

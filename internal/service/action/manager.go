// Package action manages agent command records from creation through
// acknowledgment. Acknowledgment is strictly one-way: once an action leaves
// pending it never changes again.
package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolffbe/real-time-agents/internal/logging"
	"github.com/wolffbe/real-time-agents/internal/model/session"
	sessionsvc "github.com/wolffbe/real-time-agents/internal/service/session"
)

// ErrInvalidStatus rejects acknowledgment statuses outside executed/failed.
var ErrInvalidStatus = errors.New("invalid acknowledgment status")

// Manager creates and transitions actions against the session store.
type Manager struct {
	store sessionsvc.Store
	log   *logging.Logger
}

// NewManager returns a manager bound to the given store.
func NewManager(store sessionsvc.Store, log *logging.Logger) *Manager {
	return &Manager{store: store, log: log.Sub("action")}
}

// Create queues a pending action for the session and returns it. Fails with
// session.ErrSessionNotFound when the session does not exist.
func (m *Manager) Create(ctx context.Context, sessionID, actionType string, payload map[string]any) (session.Action, error) {
	if payload == nil {
		payload = map[string]any{}
	}

	a := session.Action{
		ID:        uuid.NewString(),
		Type:      actionType,
		Payload:   payload,
		Status:    session.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.PutAction(ctx, sessionID, a); err != nil {
		return session.Action{}, err
	}

	m.log.Info().Str("session", sessionID).Str("action", a.ID).Str("type", actionType).Msg("action queued")
	return a, nil
}

// Acknowledge records the browser's execution report. Repeat calls fail with
// session.ErrActionDone so a re-ordered duplicate can never rewrite the
// first outcome.
func (m *Manager) Acknowledge(ctx context.Context, sessionID, actionID string, status session.ActionStatus) error {
	if !session.ValidAck(status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if err := m.store.AckAction(ctx, sessionID, actionID, status, time.Now().UTC()); err != nil {
		return err
	}

	m.log.Info().Str("session", sessionID).Str("action", actionID).Str("status", string(status)).Msg("action acknowledged")
	return nil
}

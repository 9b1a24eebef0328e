// Package session owns browser-session state: metadata, viewed pages and
// the per-session action queue. All mutation goes through a Store so the
// backing can be swapped (memory for dev/tests, SQLite for durability).
package session

import (
	"context"
	"errors"
	"time"

	"github.com/wolffbe/real-time-agents/internal/model/session"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrActionNotFound  = errors.New("action not found")
	ErrActionDone      = errors.New("action already acknowledged")
)

// Store persists sessions and their actions. Implementations must make
// AckAction a compare-and-set on pending status and DeleteSession remove the
// session and its actions atomically.
type Store interface {
	CreateSession(ctx context.Context, s session.Session) error
	GetSession(ctx context.Context, id string) (session.Session, error)
	DeleteSession(ctx context.Context, id string) error

	// RecordEvent ingests one event: bumps the counter, refreshes activity
	// and appends page views. Unknown session ids are a silent no-op.
	RecordEvent(ctx context.Context, id string, ev session.UserEvent) error

	PutAction(ctx context.Context, sessionID string, a session.Action) error
	ListPendingActions(ctx context.Context, sessionID string) ([]session.Action, error)
	AckAction(ctx context.Context, sessionID, actionID string, status session.ActionStatus, at time.Time) error

	// DeleteIdle evicts sessions whose last activity predates cutoff.
	DeleteIdle(ctx context.Context, cutoff time.Time) (int, error)

	Close() error
}

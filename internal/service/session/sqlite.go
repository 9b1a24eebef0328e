package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/wolffbe/real-time-agents/internal/model/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id                TEXT PRIMARY KEY,
	started_at        TEXT NOT NULL,
	last_activity     TEXT NOT NULL,
	events_count      INTEGER NOT NULL DEFAULT 0,
	pages_viewed      TEXT NOT NULL DEFAULT '[]',
	last_agent_action TEXT
);
CREATE TABLE IF NOT EXISTS actions (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	type        TEXT NOT NULL,
	payload     TEXT NOT NULL DEFAULT '{}',
	status      TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	executed_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_actions_session ON actions(session_id, status);
`

// SQLiteStore implements Store on a local SQLite file, so sessions survive a
// gateway restart. Use ":memory:" for throwaway databases in tests.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateSession(ctx context.Context, sess session.Session) error {
	pages, err := json.Marshal(orEmpty(sess.PagesViewed))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, last_activity, events_count, pages_viewed) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, formatTime(sess.StartedAt), formatTime(sess.LastActivity), sess.EventsCount, string(pages),
	)
	return err
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (session.Session, error) {
	var (
		sess       session.Session
		started    string
		activity   string
		pages      string
		lastAction sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, last_activity, events_count, pages_viewed, last_agent_action FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &started, &activity, &sess.EventsCount, &pages, &lastAction)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return session.Session{}, err
	}

	sess.StartedAt = parseTime(started)
	sess.LastActivity = parseTime(activity)
	if lastAction.Valid {
		at := parseTime(lastAction.String)
		sess.LastAgentAction = &at
	}
	if err := json.Unmarshal([]byte(pages), &sess.PagesViewed); err != nil {
		return session.Session{}, fmt.Errorf("decoding pages_viewed: %w", err)
	}

	sess.Actions = make(map[string]session.Action)
	actions, err := s.queryActions(ctx, id, false)
	if err != nil {
		return session.Session{}, err
	}
	for _, a := range actions {
		sess.Actions[a.ID] = a
	}
	return sess, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *SQLiteStore) RecordEvent(ctx context.Context, id string, ev session.UserEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var pages string
	err = tx.QueryRowContext(ctx, `SELECT pages_viewed FROM sessions WHERE id = ?`, id).Scan(&pages)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	if page := ev.Page(); page != "" {
		var viewed []string
		if err := json.Unmarshal([]byte(pages), &viewed); err != nil {
			return fmt.Errorf("decoding pages_viewed: %w", err)
		}
		updated, err := json.Marshal(append(viewed, page))
		if err != nil {
			return err
		}
		pages = string(updated)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET events_count = events_count + 1, last_activity = ?, pages_viewed = ? WHERE id = ?`,
		formatTime(time.Now().UTC()), pages, id,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) PutAction(ctx context.Context, sessionID string, a session.Action) error {
	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET last_agent_action = ? WHERE id = ?`,
		formatTime(a.CreatedAt), sessionID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO actions (id, session_id, type, payload, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, sessionID, a.Type, string(payload), string(a.Status), formatTime(a.CreatedAt),
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListPendingActions(ctx context.Context, sessionID string) ([]session.Action, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE id = ?`, sessionID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrSessionNotFound
	}
	return s.queryActions(ctx, sessionID, true)
}

func (s *SQLiteStore) AckAction(ctx context.Context, sessionID, actionID string, status session.ActionStatus, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE actions SET status = ?, executed_at = ? WHERE id = ? AND session_id = ? AND status = ?`,
		string(status), formatTime(at), actionID, sessionID, string(session.StatusPending),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	// The CAS missed: work out which error to report.
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE id = ?`, sessionID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrSessionNotFound
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM actions WHERE id = ? AND session_id = ?`, actionID, sessionID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrActionNotFound
	}
	return ErrActionDone
}

func (s *SQLiteStore) DeleteIdle(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE last_activity < ?`, formatTime(cutoff))
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) queryActions(ctx context.Context, sessionID string, pendingOnly bool) ([]session.Action, error) {
	query := `SELECT id, type, payload, status, created_at, executed_at FROM actions WHERE session_id = ?`
	args := []any{sessionID}
	if pendingOnly {
		query += ` AND status = ?`
		args = append(args, string(session.StatusPending))
	}
	query += ` ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	actions := make([]session.Action, 0, 4)
	for rows.Next() {
		var (
			a          session.Action
			payload    string
			status     string
			created    string
			executedAt sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.Type, &payload, &status, &created, &executedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &a.Payload); err != nil {
			return nil, fmt.Errorf("decoding action payload: %w", err)
		}
		a.Status = session.ActionStatus(status)
		a.CreatedAt = parseTime(created)
		if executedAt.Valid {
			at := parseTime(executedAt.String)
			a.ExecutedAt = &at
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func orEmpty(pages []string) []string {
	if pages == nil {
		return []string{}
	}
	return pages
}

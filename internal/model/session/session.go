// Package session defines the browser-session domain types shared by the
// gateway store and the agent relay.
package session

import "time"

// ActionStatus tracks an agent command through its one-way lifecycle.
type ActionStatus string

const (
	StatusPending  ActionStatus = "pending"
	StatusExecuted ActionStatus = "executed"
	StatusFailed   ActionStatus = "failed"
)

// Terminal reports whether the status ends the action lifecycle.
func (s ActionStatus) Terminal() bool {
	return s == StatusExecuted || s == StatusFailed
}

// ValidAck reports whether s is an acceptable acknowledgment status.
func ValidAck(s ActionStatus) bool {
	return s == StatusExecuted || s == StatusFailed
}

// Action is a UI command queued for the browser to execute.
type Action struct {
	ID         string         `json:"action_id"`
	Type       string         `json:"type"`
	Payload    map[string]any `json:"payload"`
	Status     ActionStatus   `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	ExecutedAt *time.Time     `json:"executed_at,omitempty"`
}

// Session aggregates everything the gateway tracks for one browser visit.
// Actions is keyed by action id; creation order is preserved separately by
// the store so pending polls stay deterministic.
type Session struct {
	ID              string            `json:"session_id"`
	StartedAt       time.Time         `json:"started_at"`
	LastActivity    time.Time         `json:"last_activity"`
	EventsCount     int               `json:"events_count"`
	PagesViewed     []string          `json:"pages_viewed"`
	Actions         map[string]Action `json:"actions"`
	LastAgentAction *time.Time        `json:"last_agent_action"`
}

// UserEvent is an ingested analytics event correlated via X-Session-ID.
type UserEvent struct {
	Event      string         `json:"event"`
	Properties map[string]any `json:"properties"`
}

// Page returns the page identifier for page_view events, or "".
func (e UserEvent) Page() string {
	if e.Event != "page_view" {
		return ""
	}
	page, _ := e.Properties["page"].(string)
	return page
}

// ActivityEvent is the trimmed-down event shape the browser attaches to chat
// requests so the model sees recent activity.
type ActivityEvent struct {
	Time   string `json:"time,omitempty"`
	Event  string `json:"event,omitempty"`
	Button string `json:"button,omitempty"`
	Error  string `json:"error,omitempty"`
}

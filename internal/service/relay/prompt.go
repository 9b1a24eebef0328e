package relay

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	sessionmodel "github.com/wolffbe/real-time-agents/internal/model/session"
	"github.com/wolffbe/real-time-agents/internal/service/history"
)

const plainSystemPrompt = `You are a helpful support assistant.
Keep responses concise and helpful.

Current customer ID: %d

User's recent activity:
%s`

const toolSystemPrompt = `You are a helpful support assistant with the ability to perform actions on the user's webpage.
Keep responses concise and helpful.

You have access to a click_button tool. When the user asks you to send a test event, click a button, or perform any UI action, use the click_button tool with the appropriate button text.

Available buttons on the page:
- "Send Test Event" - sends a test event

Current customer ID: %d

User's recent activity:
%s`

// buildMessages assembles system prompt + capped history + the new user
// message. The system message is regenerated per request, never stored.
func (r *Relay) buildMessages(ctx context.Context, req Request, withTools bool) ([]*schema.Message, error) {
	window, err := r.history.Load(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}

	template := plainSystemPrompt
	if withTools {
		template = toolSystemPrompt
	}
	system := fmt.Sprintf(template, req.CustomerID, renderActivity(req.UserEvents, r.eventsLimit))

	messages := make([]*schema.Message, 0, len(window)+2)
	messages = append(messages, schema.SystemMessage(system))
	for _, turn := range window {
		switch turn.Role {
		case history.RoleUser:
			messages = append(messages, schema.UserMessage(turn.Content))
		case history.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return append(messages, schema.UserMessage(req.Message)), nil
}

// renderActivity turns the most recent user events into the context block
// the model sees.
func renderActivity(events []sessionmodel.ActivityEvent, limit int) string {
	if len(events) == 0 {
		return "No recent activity"
	}
	if len(events) > limit {
		events = events[len(events)-limit:]
	}

	lines := make([]string, 0, len(events))
	for _, e := range events {
		line := fmt.Sprintf("[%s] %s", e.Time, e.Event)
		if e.Button != "" {
			line += ": " + e.Button
		}
		if e.Error != "" {
			line += ": " + e.Error
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

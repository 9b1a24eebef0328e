// Package ai normalizes language-model output into a uniform event sequence
// the relay can consume without knowing the provider's response shape.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/wolffbe/real-time-agents/internal/logging"
)

// Event is one normalized model output item: either a TextChunk or a
// ToolInvocation, never both.
type Event interface {
	event()
}

// TextChunk carries a piece of model-written text.
type TextChunk struct {
	Text string
}

// ToolInvocation is one structured tool call with decoded arguments.
type ToolInvocation struct {
	Name string
	Args map[string]any
}

func (TextChunk) event()      {}
func (ToolInvocation) event() {}

// Adapter wraps a chat model with the declared tool set bound. It does not
// retry: an upstream failure surfaces as a single terminal stream error.
type Adapter struct {
	chatModel model.ChatModel
	tools     *Registry
	log       *logging.Logger
}

// NewAdapter binds the registry's tools to the model.
func NewAdapter(chatModel model.ChatModel, tools *Registry, log *logging.Logger) (*Adapter, error) {
	if infos := tools.Infos(); len(infos) > 0 {
		if err := chatModel.BindTools(infos); err != nil {
			return nil, fmt.Errorf("binding tools: %w", err)
		}
	}
	return &Adapter{chatModel: chatModel, tools: tools, log: log.Sub("ai")}, nil
}

// Complete runs one non-streaming completion and returns the model text.
func (a *Adapter) Complete(ctx context.Context, messages []*schema.Message) (string, error) {
	resp, err := a.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("model generate failed: %w", err)
	}
	return messageText(resp), nil
}

// Stream runs one turn and returns the normalized event stream. The turn is
// classified first with a single non-streaming call: a tool decision yields
// its complete ToolInvocations and nothing else, while a plain answer opens
// a second, streaming call whose text passes through chunk by chunk. Tool
// invocations therefore never mix with live text, even when the model
// narrates before calling.
func (a *Adapter) Stream(ctx context.Context, messages []*schema.Message) (*Stream, error) {
	resp, err := a.chatModel.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("model generate failed: %w", err)
	}
	if resp != nil && len(resp.ToolCalls) > 0 {
		return &Stream{pending: a.invocationEvents(resp), tools: a.tools, log: a.log}, nil
	}

	reader, err := a.chatModel.Stream(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("model stream failed: %w", err)
	}
	return &Stream{inner: reader, tools: a.tools, log: a.log}, nil
}

// Stream yields normalized Events: either the pre-assembled ToolInvocations
// of a tool turn, or the live text chunks of a streaming answer.
type Stream struct {
	inner *schema.StreamReader[*schema.Message]
	tools *Registry
	log   *logging.Logger

	pending []Event
}

// Recv returns the next event, or io.EOF when the turn is complete.
func (s *Stream) Recv() (Event, error) {
	for {
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			return ev, nil
		}
		if s.inner == nil {
			return nil, io.EOF
		}

		msg, err := s.inner.Recv()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		if msg == nil {
			continue
		}

		if len(msg.ToolCalls) > 0 {
			// The classifying call already decided this turn has no tool
			// work; a stray delta here carries nothing actionable.
			continue
		}

		if text := messageText(msg); text != "" {
			return TextChunk{Text: text}, nil
		}
	}
}

// Close releases the upstream model stream.
func (s *Stream) Close() {
	if s.inner != nil {
		s.inner.Close()
	}
}

// invocationEvents decodes the tool calls of a complete response. Unknown
// tool names and undecodable arguments are skipped.
func (a *Adapter) invocationEvents(full *schema.Message) []Event {
	events := make([]Event, 0, len(full.ToolCalls))
	for _, call := range full.ToolCalls {
		name := call.Function.Name
		if _, ok := a.tools.Lookup(name); !ok {
			a.log.Warn().Str("tool", name).Msg("ignoring unknown tool call")
			continue
		}

		args := map[string]any{}
		if raw := call.Function.Arguments; raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				a.log.Warn().Err(err).Str("tool", name).Msg("ignoring tool call with malformed arguments")
				continue
			}
		}
		events = append(events, ToolInvocation{Name: name, Args: args})
	}
	return events
}

// messageText extracts text from either a plain content string or the
// text-typed blocks of multi-part content.
func messageText(msg *schema.Message) string {
	if msg.Content != "" {
		return msg.Content
	}
	var text string
	for _, part := range msg.MultiContent {
		if part.Type == schema.ChatMessagePartTypeText {
			text += part.Text
		}
	}
	return text
}

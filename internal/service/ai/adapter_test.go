package ai

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/wolffbe/real-time-agents/internal/logging"
)

type stubChatModel struct {
	generateMsg *schema.Message
	generateErr error
	streamMsgs  []*schema.Message
	streamErr   error
	bound       []*schema.ToolInfo
	streamCalls int
}

func (m *stubChatModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	return m.generateMsg, m.generateErr
}

func (m *stubChatModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.streamCalls++
	if m.streamErr != nil {
		return nil, m.streamErr
	}
	return schema.StreamReaderFromArray(m.streamMsgs), nil
}

func (m *stubChatModel) BindTools(tools []*schema.ToolInfo) error {
	m.bound = tools
	return nil
}

func clickButtonCall(args string) schema.ToolCall {
	return schema.ToolCall{
		ID:       "call-1",
		Function: schema.FunctionCall{Name: "click_button", Arguments: args},
	}
}

func newTestAdapter(t *testing.T, stub *stubChatModel) *Adapter {
	t.Helper()
	adapter, err := NewAdapter(stub, NewRegistry(ClickButton()), logging.Nop())
	if err != nil {
		t.Fatalf("NewAdapter err: %v", err)
	}
	return adapter
}

func collectEvents(t *testing.T, s *Stream) []Event {
	t.Helper()
	defer s.Close()

	var events []Event
	for {
		ev, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return events
		}
		if err != nil {
			t.Fatalf("Recv err: %v", err)
		}
		events = append(events, ev)
	}
}

func TestAdapterBindsDeclaredTools(t *testing.T) {
	stub := &stubChatModel{}
	newTestAdapter(t, stub)

	if len(stub.bound) != 1 || stub.bound[0].Name != "click_button" {
		t.Fatalf("expected click_button bound, got %+v", stub.bound)
	}
}

func TestStreamForwardsTextChunks(t *testing.T) {
	stub := &stubChatModel{
		generateMsg: &schema.Message{Role: schema.Assistant, Content: "Hello"},
		streamMsgs: []*schema.Message{
			{Role: schema.Assistant, Content: "Hel"},
			{Role: schema.Assistant, Content: "lo"},
		},
	}
	adapter := newTestAdapter(t, stub)

	s, err := adapter.Stream(context.Background(), nil)
	if err != nil {
		t.Fatalf("Stream err: %v", err)
	}
	events := collectEvents(t, s)

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	first, ok := events[0].(TextChunk)
	if !ok || first.Text != "Hel" {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
}

func TestStreamSurfacesTextBlocks(t *testing.T) {
	stub := &stubChatModel{
		generateMsg: &schema.Message{Role: schema.Assistant, Content: "from a block"},
		streamMsgs: []*schema.Message{
			{Role: schema.Assistant, MultiContent: []schema.ChatMessagePart{
				{Type: schema.ChatMessagePartTypeText, Text: "from a block"},
			}},
		},
	}
	adapter := newTestAdapter(t, stub)

	s, err := adapter.Stream(context.Background(), nil)
	if err != nil {
		t.Fatalf("Stream err: %v", err)
	}
	events := collectEvents(t, s)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if chunk, ok := events[0].(TextChunk); !ok || chunk.Text != "from a block" {
		t.Fatalf("unexpected event: %+v", events[0])
	}
}

func TestStreamNormalizesToolCalls(t *testing.T) {
	stub := &stubChatModel{generateMsg: &schema.Message{
		Role:      schema.Assistant,
		ToolCalls: []schema.ToolCall{clickButtonCall(`{"button_text":"Send Test Event"}`)},
	}}
	adapter := newTestAdapter(t, stub)

	s, err := adapter.Stream(context.Background(), nil)
	if err != nil {
		t.Fatalf("Stream err: %v", err)
	}
	events := collectEvents(t, s)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	inv, ok := events[0].(ToolInvocation)
	if !ok {
		t.Fatalf("expected ToolInvocation, got %+v", events[0])
	}
	if inv.Name != "click_button" {
		t.Fatalf("unexpected tool name: %s", inv.Name)
	}
	if inv.Args["button_text"] != "Send Test Event" {
		t.Fatalf("unexpected args: %+v", inv.Args)
	}
	if stub.streamCalls != 0 {
		t.Fatalf("tool turn must not open a streaming call, got %d", stub.streamCalls)
	}
}

func TestStreamNarratedToolTurnYieldsNoText(t *testing.T) {
	stub := &stubChatModel{generateMsg: &schema.Message{
		Role:      schema.Assistant,
		Content:   "Let me click that for you...",
		ToolCalls: []schema.ToolCall{clickButtonCall(`{"button_text":"Send Test Event"}`)},
	}}
	adapter := newTestAdapter(t, stub)

	s, err := adapter.Stream(context.Background(), nil)
	if err != nil {
		t.Fatalf("Stream err: %v", err)
	}
	events := collectEvents(t, s)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %+v", events)
	}
	if _, ok := events[0].(TextChunk); ok {
		t.Fatalf("tool turn emitted a text chunk: %+v", events[0])
	}
}

func TestStreamTextLegIgnoresStrayToolDeltas(t *testing.T) {
	stub := &stubChatModel{
		generateMsg: &schema.Message{Role: schema.Assistant, Content: "ab"},
		streamMsgs: []*schema.Message{
			{Role: schema.Assistant, Content: "a"},
			{Role: schema.Assistant, ToolCalls: []schema.ToolCall{clickButtonCall(`{}`)}},
			{Role: schema.Assistant, Content: "b"},
		},
	}
	adapter := newTestAdapter(t, stub)

	s, err := adapter.Stream(context.Background(), nil)
	if err != nil {
		t.Fatalf("Stream err: %v", err)
	}
	events := collectEvents(t, s)

	if len(events) != 2 {
		t.Fatalf("expected 2 text events, got %+v", events)
	}
	for _, ev := range events {
		if _, ok := ev.(ToolInvocation); ok {
			t.Fatalf("text turn surfaced a tool invocation: %+v", ev)
		}
	}
}

func TestStreamSkipsUnknownTool(t *testing.T) {
	stub := &stubChatModel{generateMsg: &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			ID:       "call-1",
			Function: schema.FunctionCall{Name: "open_modal", Arguments: `{}`},
		}},
	}}
	adapter := newTestAdapter(t, stub)

	s, err := adapter.Stream(context.Background(), nil)
	if err != nil {
		t.Fatalf("Stream err: %v", err)
	}
	if events := collectEvents(t, s); len(events) != 0 {
		t.Fatalf("expected unknown tool to be dropped, got %+v", events)
	}
}

func TestStreamSkipsMalformedArguments(t *testing.T) {
	stub := &stubChatModel{generateMsg: &schema.Message{
		Role:      schema.Assistant,
		ToolCalls: []schema.ToolCall{clickButtonCall(`not-json`)},
	}}
	adapter := newTestAdapter(t, stub)

	s, err := adapter.Stream(context.Background(), nil)
	if err != nil {
		t.Fatalf("Stream err: %v", err)
	}
	if events := collectEvents(t, s); len(events) != 0 {
		t.Fatalf("expected malformed call to be dropped, got %+v", events)
	}
}

func TestStreamClassifyFailure(t *testing.T) {
	stub := &stubChatModel{generateErr: errors.New("model down")}
	adapter := newTestAdapter(t, stub)

	if _, err := adapter.Stream(context.Background(), nil); err == nil {
		t.Fatal("expected error from failed classifying call")
	}
}

func TestStreamTextLegFailure(t *testing.T) {
	stub := &stubChatModel{
		generateMsg: &schema.Message{Role: schema.Assistant, Content: "hi"},
		streamErr:   errors.New("model down"),
	}
	adapter := newTestAdapter(t, stub)

	if _, err := adapter.Stream(context.Background(), nil); err == nil {
		t.Fatal("expected error from failed streaming call")
	}
}

func TestComplete(t *testing.T) {
	stub := &stubChatModel{generateMsg: &schema.Message{Role: schema.Assistant, Content: "hi there"}}
	adapter := newTestAdapter(t, stub)

	text, err := adapter.Complete(context.Background(), nil)
	if err != nil {
		t.Fatalf("Complete err: %v", err)
	}
	if text != "hi there" {
		t.Fatalf("unexpected completion: %q", text)
	}
}

func TestClickButtonBuild(t *testing.T) {
	tool := ClickButton()

	cmd, err := tool.Build(map[string]any{"button_text": "Send Test Event"})
	if err != nil {
		t.Fatalf("Build err: %v", err)
	}
	if cmd.Type != "click_button" {
		t.Fatalf("unexpected command type: %s", cmd.Type)
	}
	if cmd.Payload["button_text"] != "Send Test Event" {
		t.Fatalf("unexpected payload: %+v", cmd.Payload)
	}
	want := `Done! I've clicked the "Send Test Event" button for you.`
	if cmd.Confirmation != want {
		t.Fatalf("unexpected confirmation: %q", cmd.Confirmation)
	}

	if _, err := tool.Build(map[string]any{}); err == nil {
		t.Fatal("expected error for missing button_text")
	}
}

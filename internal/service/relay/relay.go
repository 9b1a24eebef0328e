// Package relay drives one chat turn end to end: it issues the model call,
// classifies the normalized event sequence into text streaming or action
// dispatch, triggers the side effects and re-emits client-facing frames.
//
// Turns for the same session are not serialized against each other; the
// stores are safe under concurrency but two simultaneous turns may
// interleave their history appends. A session has a single logical client,
// so this is accepted rather than locked away.
package relay

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/wolffbe/real-time-agents/internal/logging"
	sessionmodel "github.com/wolffbe/real-time-agents/internal/model/session"
	"github.com/wolffbe/real-time-agents/internal/model/stream"
	"github.com/wolffbe/real-time-agents/internal/service/ai"
	"github.com/wolffbe/real-time-agents/internal/service/history"
	"github.com/wolffbe/real-time-agents/internal/service/trace"
)

// Request carries one inbound chat turn.
type Request struct {
	SessionID  string
	Message    string
	CustomerID int
	UserEvents []sessionmodel.ActivityEvent
	WebhookURL string
}

// EventStream is the normalized model output consumed by the relay.
type EventStream interface {
	Recv() (ai.Event, error)
	Close()
}

// Model is the narrow slice of the model layer the relay depends on.
type Model interface {
	Complete(ctx context.Context, messages []*schema.Message) (string, error)
	Stream(ctx context.Context, messages []*schema.Message) (EventStream, error)
}

// WrapAdapter adapts *ai.Adapter to the Model interface.
func WrapAdapter(a *ai.Adapter) Model {
	return adapterModel{a}
}

type adapterModel struct {
	adapter *ai.Adapter
}

func (m adapterModel) Complete(ctx context.Context, messages []*schema.Message) (string, error) {
	return m.adapter.Complete(ctx, messages)
}

func (m adapterModel) Stream(ctx context.Context, messages []*schema.Message) (EventStream, error) {
	s, err := m.adapter.Stream(ctx, messages)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Relay wires the model, the tool registry, conversation history, webhook
// delivery and the tracing sink into the turn state machine.
type Relay struct {
	model       Model
	tools       *ai.Registry
	history     history.Store
	webhook     *WebhookClient
	sink        trace.Sink
	log         *logging.Logger
	modelName   string
	eventsLimit int
}

// New assembles a relay. sink may be trace.NopSink{} but not nil.
func New(model Model, tools *ai.Registry, hist history.Store, webhook *WebhookClient, sink trace.Sink, log *logging.Logger, modelName string, eventsLimit int) *Relay {
	return &Relay{
		model:       model,
		tools:       tools,
		history:     hist,
		webhook:     webhook,
		sink:        sink,
		log:         log.Sub("relay"),
		modelName:   modelName,
		eventsLimit: eventsLimit,
	}
}

// StreamTurn runs one streaming chat turn, pushing frames through emit. The
// emitted sequence always ends with exactly one terminal frame: Done on
// success, Error otherwise. An emit failure means the client went away; the
// turn stops immediately and appends nothing to history.
func (r *Relay) StreamTurn(ctx context.Context, req Request, emit func(stream.Frame) error) {
	messages, err := r.buildMessages(ctx, req, true)
	if err != nil {
		r.fail(emit, req, err)
		return
	}

	events, err := r.model.Stream(ctx, messages)
	if err != nil {
		r.fail(emit, req, err)
		return
	}
	defer events.Close()

	var (
		text        strings.Builder
		invocations []ai.ToolInvocation
	)
	for {
		ev, recvErr := events.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			r.fail(emit, req, recvErr)
			return
		}

		switch ev := ev.(type) {
		case ai.TextChunk:
			text.WriteString(ev.Text)
			if err := emit(stream.Chunk{Text: ev.Text}); err != nil {
				return
			}
		case ai.ToolInvocation:
			invocations = append(invocations, ev)
		}
	}

	reply := text.String()
	if len(invocations) > 0 {
		// Action-dispatch mode: model text, if any, is replaced by the
		// synthesized confirmation.
		reply, err = r.dispatch(ctx, req, invocations, emit)
		if err != nil {
			return
		}
	}

	if err := r.finalize(ctx, req, reply, true); err != nil {
		r.fail(emit, req, err)
		return
	}
	_ = emit(stream.Done{SessionID: req.SessionID})
}

// CompleteTurn runs one non-streaming chat turn and returns the reply text.
func (r *Relay) CompleteTurn(ctx context.Context, req Request) (string, error) {
	messages, err := r.buildMessages(ctx, req, false)
	if err != nil {
		return "", err
	}

	reply, err := r.model.Complete(ctx, messages)
	if err != nil {
		return "", err
	}

	if err := r.finalize(ctx, req, reply, false); err != nil {
		return "", err
	}
	return reply, nil
}

// Reset clears the session's conversation history only.
func (r *Relay) Reset(ctx context.Context, sessionID string) error {
	return r.history.Reset(ctx, sessionID)
}

// dispatch processes tool invocations in order: build the command, deliver
// it to the webhook best-effort, emit the action frame. One confirmation
// chunk is synthesized for the first dispatched command only; multi-action
// turns confirm just one. Returns the confirmation as the assistant reply
// for history.
func (r *Relay) dispatch(ctx context.Context, req Request, invocations []ai.ToolInvocation, emit func(stream.Frame) error) (string, error) {
	var confirmation string
	for _, inv := range invocations {
		tool, ok := r.tools.Lookup(inv.Name)
		if !ok {
			r.log.Warn().Str("tool", inv.Name).Msg("skipping unregistered tool invocation")
			continue
		}

		cmd, err := tool.Build(inv.Args)
		if err != nil {
			r.log.Warn().Err(err).Str("tool", inv.Name).Msg("skipping invocation with unusable arguments")
			continue
		}

		r.webhook.Deliver(ctx, req.WebhookURL, req.SessionID, cmd)

		if err := emit(stream.Action{Type: cmd.Type, Payload: cmd.Payload}); err != nil {
			return "", err
		}
		if confirmation == "" {
			confirmation = cmd.Confirmation
		}
	}

	if confirmation != "" {
		if err := emit(stream.Chunk{Text: confirmation}); err != nil {
			return "", err
		}
	}
	return confirmation, nil
}

// finalize appends the turn to history and reports it to the tracing sink.
// The sink call is fire-and-forget; a history failure is a turn failure.
func (r *Relay) finalize(ctx context.Context, req Request, reply string, streamed bool) error {
	if err := r.history.Append(ctx, req.SessionID,
		history.Turn{Role: history.RoleUser, Content: req.Message},
		history.Turn{Role: history.RoleAssistant, Content: reply},
	); err != nil {
		return err
	}

	go r.sink.RecordTurn(context.WithoutCancel(ctx), trace.Turn{
		SessionID:      req.SessionID,
		CustomerID:     req.CustomerID,
		UserMessage:    req.Message,
		AssistantReply: reply,
		Model:          r.modelName,
		Streamed:       streamed,
	})
	return nil
}

func (r *Relay) fail(emit func(stream.Frame) error, req Request, err error) {
	r.log.Error().Err(err).Str("session", req.SessionID).Msg("chat turn failed")
	_ = emit(stream.Error{Message: err.Error()})
}

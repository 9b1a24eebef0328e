// Package trace reports completed chat turns to an observability backend.
// Reporting is a best-effort side effect: callers discard the outcome and a
// broken sink must never affect a chat turn.
package trace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Turn is the record of one completed chat exchange.
type Turn struct {
	SessionID      string
	CustomerID     int
	UserMessage    string
	AssistantReply string
	Model          string
	Streamed       bool
}

// Sink consumes turn records.
type Sink interface {
	RecordTurn(ctx context.Context, t Turn)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordTurn(context.Context, Turn) {}

// OTelSink emits one "chat" span per turn with an "llm-response" child,
// mirroring the span layout the dashboards expect.
type OTelSink struct {
	tracer oteltrace.Tracer
}

// NewOTelSink uses the globally configured tracer provider.
func NewOTelSink() *OTelSink {
	return &OTelSink{tracer: otel.Tracer("real-time-agents/agent")}
}

func (s *OTelSink) RecordTurn(ctx context.Context, t Turn) {
	ctx, span := s.tracer.Start(ctx, "chat",
		oteltrace.WithSpanKind(oteltrace.SpanKindServer),
		oteltrace.WithAttributes(
			attribute.String("session.id", t.SessionID),
			attribute.Int("customer.id", t.CustomerID),
			attribute.Bool("chat.streamed", t.Streamed),
			attribute.String("chat.input", t.UserMessage),
		),
	)
	defer span.End()

	_, gen := s.tracer.Start(ctx, "llm-response",
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(
			attribute.String("llm.model", t.Model),
			attribute.Int("llm.output_chars", len(t.AssistantReply)),
		),
	)
	gen.End()
}

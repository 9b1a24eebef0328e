package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/wolffbe/real-time-agents/internal/logging"
	sessionmodel "github.com/wolffbe/real-time-agents/internal/model/session"
	session "github.com/wolffbe/real-time-agents/internal/service/session"
)

func newService() *session.Service {
	return session.NewService(session.NewMemoryStore(), logging.Nop(), 0)
}

func TestServiceStartAndGet(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	sess, err := svc.Start(ctx)
	if err != nil {
		t.Fatalf("Start err: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("expected a generated session id")
	}

	got, err := svc.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if got.ID != sess.ID {
		t.Fatalf("unexpected session id: got %s want %s", got.ID, sess.ID)
	}
}

func TestServiceEndUnknownSession(t *testing.T) {
	svc := newService()

	err := svc.End(context.Background(), "missing")
	if !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestServiceRecordEventNeverFails(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	// Must not panic or surface anything for an unknown session.
	svc.RecordEvent(ctx, "missing", sessionmodel.UserEvent{Event: "page_view"})

	sess, err := svc.Start(ctx)
	if err != nil {
		t.Fatalf("Start err: %v", err)
	}
	svc.RecordEvent(ctx, sess.ID, sessionmodel.UserEvent{Event: "error"})

	got, err := svc.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if got.EventsCount != 1 {
		t.Fatalf("expected events_count 1, got %d", got.EventsCount)
	}
}

package gateway

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolffbe/real-time-agents/internal/config"
	"github.com/wolffbe/real-time-agents/internal/logging"
	actionsvc "github.com/wolffbe/real-time-agents/internal/service/action"
	sessionsvc "github.com/wolffbe/real-time-agents/internal/service/session"
)

func newTestGateway(t *testing.T, cfg config.GatewayConfig) *httptest.Server {
	t.Helper()
	if cfg.ProxyTimeout == 0 {
		cfg.ProxyTimeout = time.Second
	}
	if cfg.StreamTimeout == 0 {
		cfg.StreamTimeout = time.Second
	}

	log := logging.Nop()
	store := sessionsvc.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	sessions := sessionsvc.NewService(store, log, 0)
	actions := actionsvc.NewManager(store, log)

	router := chi.NewRouter()
	New(sessions, actions, cfg, log).RegisterRoutes(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func startSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/session/start", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("session start: expected 200, got %d", resp.StatusCode)
	}
	id, _ := body["session_id"].(string)
	if id == "" {
		t.Fatalf("missing session_id in %+v", body)
	}
	return id
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestGateway(t, config.GatewayConfig{})
	id := startSession(t, srv)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/session/end", fmt.Sprintf(`{"session_id":%q}`, id))
	if resp.StatusCode != http.StatusOK || body["status"] != "success" {
		t.Fatalf("session end: %d %+v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/session/end", fmt.Sprintf(`{"session_id":%q}`, id))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("ending an ended session: expected 404, got %d", resp.StatusCode)
	}
	if body["message"] != "Invalid session" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestSessionEndRequiresID(t *testing.T) {
	srv := newTestGateway(t, config.GatewayConfig{})

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/session/end", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestEventsIngestion(t *testing.T) {
	srv := newTestGateway(t, config.GatewayConfig{})
	id := startSession(t, srv)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/events",
		strings.NewReader(`{"event":"pageview","properties":{"page":"/pricing"}}`))
	req.Header.Set("X-Session-ID", id)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /events: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	// Unknown sessions are accepted and dropped.
	resp2, body := doJSON(t, http.MethodPost, srv.URL+"/events?session_id=nope", `{"event":"click"}`)
	if resp2.StatusCode != http.StatusOK || body["status"] != "success" {
		t.Fatalf("unknown session ingestion: %d %+v", resp2.StatusCode, body)
	}
}

func TestActionQueueRoundTrip(t *testing.T) {
	srv := newTestGateway(t, config.GatewayConfig{})
	id := startSession(t, srv)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/webhook/agent-action",
		fmt.Sprintf(`{"session_id":%q,"action":"click_button","payload":{"button_text":"Send Test Event"}}`, id))
	if resp.StatusCode != http.StatusOK || body["status"] != "received" {
		t.Fatalf("agent-action: %d %+v", resp.StatusCode, body)
	}
	actionID, _ := body["action_id"].(string)
	if actionID == "" {
		t.Fatalf("missing action_id in %+v", body)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/webhook/pending-actions?session_id="+id, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pending-actions: expected 200, got %d", resp.StatusCode)
	}
	pending, _ := body["actions"].([]any)
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending action, got %+v", body)
	}
	first, _ := pending[0].(map[string]any)
	if first["action_id"] != actionID || first["status"] != "pending" {
		t.Fatalf("unexpected pending action: %+v", first)
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/webhook/action-ack",
		fmt.Sprintf(`{"session_id":%q,"action_id":%q}`, id, actionID))
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("action-ack: %d %+v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/webhook/pending-actions?session_id="+id, "")
	if pending, _ := body["actions"].([]any); len(pending) != 0 {
		t.Fatalf("acked action still pending: %+v", body)
	}

	// Acks are one-way.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/webhook/action-ack",
		fmt.Sprintf(`{"session_id":%q,"action_id":%q,"status":"failed"}`, id, actionID))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second ack: expected 409, got %d", resp.StatusCode)
	}
}

func TestAgentActionUnknownSession(t *testing.T) {
	srv := newTestGateway(t, config.GatewayConfig{})

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/webhook/agent-action",
		`{"session_id":"nope","action":"click_button"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if body["message"] != "Invalid session" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestPendingActionsUnknownSessionIsEmpty(t *testing.T) {
	srv := newTestGateway(t, config.GatewayConfig{})

	for _, url := range []string{
		srv.URL + "/webhook/pending-actions",
		srv.URL + "/webhook/pending-actions?session_id=nope",
	} {
		resp, body := doJSON(t, http.MethodGet, url, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", url, resp.StatusCode)
		}
		if pending, _ := body["actions"].([]any); len(pending) != 0 {
			t.Fatalf("%s: expected empty actions, got %+v", url, body)
		}
	}
}

func TestActionAckErrorMapping(t *testing.T) {
	srv := newTestGateway(t, config.GatewayConfig{})
	id := startSession(t, srv)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"unknown session", `{"session_id":"nope","action_id":"a1"}`, http.StatusBadRequest},
		{"unknown action", fmt.Sprintf(`{"session_id":%q,"action_id":"nope"}`, id), http.StatusNotFound},
		{"invalid status", fmt.Sprintf(`{"session_id":%q,"action_id":"a1","status":"bogus"}`, id), http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, _ := doJSON(t, http.MethodPost, srv.URL+"/webhook/action-ack", tc.body)
			if resp.StatusCode != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, resp.StatusCode)
			}
		})
	}
}

func TestProxyForwardsVerbatim(t *testing.T) {
	agent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/reset" {
			t.Errorf("unexpected upstream path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTeapot)
		fmt.Fprint(w, `{"status":"success","echo":true}`)
	}))
	defer agent.Close()

	srv := newTestGateway(t, config.GatewayConfig{AgentURL: agent.URL})

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/agent/chat/reset", `{"session_id":"s1"}`)
	if resp.StatusCode != http.StatusTeapot {
		t.Fatalf("expected upstream status passed through, got %d", resp.StatusCode)
	}
	if body["echo"] != true {
		t.Fatalf("upstream body not passed through: %+v", body)
	}
}

func TestProxyAgentDown(t *testing.T) {
	srv := newTestGateway(t, config.GatewayConfig{AgentURL: "http://127.0.0.1:1"})

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/agent/chat", `{"message":"hi"}`)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	if body["status"] != "error" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestStreamProxyRelaysFramesUntouched(t *testing.T) {
	agent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"chunk\":\"hi\"}\n\n")
		fmt.Fprint(w, "data: {\"done\":true,\"session_id\":\"s1\"}\n\n")
	}))
	defer agent.Close()

	srv := newTestGateway(t, config.GatewayConfig{AgentURL: agent.URL})

	resp, err := http.Post(srv.URL+"/agent/chat/stream", "application/json", strings.NewReader(`{"message":"hi"}`))
	if err != nil {
		t.Fatalf("POST stream: %v", err)
	}
	defer resp.Body.Close()

	var lines []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 data lines, got %+v", lines)
	}
	if lines[0] != `data: {"chunk":"hi"}` {
		t.Fatalf("frame rewritten in transit: %q", lines[0])
	}
}

func TestStreamProxyInjectsWebhookURL(t *testing.T) {
	var got map[string]any
	agent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"done\":true,\"session_id\":\"s1\"}\n\n")
	}))
	defer agent.Close()

	srv := newTestGateway(t, config.GatewayConfig{
		AgentURL:       agent.URL,
		WebhookBaseURL: "http://gateway.internal:5000",
	})

	resp, err := http.Post(srv.URL+"/agent/chat/stream", "application/json",
		strings.NewReader(`{"session_id":"s1","message":"hi"}`))
	if err != nil {
		t.Fatalf("POST stream: %v", err)
	}
	resp.Body.Close()

	if got["webhook_url"] != "http://gateway.internal:5000/webhook/agent-action" {
		t.Fatalf("webhook_url not injected: %+v", got)
	}

	// A client-supplied webhook wins.
	got = nil
	resp, err = http.Post(srv.URL+"/agent/chat/stream", "application/json",
		strings.NewReader(`{"message":"hi","webhook_url":"http://elsewhere/hook"}`))
	if err != nil {
		t.Fatalf("POST stream: %v", err)
	}
	resp.Body.Close()

	if got["webhook_url"] != "http://elsewhere/hook" {
		t.Fatalf("client webhook_url overridden: %+v", got)
	}
}

func TestStreamProxyAgentDown(t *testing.T) {
	srv := newTestGateway(t, config.GatewayConfig{AgentURL: "http://127.0.0.1:1"})

	resp, err := http.Post(srv.URL+"/agent/chat/stream", "application/json", strings.NewReader(`{"message":"hi"}`))
	if err != nil {
		t.Fatalf("POST stream: %v", err)
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	var sawError bool
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, `"error"`) {
			sawError = true
		}
	}
	if !sawError {
		t.Fatal("expected an error frame from the stream proxy")
	}
}

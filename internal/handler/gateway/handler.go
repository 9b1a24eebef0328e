// Package gateway exposes the browser-facing HTTP surface: session
// lifecycle, event ingestion, the action webhook API and the transparent
// proxy to the agent service.
package gateway

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolffbe/real-time-agents/internal/config"
	"github.com/wolffbe/real-time-agents/internal/logging"
	actionsvc "github.com/wolffbe/real-time-agents/internal/service/action"
	sessionsvc "github.com/wolffbe/real-time-agents/internal/service/session"
)

// Handler carries the gateway's collaborators.
type Handler struct {
	sessions *sessionsvc.Service
	actions  *actionsvc.Manager

	agentURL       string
	webhookBaseURL string
	proxyClient    *http.Client
	streamClient   *http.Client
	log            *logging.Logger
}

// New assembles the gateway handler.
func New(sessions *sessionsvc.Service, actions *actionsvc.Manager, cfg config.GatewayConfig, log *logging.Logger) *Handler {
	return &Handler{
		sessions:       sessions,
		actions:        actions,
		agentURL:       strings.TrimRight(cfg.AgentURL, "/"),
		webhookBaseURL: strings.TrimRight(cfg.WebhookBaseURL, "/"),
		proxyClient:    &http.Client{Timeout: cfg.ProxyTimeout},
		streamClient:   &http.Client{Timeout: cfg.StreamTimeout},
		log:            log.Sub("gateway"),
	}
}

// RegisterRoutes mounts every gateway endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session/start", h.handleSessionStart)
	r.Post("/session/end", h.handleSessionEnd)
	r.Post("/events", h.handleEvents)

	r.Post("/webhook/agent-action", h.handleAgentAction)
	r.Get("/webhook/pending-actions", h.handlePendingActions)
	r.Post("/webhook/action-ack", h.handleActionAck)

	r.Post("/agent/chat/stream", h.handleStreamProxy)
	r.HandleFunc("/agent/*", h.handleProxy)
}

// sessionID pulls the session id from the X-Session-ID header or, failing
// that, the query string.
func sessionID(r *http.Request) string {
	if id := r.Header.Get("X-Session-ID"); id != "" {
		return id
	}
	return r.URL.Query().Get("session_id")
}

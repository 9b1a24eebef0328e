// Package chat exposes the agent service's HTTP surface: blocking chat,
// streaming chat and conversation reset.
package chat

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolffbe/real-time-agents/internal/logging"
	sessionmodel "github.com/wolffbe/real-time-agents/internal/model/session"
	"github.com/wolffbe/real-time-agents/internal/model/stream"
	"github.com/wolffbe/real-time-agents/internal/service/relay"
	"github.com/wolffbe/real-time-agents/pkg/utils"
)

// Handler serves the chat endpoints on top of the stream relay.
type Handler struct {
	relay *relay.Relay
	log   *logging.Logger
}

// New creates the chat handler.
func New(r *relay.Relay, log *logging.Logger) *Handler {
	return &Handler{relay: r, log: log.Sub("chat")}
}

// RegisterRoutes mounts the chat endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Post("/chat/stream", h.handleChatStream)
	r.Post("/chat/reset", h.handleReset)
}

// chatRequest is the shared body of /chat and /chat/stream.
type chatRequest struct {
	SessionID  string                       `json:"session_id"`
	Message    string                       `json:"message"`
	CustomerID int                          `json:"customer_id"`
	UserEvents []sessionmodel.ActivityEvent `json:"user_events"`
	WebhookURL string                       `json:"webhook_url"`
}

func (h *Handler) decodeChatRequest(w http.ResponseWriter, r *http.Request) (relay.Request, bool) {
	var payload chatRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return relay.Request{}, false
	}
	if payload.Message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return relay.Request{}, false
	}

	if payload.SessionID == "" {
		payload.SessionID = "default"
	}
	if payload.CustomerID == 0 {
		payload.CustomerID = 1
	}
	return relay.Request{
		SessionID:  payload.SessionID,
		Message:    payload.Message,
		CustomerID: payload.CustomerID,
		UserEvents: payload.UserEvents,
		WebhookURL: payload.WebhookURL,
	}, true
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeChatRequest(w, r)
	if !ok {
		return
	}

	response, err := h.relay.CompleteTurn(r.Context(), req)
	if err != nil {
		h.log.Error().Err(err).Str("session", req.SessionID).Msg("chat turn failed")
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"response":   response,
		"session_id": req.SessionID,
	})
}

func (h *Handler) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeChatRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	utils.SetSSEHeaders(w)

	h.relay.StreamTurn(r.Context(), req, func(frame stream.Frame) error {
		return utils.WriteSSE(w, flusher, frame)
	})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.SessionID == "" {
		payload.SessionID = "default"
	}

	if err := h.relay.Reset(r.Context(), payload.SessionID); err != nil {
		h.log.Error().Err(err).Str("session", payload.SessionID).Msg("conversation reset failed")
		utils.RespondError(w, http.StatusInternalServerError, "reset failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Conversation reset",
	})
}

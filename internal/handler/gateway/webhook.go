package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	sessionmodel "github.com/wolffbe/real-time-agents/internal/model/session"
	actionsvc "github.com/wolffbe/real-time-agents/internal/service/action"
	sessionsvc "github.com/wolffbe/real-time-agents/internal/service/session"
	"github.com/wolffbe/real-time-agents/pkg/utils"
)

// handleAgentAction accepts a command from the agent and queues it for the
// browser to poll.
func (h *Handler) handleAgentAction(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string         `json:"session_id"`
		Action    string         `json:"action"`
		Payload   map[string]any `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.SessionID == "" || payload.Action == "" {
		utils.RespondError(w, http.StatusBadRequest, "Invalid session")
		return
	}

	a, err := h.actions.Create(r.Context(), payload.SessionID, payload.Action, payload.Payload)
	if err != nil {
		if errors.Is(err, sessionsvc.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusBadRequest, "Invalid session")
			return
		}
		h.log.Error().Err(err).Str("session", payload.SessionID).Msg("action create failed")
		utils.RespondError(w, http.StatusInternalServerError, "failed to queue action")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "received",
		"action_id": a.ID,
	})
}

// handlePendingActions returns the session's unacknowledged actions. An
// unknown session yields an empty list, not an error: the poller may simply
// be early or late.
func (h *Handler) handlePendingActions(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if id == "" {
		utils.RespondJSON(w, http.StatusOK, map[string]any{"status": "success", "actions": []sessionmodel.Action{}})
		return
	}

	pending, err := h.sessions.Pending(r.Context(), id)
	if err != nil {
		if !errors.Is(err, sessionsvc.ErrSessionNotFound) {
			h.log.Error().Err(err).Str("session", id).Msg("pending poll failed")
		}
		pending = []sessionmodel.Action{}
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"actions": pending,
	})
}

// handleActionAck records the browser's execution report for one action.
func (h *Handler) handleActionAck(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"session_id"`
		ActionID  string `json:"action_id"`
		Status    string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Status == "" {
		payload.Status = string(sessionmodel.StatusExecuted)
	}

	err := h.actions.Acknowledge(r.Context(), payload.SessionID, payload.ActionID, sessionmodel.ActionStatus(payload.Status))
	switch {
	case err == nil:
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, sessionsvc.ErrSessionNotFound):
		utils.RespondError(w, http.StatusBadRequest, "Invalid session")
	case errors.Is(err, sessionsvc.ErrActionNotFound):
		utils.RespondError(w, http.StatusNotFound, "Unknown action")
	case errors.Is(err, sessionsvc.ErrActionDone):
		utils.RespondError(w, http.StatusConflict, "Action already acknowledged")
	case errors.Is(err, actionsvc.ErrInvalidStatus):
		utils.RespondError(w, http.StatusBadRequest, "Invalid status")
	default:
		h.log.Error().Err(err).Str("session", payload.SessionID).Msg("action ack failed")
		utils.RespondError(w, http.StatusInternalServerError, "failed to acknowledge action")
	}
}

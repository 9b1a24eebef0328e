package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	sessionmodel "github.com/wolffbe/real-time-agents/internal/model/session"
	sessionsvc "github.com/wolffbe/real-time-agents/internal/service/session"
	"github.com/wolffbe/real-time-agents/pkg/utils"
)

func (h *Handler) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Start(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("session start failed")
		utils.RespondError(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":     "success",
		"session_id": sess.ID,
	})
}

func (h *Handler) handleSessionEnd(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.SessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	if err := h.sessions.End(r.Context(), payload.SessionID); err != nil {
		if errors.Is(err, sessionsvc.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "Invalid session")
			return
		}
		h.log.Error().Err(err).Str("session", payload.SessionID).Msg("session end failed")
		utils.RespondError(w, http.StatusInternalServerError, "failed to end session")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	var ev sessionmodel.UserEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Unknown or missing session ids are harmless: ingestion is
	// at-least-once and late events simply drop.
	if id := sessionID(r); id != "" {
		h.sessions.RecordEvent(r.Context(), id, ev)
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

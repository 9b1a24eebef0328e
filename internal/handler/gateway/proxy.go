package gateway

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolffbe/real-time-agents/pkg/utils"
)

// handleProxy forwards a request verbatim to the agent service and returns
// the upstream status and body unchanged.
func (h *Handler) handleProxy(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	target := h.agentURL + "/" + path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.proxyClient.Do(req)
	if err != nil {
		h.log.Warn().Err(err).Str("target", target).Msg("agent unreachable")
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

// handleStreamProxy relays the agent's push channel line by line without
// buffering the whole response. Frames pass through untouched: any change
// to the wire format happens in the relay, never here.
func (h *Handler) handleStreamProxy(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	body = h.injectWebhookURL(body)

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, h.agentURL+"/chat/stream", bytes.NewReader(body))
	if err != nil {
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.streamClient.Do(req)
	if err != nil {
		h.log.Warn().Err(err).Msg("agent stream unreachable")
		utils.SetSSEHeaders(w)
		_ = utils.WriteSSE(w, flusher, map[string]string{"error": err.Error()})
		return
	}
	defer resp.Body.Close()

	utils.SetSSEHeaders(w)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := utils.WriteSSERaw(w, flusher, line); err != nil {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		_ = utils.WriteSSE(w, flusher, map[string]string{"error": err.Error()})
	}
}

// injectWebhookURL points the agent's action dispatch back at this gateway
// when the client did not name a webhook itself.
func (h *Handler) injectWebhookURL(body []byte) []byte {
	if h.webhookBaseURL == "" {
		return body
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return body
	}
	if url, _ := payload["webhook_url"].(string); strings.TrimSpace(url) != "" {
		return body
	}

	payload["webhook_url"] = h.webhookBaseURL + "/webhook/agent-action"
	updated, err := json.Marshal(payload)
	if err != nil {
		return body
	}
	return updated
}

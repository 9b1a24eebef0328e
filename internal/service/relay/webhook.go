package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/wolffbe/real-time-agents/internal/logging"
	"github.com/wolffbe/real-time-agents/internal/service/ai"
)

// WebhookClient delivers dispatched commands to the out-of-band action
// webhook. Delivery is best-effort: failures are logged and swallowed so a
// dead webhook can never abort a chat turn.
type WebhookClient struct {
	hc  *http.Client
	log *logging.Logger
}

// NewWebhookClient builds a client with a short bounded timeout.
func NewWebhookClient(timeout time.Duration, log *logging.Logger) *WebhookClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookClient{
		hc:  &http.Client{Timeout: timeout},
		log: log.Sub("webhook"),
	}
}

// Deliver posts the command to url. A blank url skips delivery entirely.
func (c *WebhookClient) Deliver(ctx context.Context, url, sessionID string, cmd ai.Command) {
	if url == "" {
		return
	}

	body, err := json.Marshal(map[string]any{
		"session_id": sessionID,
		"action":     cmd.Type,
		"payload":    cmd.Payload,
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("webhook payload encoding failed")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		c.log.Warn().Err(err).Str("url", url).Msg("webhook request build failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("url", url).Msg("webhook delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		c.log.Warn().Int("status", resp.StatusCode).Str("url", url).Msg("webhook rejected command")
	}
}

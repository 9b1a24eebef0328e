package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// SetSSEHeaders prepares w for a Server-Sent Events response.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// WriteSSE marshals payload into one `data: <json>` frame and flushes it.
func WriteSSE(w http.ResponseWriter, flusher http.Flusher, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling sse payload: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// WriteSSERaw forwards an already-serialized frame line untouched, for the
// proxy path where the payload must not be re-parsed.
func WriteSSERaw(w http.ResponseWriter, flusher http.Flusher, line string) error {
	if _, err := fmt.Fprintf(w, "%s\n\n", line); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

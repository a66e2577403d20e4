package apiclient

import (
	"encoding/json"
	"fmt"
	"strings"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
}

// errorMessage picks the most useful message from an error body: a JSON
// message, then a JSON error, then the raw text, then fallback.
func errorMessage(body []byte, fallback string) string {
	var payload struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			return msg
		}
		var text string
		if len(payload.Error) > 0 && json.Unmarshal(payload.Error, &text) == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
	}

	raw := strings.TrimSpace(string(body))
	if raw != "" && !strings.HasPrefix(raw, "{") && !strings.HasPrefix(raw, "<") {
		if len(raw) > 200 {
			raw = raw[:200]
		}
		return raw
	}
	return fallback
}

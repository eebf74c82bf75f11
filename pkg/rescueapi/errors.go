package rescueapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// GenericDetail is shown when a failure carries no backend detail.
const GenericDetail = "The request could not be completed. Please try again."

// APIError is a non-2xx backend response.
type APIError struct {
	StatusCode int
	// Detail is the backend's human readable message, if it sent one.
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("rescueapi: status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("rescueapi: status %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func newAPIError(code int, body []byte) *APIError {
	return &APIError{StatusCode: code, Detail: parseDetail(body)}
}

// parseDetail reads {"detail": ...}. FastAPI validation errors carry a list
// of {"msg": ...} objects under detail; their messages are joined.
func parseDetail(body []byte) string {
	var envelope struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if len(envelope.Detail) > 0 {
		var s string
		if err := json.Unmarshal(envelope.Detail, &s); err == nil {
			return strings.TrimSpace(s)
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(envelope.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if m := strings.TrimSpace(it.Msg); m != "" {
					msgs = append(msgs, m)
				}
			}
			return strings.Join(msgs, "; ")
		}
	}
	return strings.TrimSpace(envelope.Message)
}

// Detail returns the user-facing message for err: the backend detail when
// present, else fallback, else GenericDetail.
func Detail(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	if fallback != "" {
		return fallback
	}
	return GenericDetail
}

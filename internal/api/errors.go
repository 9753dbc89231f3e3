package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized is returned for 401/403; the session must be dropped.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned for 404.
	ErrNotFound = errors.New("not found")
)

// APIError is a non-2xx response from the expense service.
type APIError struct {
	Method   string
	Path     string
	Status   int
	Messages []string
}

func (e *APIError) Error() string {
	msg := strings.Join(e.Messages, "; ")
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, msg)
}

// Is lets errors.Is match the sentinel for the status class.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// UserMessages returns messages fit to show the user, falling back to
// the given default when the service sent none.
func (e *APIError) UserMessages(fallback string) []string {
	if len(e.Messages) == 0 {
		return []string{fallback}
	}
	return e.Messages
}

// Messages extracts user-facing messages from any error, using fallback
// when err is not an APIError or carries no messages.
func Messages(err error, fallback string) []string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.UserMessages(fallback)
	}
	return []string{fallback}
}

// errorBody covers the shapes the service uses: {"errors": [...]},
// {"error": "..."} and {"message": "..."}.
type errorBody struct {
	Errors  json.RawMessage `json:"errors"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func newAPIError(method, path string, status int, payload []byte) *APIError {
	e := &APIError{Method: method, Path: path, Status: status}

	var body errorBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return e
	}
	if len(body.Errors) > 0 {
		var list []string
		if err := json.Unmarshal(body.Errors, &list); err == nil {
			e.Messages = append(e.Messages, list...)
		} else {
			var single string
			if err := json.Unmarshal(body.Errors, &single); err == nil && single != "" {
				e.Messages = append(e.Messages, single)
			}
		}
	}
	if body.Error != "" {
		e.Messages = append(e.Messages, body.Error)
	}
	if body.Message != "" {
		e.Messages = append(e.Messages, body.Message)
	}
	return e
}

package llm

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/careplan-cli/internal/resilience"
)

var (
	// ErrTransport matches any failure to obtain a success response from the
	// provider: network errors, timeouts and non-2xx statuses.
	ErrTransport = eris.New("llm: transport failure")

	// ErrInvalidResponse is returned when a success response lacks the
	// expected message content.
	ErrInvalidResponse = eris.New("llm: invalid response shape")

	// ErrEmptyGeneration is returned when the model produced blank content.
	ErrEmptyGeneration = eris.New("llm: empty generation")
)

// TransportError describes a failed provider round trip. StatusCode is 0 when
// no HTTP response was received.
type TransportError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		body := e.Body
		if body == "" && e.Err != nil {
			body = e.Err.Error()
		}
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, body)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is makes every TransportError match ErrTransport.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// newTransportError builds a TransportError and marks it transient when the
// status (or the underlying network error) is worth retrying.
func newTransportError(provider string, status int, body string, err error) error {
	te := &TransportError{Provider: provider, StatusCode: status, Body: body, Err: err}
	if status != 0 {
		if resilience.IsTransientHTTPStatus(status) {
			return resilience.NewTransientError(te, status)
		}
		return te
	}
	if resilience.IsTransient(err) {
		return resilience.NewTransientError(te, 0)
	}
	return te
}

// Outcome maps a Complete error to a short metrics label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	case errors.Is(err, ErrEmptyGeneration):
		return "empty"
	default:
		return "error"
	}
}

package attribution

import (
	"fmt"

	"github.com/rotisserie/eris"
)

var (
	// ErrParseFailure is returned when no JSON object could be extracted or
	// repaired from the model output.
	ErrParseFailure = eris.New("attribution: could not parse model output")

	// ErrInvalidShape is returned when parsed JSON does not match the
	// attribution document shape.
	ErrInvalidShape = eris.New("attribution: invalid document shape")
)

// ConfigurationError is returned before any provider call when required
// configuration is missing.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("attribution: %s is not configured", e.Setting)
}

// GenerationError wraps an unrecoverable failure of a single-call run.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return "attribution: failed to generate source attribution: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error { return e.Err }

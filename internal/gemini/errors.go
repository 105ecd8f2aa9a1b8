package gemini

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingAPIKey is returned when no API key was passed and none is set in
// the environment.
var ErrMissingAPIKey = errors.New("API key must be set either via argument or " + APIKeyEnv + " environment variable")

// NetworkError reports a failure to complete the HTTP exchange, including a
// non-2xx reply or an API error envelope.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network error: " + e.Err.Error() }

func (e *NetworkError) Unwrap() error { return e.Err }

// SerializationError reports a failure to encode the request or decode the
// response.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string { return "serialization error: " + e.Err.Error() }

func (e *SerializationError) Unwrap() error { return e.Err }

// StatusError is wrapped by NetworkError when the API answered with a non-2xx
// status.
type StatusError struct {
	StatusCode int
	Status     string
	// Message is taken from the API error envelope when present, otherwise
	// it holds the raw body.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
}

// BlockedError is returned when the API refused the prompt and sent no
// candidates.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string { return "prompt blocked: " + e.Reason }

// scrubbedError hides the API key from the message of the error it wraps.
type scrubbedError struct {
	err      error
	scrubber *strings.Replacer
}

func (se *scrubbedError) Error() string {
	return se.scrubber.Replace(se.err.Error())
}

func (se *scrubbedError) Unwrap() error { return se.err }

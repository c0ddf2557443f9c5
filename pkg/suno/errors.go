package suno

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned before any network attempt when no API
	// key has been configured.
	ErrUnauthenticated = errors.New("suno: api key not set")
	// ErrMalformedResponse is returned when a successful response body is
	// not valid JSON or lacks the expected fields.
	ErrMalformedResponse = errors.New("suno: failed to parse json response")
	// ErrTimeout is returned when upload processing exceeds its attempt
	// budget.
	ErrTimeout = errors.New("suno: upload processing timeout")
)

// RemoteError is returned when the remote API answers with a non-success
// status code.
type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("suno: api error %d: %s", e.Status, e.Body)
}

// ValidationError reports missing or invalid input for the selected mode.
// No network call is made when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("suno: invalid %s: %s", e.Field, e.Message)
}

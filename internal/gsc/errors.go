package gsc

import (
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
)

// ErrCredentialNotFound reports a missing service-account key file.
var ErrCredentialNotFound = errors.New("credential file not found")

// APIError wraps a Search Analytics API failure, carrying the HTTP
// status and reason when the underlying error exposes them.
type APIError struct {
	StatusCode int
	Reason     string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		if e.Reason != "" {
			return fmt.Sprintf("gsc api error (status %d): %s", e.StatusCode, e.Reason)
		}
		return fmt.Sprintf("gsc api error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("gsc api error: %v", e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func newAPIError(err error) *APIError {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &APIError{StatusCode: gerr.Code, Reason: gerr.Message, Err: err}
	}
	return &APIError{Err: err}
}

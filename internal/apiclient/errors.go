package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

// TransportError is a request that never produced an HTTP response
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: transport failure: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a request the backend rejected. Message is the backend's
// human-readable reason when it sent one.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// MalformedResponseError is a 2xx response whose body could not be decoded
// or failed validation
type MalformedResponseError struct {
	Method string
	Path   string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s %s: malformed response: %v", e.Method, e.Path, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// StatusCode returns the backend status of an *APIError in err's chain, or 0
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether the backend refused the credential
func IsUnauthorized(err error) bool {
	code := StatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// Message returns the text to show the user for err
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	var tErr *TransportError
	if errors.As(err, &tErr) {
		return "marketplace is unreachable"
	}
	var mErr *MalformedResponseError
	if errors.As(err, &mErr) {
		return "marketplace sent an unexpected response"
	}
	return err.Error()
}

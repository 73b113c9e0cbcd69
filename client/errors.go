package client

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for errors.Is matching.
var (
	// ErrAuthentication indicates the service rejected the bearer token.
	ErrAuthentication = errors.New("authentication failed")

	// ErrServer indicates a 5xx response.
	ErrServer = errors.New("server error")
)

// AuthenticationError is returned for 401 responses.
type AuthenticationError struct {
	detail string
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	return "authentication failed: " + e.detail
}

// Is matches ErrAuthentication.
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAuthentication
}

// ValidationDetail is one entry of a 422 response.
type ValidationDetail struct {
	Type  string         `json:"type"`
	Loc   []any          `json:"loc"`
	Msg   string         `json:"msg"`
	Input any            `json:"input,omitempty"`
	Ctx   map[string]any `json:"ctx,omitempty"`
}

// ValidationError is returned for 422 responses.
type ValidationError struct {
	Details []ValidationDetail
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Details))
	for i, d := range e.Details {
		msgs[i] = fmt.Sprintf("%v: %s", d.Loc, d.Msg)
	}
	return "validation error: " + strings.Join(msgs, "; ")
}

// ServerError is returned for 5xx responses.
type ServerError struct {
	StatusCode int
	Detail     string
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Detail)
}

// Is matches ErrServer.
func (e *ServerError) Is(target error) bool {
	return target == ErrServer
}

// APIError is returned for any other non-2xx response.
type APIError struct {
	StatusCode int
	Detail     string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Detail)
}

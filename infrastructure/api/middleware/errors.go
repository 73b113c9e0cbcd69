package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/helixml/jembed/internal/log"
)

// Sentinel errors for errors.Is matching.
var (
	// ErrAuthentication indicates the request failed the bearer check.
	ErrAuthentication = errors.New("authentication failed")

	// ErrServer indicates a server-side failure.
	ErrServer = errors.New("server error")
)

// APIError is an error with an explicit HTTP status and a client-facing message.
type APIError struct {
	code    int
	message string
	cause   error
}

// NewAPIError creates a new APIError.
func NewAPIError(code int, message string, cause error) *APIError {
	return &APIError{code: code, message: message, cause: cause}
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("api error %d: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("api error %d: %s", e.code, e.message)
}

// Code returns the HTTP status code.
func (e *APIError) Code() int { return e.code }

// Message returns the client-facing message.
func (e *APIError) Message() string { return e.message }

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error { return e.cause }

// AuthenticationError indicates a missing or wrong bearer token.
type AuthenticationError struct {
	reason string
}

// NewAuthenticationError creates a new AuthenticationError.
func NewAuthenticationError(reason string) *AuthenticationError {
	return &AuthenticationError{reason: reason}
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	return "authentication failed: " + e.reason
}

// Is matches ErrAuthentication.
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAuthentication
}

// ServerError is a server-side failure with an explicit status.
type ServerError struct {
	statusCode int
	message    string
}

// NewServerError creates a new ServerError.
func NewServerError(statusCode int, message string) *ServerError {
	return &ServerError{statusCode: statusCode, message: message}
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.statusCode, e.message)
}

// StatusCode returns the HTTP status code.
func (e *ServerError) StatusCode() int { return e.statusCode }

// Message returns the error message.
func (e *ServerError) Message() string { return e.message }

// Is matches ErrServer.
func (e *ServerError) Is(target error) bool {
	return target == ErrServer
}

// ValidationDetail describes one request validation failure.
type ValidationDetail struct {
	Type  string         `json:"type"`
	Loc   []any          `json:"loc"`
	Msg   string         `json:"msg"`
	Input any            `json:"input"`
	Ctx   map[string]any `json:"ctx,omitempty"`
}

// ValidationError is a request body that failed validation. It renders as
// 422 with a {"detail": [...]} body.
type ValidationError struct {
	details []ValidationDetail
}

// NewValidationError creates a new ValidationError.
func NewValidationError(details ...ValidationDetail) *ValidationError {
	d := make([]ValidationDetail, len(details))
	copy(d, details)
	return &ValidationError{details: d}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.details))
	for i, d := range e.details {
		msgs[i] = fmt.Sprintf("%v: %s", d.Loc, d.Msg)
	}
	return "validation error: " + strings.Join(msgs, "; ")
}

// Details returns the individual failures.
func (e *ValidationError) Details() []ValidationDetail {
	d := make([]ValidationDetail, len(e.details))
	copy(d, e.details)
	return d
}

// ErrorResponse is the error body for non-validation failures.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// ValidationErrorResponse is the 422 error body.
type ValidationErrorResponse struct {
	Detail []ValidationDetail `json:"detail"`
}

const (
	unauthorizedDetail = "unauthorized"
	internalDetail     = "Internal Server Error"
)

// WriteError maps err to a status and error body. Anything unrecognised
// becomes a generic 500 so internal details never reach the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	status := http.StatusInternalServerError
	var body any = ErrorResponse{Detail: internalDetail}

	var (
		validationErr *ValidationError
		authErr       *AuthenticationError
		apiErr        *APIError
		serverErr     *ServerError
	)
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusUnprocessableEntity
		body = ValidationErrorResponse{Detail: validationErr.Details()}
	case errors.As(err, &authErr):
		status = http.StatusUnauthorized
		body = ErrorResponse{Detail: unauthorizedDetail}
	case errors.As(err, &apiErr):
		status = apiErr.Code()
		body = ErrorResponse{Detail: apiErr.Message()}
	case errors.As(err, &serverErr):
		status = serverErr.StatusCode()
		body = ErrorResponse{Detail: serverErr.Message()}
	}

	attrs := []any{
		slog.String("correlation_id", log.CorrelationID(r.Context())),
		slog.Int("status", status),
		slog.String("path", r.URL.Path),
		slog.Any("error", err),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Debug("request rejected", attrs...)
	}

	WriteJSON(w, status, body)
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

package middleware

import (
	"crypto/subtle"
	"net/http"
)

const bearerPrefix = "Bearer "

// AuthConfig holds the bearer token guarding the API.
type AuthConfig struct {
	expected string
	enabled  bool
}

// NewAuthConfig creates an AuthConfig. An empty token disables the check.
// The token is used verbatim.
func NewAuthConfig(token string) AuthConfig {
	if token == "" {
		return AuthConfig{enabled: false}
	}
	return AuthConfig{
		expected: bearerPrefix + token,
		enabled:  true,
	}
}

// Enabled returns true if a token is configured.
func (c AuthConfig) Enabled() bool { return c.enabled }

// Authorize checks the request's Authorization header. The header must equal
// "Bearer <token>" exactly: the scheme is case-sensitive and no whitespace is
// trimmed. With no token configured every request passes.
func (c AuthConfig) Authorize(r *http.Request) error {
	if !c.enabled {
		return nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return NewAuthenticationError("missing bearer token")
	}
	if subtle.ConstantTimeCompare([]byte(header), []byte(c.expected)) != 1 {
		return NewAuthenticationError("invalid bearer token")
	}
	return nil
}

// BearerAuth returns a middleware that rejects requests failing Authorize
// with 401 {"detail":"unauthorized"}.
func BearerAuth(config AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := config.Authorize(r); err != nil {
				WriteJSON(w, http.StatusUnauthorized, ErrorResponse{Detail: unauthorizedDetail})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

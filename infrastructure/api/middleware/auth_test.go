package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthConfig_Disabled(t *testing.T) {
	config := NewAuthConfig("")
	if config.Enabled() {
		t.Fatal("empty token should disable auth")
	}

	req := httptest.NewRequest(http.MethodPost, "/embed", nil)
	req.Header.Set("Authorization", "Bearer anything")
	if err := config.Authorize(req); err != nil {
		t.Errorf("Authorize() with auth disabled = %v, want nil", err)
	}
}

func TestAuthConfig_Authorize(t *testing.T) {
	config := NewAuthConfig("s3cret")

	tests := []struct {
		name   string
		header string
		ok     bool
	}{
		{"exact match", "Bearer s3cret", true},
		{"missing header", "", false},
		{"wrong token", "Bearer nope", false},
		{"lowercase scheme", "bearer s3cret", false},
		{"no scheme", "s3cret", false},
		{"trailing space", "Bearer s3cret ", false},
		{"double space", "Bearer  s3cret", false},
		{"prefix of token", "Bearer s3cre", false},
		{"other scheme", "Basic s3cret", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/embed", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			err := config.Authorize(req)
			if tt.ok && err != nil {
				t.Errorf("Authorize(%q) = %v, want nil", tt.header, err)
			}
			if !tt.ok && !errors.Is(err, ErrAuthentication) {
				t.Errorf("Authorize(%q) = %v, want ErrAuthentication", tt.header, err)
			}
		})
	}
}

func TestAuthConfig_TokenUsedVerbatim(t *testing.T) {
	config := NewAuthConfig(" padded ")

	req := httptest.NewRequest(http.MethodPost, "/embed", nil)
	req.Header.Set("Authorization", "Bearer  padded ")
	if err := config.Authorize(req); err != nil {
		t.Errorf("token with spaces should match verbatim, got %v", err)
	}
}

func TestBearerAuth_Middleware(t *testing.T) {
	handler := BearerAuth(NewAuthConfig("s3cret"))(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("without token: status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if got := w.Body.String(); got != "{\"detail\":\"unauthorized\"}\n" {
		t.Errorf("without token: body = %q", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("with token: status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestBearerAuth_DisabledPassesThrough(t *testing.T) {
	handler := BearerAuth(NewAuthConfig(""))(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

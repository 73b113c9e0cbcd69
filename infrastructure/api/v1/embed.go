// Package v1 implements the HTTP handlers of the embedding API.
package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/helixml/jembed/infrastructure/api/middleware"
	"github.com/helixml/jembed/infrastructure/api/v1/dto"
)

// MaxBodyBytes bounds the size of an embed request body.
const MaxBodyBytes = 8 << 20

// TextEmbedder encodes one text into a normalized vector.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float64, error)
}

// EmbedRouter handles the embed endpoint.
type EmbedRouter struct {
	embedder TextEmbedder
	auth     middleware.AuthConfig
	logger   *slog.Logger
}

// NewEmbedRouter creates a new EmbedRouter.
func NewEmbedRouter(embedder TextEmbedder, auth middleware.AuthConfig, logger *slog.Logger) *EmbedRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbedRouter{
		embedder: embedder,
		auth:     auth,
		logger:   logger,
	}
}

// Routes returns the chi router for the embed endpoint.
func (r *EmbedRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/", r.Embed)

	return router
}

// Embed handles POST /embed.
//
// The body is validated before the bearer token is checked, so a malformed
// request gets 422 even without credentials.
//
//	@Summary		Embed text
//	@Description	Encode one text into a normalized sentence embedding
//	@Tags			embed
//	@Accept			json
//	@Produce		json
//	@Param			body	body		dto.EmbedRequest	true	"Text to embed"
//	@Success		200		{object}	dto.EmbedResponse
//	@Failure		401		{object}	middleware.ErrorResponse
//	@Failure		422		{object}	middleware.ValidationErrorResponse
//	@Failure		500		{object}	middleware.ErrorResponse
//	@Security		BearerAuth
//	@Router			/embed [post]
func (r *EmbedRouter) Embed(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	raw, err := io.ReadAll(http.MaxBytesReader(w, req.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, req, middleware.NewAPIError(http.StatusRequestEntityTooLarge, "request body too large", err), r.logger)
			return
		}
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	body, err := DecodeEmbedRequest(raw)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	if err := r.auth.Authorize(req); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	embedding, err := r.embedder.EmbedText(ctx, body.Text)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, dto.NewEmbedResponse(embedding))
}

// DecodeEmbedRequest parses and validates an embed request body. Failures are
// returned as *middleware.ValidationError. An empty string is a valid text;
// only a missing or non-string field is rejected. Unknown fields are ignored.
func DecodeEmbedRequest(raw []byte) (dto.EmbedRequest, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return dto.EmbedRequest{}, middleware.NewValidationError(middleware.ValidationDetail{
			Type: "missing",
			Loc:  []any{"body"},
			Msg:  "Field required",
		})
	}

	var value any
	if err := json.Unmarshal(trimmed, &value); err != nil {
		var offset int64
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			offset = syntaxErr.Offset
		}
		return dto.EmbedRequest{}, middleware.NewValidationError(middleware.ValidationDetail{
			Type:  "json_invalid",
			Loc:   []any{"body", offset},
			Msg:   "JSON decode error",
			Input: map[string]any{},
			Ctx:   map[string]any{"error": err.Error()},
		})
	}

	object, ok := value.(map[string]any)
	if !ok {
		return dto.EmbedRequest{}, middleware.NewValidationError(middleware.ValidationDetail{
			Type:  "model_attributes_type",
			Loc:   []any{"body"},
			Msg:   "Input should be a valid dictionary or object to extract fields from",
			Input: value,
		})
	}

	field, present := object["text"]
	if !present {
		return dto.EmbedRequest{}, middleware.NewValidationError(middleware.ValidationDetail{
			Type:  "missing",
			Loc:   []any{"body", "text"},
			Msg:   "Field required",
			Input: object,
		})
	}

	text, ok := field.(string)
	if !ok {
		return dto.EmbedRequest{}, middleware.NewValidationError(middleware.ValidationDetail{
			Type:  "string_type",
			Loc:   []any{"body", "text"},
			Msg:   "Input should be a valid string",
			Input: field,
		})
	}

	return dto.EmbedRequest{Text: text}, nil
}

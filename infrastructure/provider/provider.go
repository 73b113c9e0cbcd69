// Package provider implements the sentence-embedding backends: a resident
// local model loaded through hugot, and a remote OpenAI-compatible endpoint.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Common errors.
var (
	// ErrAcceleratorUnavailable indicates the requested device could not be used.
	ErrAcceleratorUnavailable = errors.New("accelerator unavailable")

	// ErrModelNotFound indicates no model files could be located or fetched.
	ErrModelNotFound = errors.New("model not found")

	// ErrClosed indicates the embedder was used after Close.
	ErrClosed = errors.New("embedder closed")

	// ErrNotLoaded indicates Embed was called before Load.
	ErrNotLoaded = errors.New("embedder not loaded")
)

// Device selects where the local model runs.
type Device string

// Device values.
const (
	DeviceCUDA Device = "cuda"
	DeviceAuto Device = "auto"
	DeviceCPU  Device = "cpu"
)

// candidates returns the concrete devices to try, in order, for a policy.
func (d Device) candidates() []Device {
	switch d {
	case DeviceAuto:
		return []Device{DeviceCUDA, DeviceCPU}
	case DeviceCPU:
		return []Device{DeviceCPU}
	default:
		return []Device{DeviceCUDA}
	}
}

// EmbeddingRequest represents a request for embeddings.
type EmbeddingRequest struct {
	texts []string
}

// NewEmbeddingRequest creates a new EmbeddingRequest.
func NewEmbeddingRequest(texts []string) EmbeddingRequest {
	t := make([]string, len(texts))
	copy(t, texts)
	return EmbeddingRequest{texts: t}
}

// Texts returns the texts to embed.
func (r EmbeddingRequest) Texts() []string {
	t := make([]string, len(r.texts))
	copy(t, r.texts)
	return t
}

// EmbeddingResponse represents an embedding response.
type EmbeddingResponse struct {
	embeddings [][]float64
}

// NewEmbeddingResponse creates a new EmbeddingResponse.
func NewEmbeddingResponse(embeddings [][]float64) EmbeddingResponse {
	embs := make([][]float64, len(embeddings))
	for i, e := range embeddings {
		embs[i] = make([]float64, len(e))
		copy(embs[i], e)
	}
	return EmbeddingResponse{embeddings: embs}
}

// Embeddings returns the embedding vectors.
func (r EmbeddingResponse) Embeddings() [][]float64 {
	embs := make([][]float64, len(r.embeddings))
	for i, e := range r.embeddings {
		embs[i] = make([]float64, len(e))
		copy(embs[i], e)
	}
	return embs
}

// Embedder generates embeddings for text.
type Embedder interface {
	// Embed generates one normalized embedding per input text.
	Embed(ctx context.Context, req EmbeddingRequest) (EmbeddingResponse, error)

	// Close releases any resources held by the embedder.
	Close() error
}

// Loader is implemented by embedders that must be loaded before use.
type Loader interface {
	Load(ctx context.Context) error
}

// ProviderError wraps a failure from an embedding backend.
type ProviderError struct {
	operation  string
	statusCode int
	message    string
	cause      error
}

// NewProviderError creates a new ProviderError.
func NewProviderError(operation string, statusCode int, message string, cause error) *ProviderError {
	return &ProviderError{
		operation:  operation,
		statusCode: statusCode,
		message:    message,
		cause:      cause,
	}
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.statusCode > 0 {
		return fmt.Sprintf("%s failed (status %d): %s", e.operation, e.statusCode, e.message)
	}
	return fmt.Sprintf("%s failed: %s", e.operation, e.message)
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error { return e.cause }

// Operation returns the failed operation name.
func (e *ProviderError) Operation() string { return e.operation }

// StatusCode returns the upstream HTTP status, or 0.
func (e *ProviderError) StatusCode() int { return e.statusCode }

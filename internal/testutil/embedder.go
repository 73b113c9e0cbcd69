// Package testutil provides common test utilities and fixtures.
package testutil

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/helixml/jembed/infrastructure/provider"
)

// DefaultDimension matches the default model's output size.
const DefaultDimension = 768

// FakeEmbedder is a deterministic provider.Embedder for tests. Each text is
// hashed into a seed, expanded into a vector and normalized, so equal texts
// give equal vectors and the norm is always 1.
type FakeEmbedder struct {
	dim     int
	err     error
	loadErr error

	calls  atomic.Int64
	loads  atomic.Int64
	closed atomic.Bool

	mu    sync.Mutex
	texts []string
}

// NewFakeEmbedder creates a FakeEmbedder producing vectors of length dim.
func NewFakeEmbedder(dim int) *FakeEmbedder {
	return &FakeEmbedder{dim: dim}
}

// WithError makes every Embed call fail with err.
func (f *FakeEmbedder) WithError(err error) *FakeEmbedder {
	f.err = err
	return f
}

// WithLoadError makes Load fail with err.
func (f *FakeEmbedder) WithLoadError(err error) *FakeEmbedder {
	f.loadErr = err
	return f
}

// Load records the call and returns the configured load error.
func (f *FakeEmbedder) Load(_ context.Context) error {
	f.loads.Add(1)
	return f.loadErr
}

// Embed returns one deterministic unit vector per text.
func (f *FakeEmbedder) Embed(ctx context.Context, req provider.EmbeddingRequest) (provider.EmbeddingResponse, error) {
	if err := ctx.Err(); err != nil {
		return provider.EmbeddingResponse{}, err
	}
	f.calls.Add(1)
	if f.err != nil {
		return provider.EmbeddingResponse{}, f.err
	}

	texts := req.Texts()
	f.mu.Lock()
	f.texts = append(f.texts, texts...)
	f.mu.Unlock()

	embeddings := make([][]float64, len(texts))
	for i, text := range texts {
		embeddings[i] = f.vector(text)
	}
	return provider.NewEmbeddingResponse(embeddings), nil
}

func (f *FakeEmbedder) vector(text string) []float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	state := h.Sum64() | 1

	vec := make([]float64, f.dim)
	for i := range vec {
		// xorshift64
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		vec[i] = float64(int64(state%2001)-1000) / 1000
	}
	return provider.Normalize(vec)
}

// Close marks the embedder closed.
func (f *FakeEmbedder) Close() error {
	f.closed.Store(true)
	return nil
}

// Calls returns how many times Embed ran.
func (f *FakeEmbedder) Calls() int { return int(f.calls.Load()) }

// Loads returns how many times Load ran.
func (f *FakeEmbedder) Loads() int { return int(f.loads.Load()) }

// Closed reports whether Close was called.
func (f *FakeEmbedder) Closed() bool { return f.closed.Load() }

// Texts returns every text passed to Embed, in order.
func (f *FakeEmbedder) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.texts))
	copy(out, f.texts)
	return out
}

var (
	_ provider.Embedder = (*FakeEmbedder)(nil)
	_ provider.Loader   = (*FakeEmbedder)(nil)
)

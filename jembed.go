// Package jembed provides a resident sentence-embedding model behind a small
// library API.
//
// The model is loaded once when the client is created and stays in memory
// until Close. Every encode is L2-normalized.
//
// The hugot provider defaults to provider.DeviceCUDA, which only works in a
// binary built with -tags ORT against the ONNX Runtime CUDA libraries. The
// default build has the pure Go backend alone, so pass provider.DeviceAuto or
// provider.DeviceCPU there (DEVICE=auto or DEVICE=cpu for the server).
//
// Basic usage:
//
//	client, err := jembed.New(
//	    jembed.WithHugot(".jembed/models",
//	        provider.WithModelID("sonoisa/sentence-bert-base-ja-mean-tokens-v2"),
//	        provider.WithDevice(provider.DeviceAuto),
//	    ),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	vec, err := client.EmbedText(ctx, "今日はいい天気です")
package jembed

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/helixml/jembed/infrastructure/provider"
)

// Client holds the resident embedding model.
type Client struct {
	embedder provider.Embedder
	modelID  string
	logger   *slog.Logger
	closed   atomic.Bool
}

// New creates a Client and loads the configured model before returning.
// A failed load is returned as an error; no partially loaded client escapes.
func New(opts ...Option) (*Client, error) {
	return NewWithContext(context.Background(), opts...)
}

// NewWithContext is New with a context bounding the model load.
func NewWithContext(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := newClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		embedder provider.Embedder
		modelID  string
	)
	switch cfg.kind {
	case embedderHugot:
		hugotOpts := append([]provider.HugotOption{provider.WithHugotLogger(logger)}, cfg.hugotOptions...)
		h := provider.NewHugotEmbedding(cfg.modelDir, hugotOpts...)
		embedder, modelID = h, h.ModelID()
	case embedderOpenAI:
		o := provider.NewOpenAIEmbedding(cfg.openAIConfig)
		embedder, modelID = o, o.ModelID()
	case embedderCustom:
		embedder, modelID = cfg.embedder, cfg.modelID
	}
	if embedder == nil {
		return nil, ErrNoEmbedder
	}

	if loader, ok := embedder.(provider.Loader); ok {
		if err := loader.Load(ctx); err != nil {
			_ = embedder.Close()
			return nil, fmt.Errorf("load model: %w", err)
		}
	}

	logger.Info("embedder ready", slog.String("model", modelID))

	return &Client{
		embedder: embedder,
		modelID:  modelID,
		logger:   logger,
	}, nil
}

// EmbedText encodes a single text and returns its normalized vector.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float64, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	resp, err := c.embedder.Embed(ctx, provider.NewEmbeddingRequest([]string{text}))
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}

	embeddings := resp.Embeddings()
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("embed text: got %d vectors for 1 text", len(embeddings))
	}
	return embeddings[0], nil
}

// Embedder returns the underlying embedder.
func (c *Client) Embedder() provider.Embedder { return c.embedder }

// Model returns the identifier of the resident model.
func (c *Client) Model() string { return c.modelID }

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger { return c.logger }

// Close releases the model. Calling Close more than once returns nil.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	if err := c.embedder.Close(); err != nil {
		return fmt.Errorf("close embedder: %w", err)
	}

	c.logger.Info("jembed client closed")
	return nil
}

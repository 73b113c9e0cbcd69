package jembed

import "errors"

// Exported errors for library consumers.
var (
	// ErrNoEmbedder indicates no embedding backend was configured.
	ErrNoEmbedder = errors.New("jembed: no embedder configured")

	// ErrClientClosed indicates the client has been closed.
	ErrClientClosed = errors.New("jembed: client is closed")
)

// Package mcp provides Model Context Protocol server functionality.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Embedder encodes text with the resident model.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float64, error)
	Model() string
}

// Server wraps the MCP server with the embedding tools.
type Server struct {
	mcpServer *server.MCPServer
	embedder  Embedder
	version   string
	logger    *slog.Logger
}

// NewServer creates a new MCP server backed by embedder.
func NewServer(embedder Embedder, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		embedder: embedder,
		version:  version,
		logger:   logger,
	}

	mcpServer := server.NewMCPServer(
		"jembed",
		version,
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)

	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	embedTool := mcp.NewTool("embed",
		mcp.WithDescription("Encode Japanese text into a normalized sentence embedding"),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The text to embed"),
		),
	)
	mcpServer.AddTool(embedTool, s.handleEmbed)

	modelTool := mcp.NewTool("get_model",
		mcp.WithDescription("Get the identifier of the resident embedding model"),
	)
	mcpServer.AddTool(modelTool, s.handleGetModel)
}

type embedResult struct {
	Dim       int       `json:"dim"`
	Embedding []float64 `json:"embedding"`
}

// handleEmbed handles the embed tool invocation.
func (s *Server) handleEmbed(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text is required"), nil
	}

	vec, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		s.logger.Error("embed failed", slog.Any("error", err))
		return mcp.NewToolResultError("embedding failed"), nil
	}
	if vec == nil {
		vec = []float64{}
	}

	jsonBytes, err := json.Marshal(embedResult{Dim: len(vec), Embedding: vec})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleGetModel(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.embedder.Model()), nil
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio runs the MCP server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

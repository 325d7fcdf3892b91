package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lexai-study/lexai-retrieval/internal/answer"
	"github.com/lexai-study/lexai-retrieval/internal/library"
	"github.com/lexai-study/lexai-retrieval/internal/retrieval"
)

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
	cfg    Config
}

// Config holds server dependencies.
type Config struct {
	Library *library.Library
	// Generator answers ask_documents; nil disables the tool's answers.
	Generator *answer.Generator

	// Defaults fill top_k and min_score when a tool call omits them.
	Defaults retrieval.Defaults

	Logger *slog.Logger
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg Config) *Server {
	if cfg.Defaults.TopK == 0 {
		cfg.Defaults.TopK = retrieval.DefaultTopK
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	impl := &mcp.Implementation{
		Name:    "lexai-retrieval",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)
	s := &Server{server: server, cfg: cfg}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_documents",
		Description: "Semantic search over one user's uploaded legal documents. Returns ranked chunks with scores and source metadata.",
	}, s.searchDocuments)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_document_chunks",
		Description: "Return every stored chunk of one document in original order.",
	}, s.getDocumentChunks)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_document",
		Description: "Delete a document's vectors and record.",
	}, s.deleteDocument)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_stats",
		Description: "Report vector index statistics, optionally with one user's document list.",
	}, s.indexStats)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_documents",
		Description: "Answer a question from one user's documents with [Source N] citations.",
	}, s.askDocuments)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingest_document",
		Description: "Extract, chunk, embed and store a document given as plain text or base64 PDF.",
	}, s.ingestDocument)

	return s
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}

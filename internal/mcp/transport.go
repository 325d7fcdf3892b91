package mcp

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HTTPHandlerOptions configures the streamable HTTP transport.
type HTTPHandlerOptions struct {
	// Stateless disables session tracking. Every tool here is request scoped,
	// so stateless mode is safe behind a load balancer.
	Stateless bool
	// JSONResponse answers with application/json instead of an SSE stream.
	JSONResponse bool
}

// NewHTTPHandler mounts the server on the streamable HTTP transport:
//
//	mux.Handle("/mcp", mcpserver.NewHTTPHandler(server, nil))
func NewHTTPHandler(server *Server, opts *HTTPHandlerOptions) http.Handler {
	if opts == nil {
		opts = &HTTPHandlerOptions{}
	}

	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server.MCPServer()
	}, &mcp.StreamableHTTPOptions{
		Stateless:    opts.Stateless,
		JSONResponse: opts.JSONResponse,
	})
}

// NewMux routes the landing page, health check and MCP endpoint.
func NewMux(server *Server, health HealthChecker, opts *HTTPHandlerOptions) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", NewLandingHandler())
	mux.HandleFunc("/health", NewHealthHandler(health))
	mux.Handle("/mcp", NewHTTPHandler(server, opts))
	return mux
}

// Package mcp exposes Troy's price data over the Model Context Protocol so
// AI agents can read spot quotes without going through the HTTP API.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/troyapi/troy/internal/price"
)

// MCPServer wraps the mcp-go server with Troy's tool and resource
// registrations. All tools are read-only; key and account management stay
// on the HTTP API.
type MCPServer struct {
	cache  *price.Cache
	logger *slog.Logger
	server *server.MCPServer
}

// NewMCPServer creates an MCPServer backed by the given price cache. The
// returned server is ready to serve over stdio or HTTP.
func NewMCPServer(cache *price.Cache, logger *slog.Logger) *MCPServer {
	s := &MCPServer{
		cache:  cache,
		logger: logger,
	}

	mcpServer := server.NewMCPServer(
		"Troy Spot Prices",
		"1.0.0",
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go MCPServer instance. Useful for
// advanced configuration or testing.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio starts the MCP server in stdio mode. This is the primary
// integration path for MCP clients that launch the server as a subprocess.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(s.server)
}

// ServeHTTP starts the MCP server in Streamable HTTP mode, listening on
// the given address (e.g. ":3001"). This is suitable for remote MCP clients.
func (s *MCPServer) ServeHTTP(addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.server)
	s.logger.Info("MCP HTTP server starting", "addr", addr)
	return httpServer.Start(addr)
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(true),
	}
}

func boolPtr(b bool) *bool {
	return &b
}

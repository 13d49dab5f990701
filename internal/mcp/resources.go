package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// registerResources adds MCP resource definitions to the server. Resources
// provide read-only data that LLM clients can load into their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {

	// -------------------------------------------------------------------
	// troy://commodities — the commodity list for this deployment
	// -------------------------------------------------------------------
	srv.AddResource(
		mcp.NewResource(
			"troy://commodities",
			"Quoted Commodities",
			mcp.WithResourceDescription(
				"The precious metals this Troy deployment quotes. Every entry "+
					"is a valid input to the troy_spot_price tool.",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handleCommoditiesResource,
	)
}

// handleCommoditiesResource returns a JSON list of the quoted commodities.
func (s *MCPServer) handleCommoditiesResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	b, err := json.MarshalIndent(map[string]interface{}{
		"commodities": s.cache.Commodities(),
		"currency":    "USD",
		"unit":        "per troy ounce",
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal commodities: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "troy://commodities",
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

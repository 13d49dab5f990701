package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/troyapi/troy/internal/price"
)

// registerTools registers all Troy MCP tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {

	srv.AddTool(
		mcp.NewTool("troy_list_commodities",
			mcp.WithDescription(
				"List the precious metals this Troy deployment quotes. Returns each "+
					"commodity name accepted by troy_spot_price. Use this first to "+
					"discover what can be priced.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListCommodities,
	)

	srv.AddTool(
		mcp.NewTool("troy_spot_price",
			mcp.WithDescription(
				"Get the current spot price for a precious metal in USD per troy "+
					"ounce. Quotes are cached briefly, so repeated calls within a "+
					"minute return the same value. The fetched_at field tells you "+
					"how old the quote is.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("commodity",
				mcp.Required(),
				mcp.Description("Commodity name, e.g. \"gold\" or \"silver\". See troy_list_commodities."),
			),
		),
		s.handleSpotPrice,
	)
}

// handleListCommodities returns the configured commodity names.
func (s *MCPServer) handleListCommodities(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	return successJSON(map[string]interface{}{
		"commodities": s.cache.Commodities(),
	})
}

// handleSpotPrice returns a spot quote for one commodity.
func (s *MCPServer) handleSpotPrice(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	commodity, err := requireString(request, "commodity")
	if err != nil {
		return toolError("%v", err)
	}

	quote, err := s.cache.GetPrice(ctx, commodity)
	if err != nil {
		switch {
		case errors.Is(err, price.ErrUnknownCommodity):
			return toolError("unknown commodity %q; known: %v", commodity, s.cache.Commodities())
		case errors.Is(err, price.ErrSourceUnavailable):
			return toolError("price source is unavailable for %q right now; try again shortly", commodity)
		default:
			s.logger.Error("spot price tool failed", "commodity", commodity, "error", err)
			return toolError("failed to fetch price for %q", commodity)
		}
	}

	return successJSON(quote)
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/troyapi/troy/internal/config"
	tmcp "github.com/troyapi/troy/internal/mcp"
	"github.com/troyapi/troy/internal/price"
	"github.com/troyapi/troy/internal/quote"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that exposes spot price lookups
as tools for AI agents like Claude. Supports stdio (default) and HTTP transports.

In stdio mode, the MCP server communicates over stdin/stdout using JSON-RPC,
suitable for direct integration with Claude Desktop or other MCP clients.

In HTTP mode, the server listens on the specified port for streaming
connections.`,
		Example: `  troy mcp                              # stdio mode (for Claude Desktop)
  troy mcp --transport http --port 3001 # HTTP mode`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(transport, port)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().IntVar(&port, "port", 3001, "HTTP port (only used with --transport http)")

	return cmd
}

func runMCP(transport string, port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Logs go to stderr; stdout carries the JSON-RPC stream in stdio mode.
	logger := newLogger(cfg.Logging)

	window := config.Duration(cfg.Prices.FreshnessWindow, price.DefaultFreshnessWindow)
	source := quote.NewYahooWithTimeout(config.Duration(cfg.Prices.SourceTimeout, 0))
	cache := price.NewCache(source, cfg.Prices.Commodities, window, logger)

	mcpSrv := tmcp.NewMCPServer(cache, logger)

	switch transport {
	case "stdio":
		return mcpSrv.ServeStdio()
	case "http":
		addr := fmt.Sprintf(":%d", port)
		logger.Info("starting MCP HTTP server", "addr", addr)
		return mcpSrv.ServeHTTP(addr)
	default:
		return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", transport)
	}
}

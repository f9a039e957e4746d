// Package server builds the MCP server and carries build metadata.
package server

import (
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/plotwatch/pkg/middleware"
)

// Build metadata, set at build time with -ldflags.
var (
	Name    = "plotwatch"
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Toolkit registers tools on an MCP server.
type Toolkit interface {
	RegisterTools(s *mcp.Server)
}

// New creates an MCP server with the given toolkits registered. Tool calls
// are traced and logged.
func New(toolkits ...Toolkit) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{Name: Name, Version: Version}, nil)
	s.AddReceivingMiddleware(middleware.MCPToolCallMiddleware())
	for _, tk := range toolkits {
		tk.RegisterTools(s)
	}
	return s
}

// Handler serves s over the streamable HTTP transport.
func Handler(s *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s }, nil)
}

// Info returns a one-line version string.
func Info() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", Name, Version, Commit, Date)
}

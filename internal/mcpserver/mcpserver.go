// Package mcpserver exposes specmock's generator and template interpreter as
// Model Context Protocol tools.
package mcpserver

import (
	"context"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server with common functionality.
type Server struct {
	server *mcp.Server
}

// New creates a new MCP server with the given name and version.
func New(name, version string) *Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    name,
		Version: version,
	}, nil)

	return &Server{
		server: server,
	}
}

// RegisterTool registers a tool with the MCP server.
// The handler must be a function with signature:
// func(ctx context.Context, req *mcp.CallToolRequest, input In) (*mcp.CallToolResult, any, error)
func RegisterTool[In any](s *Server, tool *mcp.Tool, handler func(context.Context, *mcp.CallToolRequest, In) (*mcp.CallToolResult, any, error)) {
	mcp.AddTool(s.server, tool, handler)
}

// Run serves over stdio until ctx is done or the client disconnects.
// JSON-RPC owns stdout, so logs must go to stderr.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, &mcp.StdioTransport{})
}

// Serve serves a single session over transport.
func (s *Server) Serve(ctx context.Context, transport mcp.Transport) error {
	if err := s.server.Run(ctx, transport); err != nil {
		log.Printf("MCP server failed: %v", err)
		return err
	}
	return nil
}

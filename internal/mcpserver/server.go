package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with the Coachwise support
// tools registered. The tools are read-only: support agents inspect disputes
// and preview refunds, they never transition tickets.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("coachwise", "0.1.0")
	client := NewCoachwiseClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolGetDispute, h.HandleGetDispute)
	s.AddTool(ToolListBookingDisputes, h.HandleListBookingDisputes)
	s.AddTool(ToolPreviewCancellation, h.HandlePreviewCancellation)
	s.AddTool(ToolGetCoachPolicy, h.HandleGetCoachPolicy)

	return s
}

package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the Coachwise support MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolGetDispute = mcp.NewTool("get_dispute",
	mcp.WithDescription(
		"Fetch a dispute ticket by ID: current status, requested and resolved "+
			"refund amounts, and the full message history. "+
			"Use this to understand where a refund dispute stands."),
	mcp.WithString("ticket_id",
		mcp.Required(),
		mcp.Description("The dispute ticket ID (e.g. 'dsp_1a2b3c...')")),
)

var ToolListBookingDisputes = mcp.NewTool("list_booking_disputes",
	mcp.WithDescription(
		"List every dispute ticket ever opened for a booking, oldest first, "+
			"including closed and reopened ones. "+
			"Use this to see a booking's full refund history."),
	mcp.WithString("booking_id",
		mcp.Required(),
		mcp.Description("The booking ID (e.g. 'bk_1a2b3c...')")),
)

var ToolPreviewCancellation = mcp.NewTool("preview_cancellation",
	mcp.WithDescription(
		"Compute what a client would get back if they cancelled a booking now "+
			"(or at a given time), under the coach's tiered cancellation policy. "+
			"Read-only; nothing is cancelled or refunded."),
	mcp.WithString("booking_id",
		mcp.Required(),
		mcp.Description("The booking ID to evaluate")),
	mcp.WithString("at",
		mcp.Description("Optional RFC 3339 timestamp to evaluate at; defaults to now")),
)

var ToolGetCoachPolicy = mcp.NewTool("get_coach_policy",
	mcp.WithDescription(
		"Fetch a coach's cancellation policy: minimum notice hours and the "+
			"refund percentage tiers by hours of notice."),
	mcp.WithString("coach_id",
		mcp.Required(),
		mcp.Description("The coach ID (e.g. 'co_1a2b3c...')")),
)

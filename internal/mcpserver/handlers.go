package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *CoachwiseClient
}

func NewHandlers(client *CoachwiseClient) *Handlers {
	return &Handlers{client: client}
}

// JSON shapes of the platform API, trimmed to what the tools render.

type apiAmount struct {
	Cents    int64  `json:"cents"`
	Currency string `json:"currency"`
}

func (a apiAmount) String() string {
	sign := ""
	c := a.Cents
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, c/100, c%100, a.Currency)
}

type apiMessage struct {
	SenderID string    `json:"senderId"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sentAt"`
}

type apiResolution struct {
	Action            string    `json:"action"`
	ResolvedBy        string    `json:"resolvedBy"`
	ResolvedAt        time.Time `json:"resolvedAt"`
	FinalRefundAmount apiAmount `json:"finalRefundAmount"`
	Notes             string    `json:"notes"`
}

type apiTicket struct {
	ID              string         `json:"id"`
	BookingID       string         `json:"bookingId"`
	ClientID        string         `json:"clientId"`
	CoachID         string         `json:"coachId"`
	Status          string         `json:"status"`
	RequestedRefund apiAmount      `json:"requestedRefund"`
	Reason          string         `json:"reason"`
	Messages        []apiMessage   `json:"messages"`
	Resolution      *apiResolution `json:"resolution"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// HandleGetDispute renders one ticket.
func (h *Handlers) HandleGetDispute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ticketID := req.GetString("ticket_id", "")
	if ticketID == "" {
		return mcp.NewToolResultError("ticket_id is required"), nil
	}

	raw, err := h.client.GetDispute(ctx, ticketID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch dispute: %v", err)), nil
	}

	var t apiTicket
	if err := json.Unmarshal(raw, &t); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse dispute: %v", err)), nil
	}
	return mcp.NewToolResultText(formatTicket(&t)), nil
}

// HandleListBookingDisputes renders a booking's full dispute history.
func (h *Handlers) HandleListBookingDisputes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bookingID := req.GetString("booking_id", "")
	if bookingID == "" {
		return mcp.NewToolResultError("booking_id is required"), nil
	}

	raw, err := h.client.ListBookingDisputes(ctx, bookingID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list disputes: %v", err)), nil
	}

	var resp struct {
		Disputes []apiTicket `json:"disputes"`
		Count    int         `json:"count"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse disputes: %v", err)), nil
	}

	if resp.Count == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No disputes found for booking %s.", bookingID)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d dispute(s) for booking %s:\n", resp.Count, bookingID)
	for i := range resp.Disputes {
		t := &resp.Disputes[i]
		fmt.Fprintf(&sb, "\n%d. %s [%s] requested %s on %s\n",
			i+1, t.ID, t.Status, t.RequestedRefund, t.CreatedAt.Format("2006-01-02"))
		if t.Resolution != nil {
			fmt.Fprintf(&sb, "   Resolution: %s by %s, refund %s\n",
				t.Resolution.Action, t.Resolution.ResolvedBy, t.Resolution.FinalRefundAmount)
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandlePreviewCancellation renders a hypothetical cancellation outcome.
func (h *Handlers) HandlePreviewCancellation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bookingID := req.GetString("booking_id", "")
	if bookingID == "" {
		return mcp.NewToolResultError("booking_id is required"), nil
	}
	at := req.GetString("at", "")

	raw, err := h.client.PreviewCancellation(ctx, bookingID, at)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to preview cancellation: %v", err)), nil
	}

	var outcome struct {
		Eligible         bool      `json:"eligible"`
		ReasonCode       string    `json:"reasonCode"`
		RefundPercentage int       `json:"refundPercentage"`
		GrossRefund      apiAmount `json:"grossRefund"`
		AmountRetained   apiAmount `json:"amountRetained"`
	}
	if err := json.Unmarshal(raw, &outcome); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse outcome: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Cancellation preview for booking %s:\n", bookingID)
	if !outcome.Eligible {
		sb.WriteString("Not eligible for a refund: the cancellation is inside the minimum notice window.\n")
		fmt.Fprintf(&sb, "Amount retained by the coach: %s\n", outcome.AmountRetained)
	} else {
		fmt.Fprintf(&sb, "Refund: %d%%, %s back to the client\n",
			outcome.RefundPercentage, outcome.GrossRefund)
		fmt.Fprintf(&sb, "Retained by the coach: %s\n", outcome.AmountRetained)
		fmt.Fprintf(&sb, "Basis: %s\n", outcome.ReasonCode)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleGetCoachPolicy renders a coach's cancellation policy.
func (h *Handlers) HandleGetCoachPolicy(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	coachID := req.GetString("coach_id", "")
	if coachID == "" {
		return mcp.NewToolResultError("coach_id is required"), nil
	}

	raw, err := h.client.GetCoachPolicy(ctx, coachID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch policy: %v", err)), nil
	}

	var pol struct {
		ID                 string `json:"id"`
		MinimumNoticeHours int    `json:"minimumNoticeHours"`
		Tiers              []struct {
			HoursBeforeStart int `json:"hoursBeforeStart"`
			RefundPercentage int `json:"refundPercentage"`
		} `json:"tiers"`
	}
	if err := json.Unmarshal(raw, &pol); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse policy: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Cancellation policy %s for coach %s:\n", pol.ID, coachID)
	fmt.Fprintf(&sb, "Minimum notice: %dh (cancelling later than this refunds nothing)\n", pol.MinimumNoticeHours)
	for _, tier := range pol.Tiers {
		fmt.Fprintf(&sb, "- at least %dh notice: %d%% refund\n", tier.HoursBeforeStart, tier.RefundPercentage)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func formatTicket(t *apiTicket) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Dispute %s [%s]\n", t.ID, t.Status)
	fmt.Fprintf(&sb, "Booking: %s | Client: %s | Coach: %s\n", t.BookingID, t.ClientID, t.CoachID)
	fmt.Fprintf(&sb, "Requested refund: %s\n", t.RequestedRefund)
	fmt.Fprintf(&sb, "Opened: %s\n", t.CreatedAt.Format(time.RFC3339))

	if t.Resolution != nil {
		fmt.Fprintf(&sb, "\nResolution: %s by %s on %s\n",
			t.Resolution.Action, t.Resolution.ResolvedBy, t.Resolution.ResolvedAt.Format("2006-01-02"))
		fmt.Fprintf(&sb, "Final refund: %s\n", t.Resolution.FinalRefundAmount)
		if t.Resolution.Notes != "" {
			fmt.Fprintf(&sb, "Notes: %s\n", t.Resolution.Notes)
		}
	}

	if len(t.Messages) > 0 {
		sb.WriteString("\nMessage history:\n")
		for _, m := range t.Messages {
			fmt.Fprintf(&sb, "[%s] %s: %s\n", m.SentAt.Format("2006-01-02 15:04"), m.SenderID, m.Content)
		}
	}
	return sb.String()
}

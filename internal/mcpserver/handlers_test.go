package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test helpers ---

func newTestSetup(handler http.Handler) (*Handlers, func()) {
	ts := httptest.NewServer(handler)
	client := NewCoachwiseClient(Config{APIURL: ts.URL})
	return NewHandlers(client), ts.Close
}

func makeRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	if args == nil {
		args = map[string]any{}
	}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected at least one content block")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

func sampleTicket() map[string]any {
	return map[string]any{
		"id":        "dsp_1a2b3c4d5e6f7a8b9c0d1e2f",
		"bookingId": "bk_0011223344556677",
		"clientId":  "cl_aabbccdd",
		"coachId":   "co_eeff0011",
		"status":    "resolved_by_coach",
		"requestedRefund": map[string]any{
			"cents": 10000, "currency": "CHF",
		},
		"reason":    "coach cancelled",
		"createdAt": "2026-03-10T09:00:00Z",
		"messages": []map[string]any{
			{"senderId": "cl_aabbccdd", "content": "coach cancelled", "sentAt": "2026-03-10T09:00:00Z"},
			{"senderId": "co_eeff0011", "content": "half seems fair", "sentAt": "2026-03-10T10:00:00Z"},
		},
		"resolution": map[string]any{
			"action":            "refund_approved",
			"resolvedBy":        "co_eeff0011",
			"resolvedAt":        "2026-03-10T10:00:00Z",
			"finalRefundAmount": map[string]any{"cents": 5000, "currency": "CHF"},
		},
	}
}

// --- Client tests ---

func TestClient_HTTPError_WithAPIMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "not_found",
			"message": "dispute ticket not found",
		})
	}))
	defer ts.Close()

	client := NewCoachwiseClient(Config{APIURL: ts.URL})
	_, err := client.GetDispute(context.Background(), "dsp_missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "dispute ticket not found")
}

func TestClient_PreviewCancellationQuery(t *testing.T) {
	var gotAt string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAt = r.URL.Query().Get("at")
		_, _ = w.Write([]byte(`{"eligible":true}`))
	}))
	defer ts.Close()

	client := NewCoachwiseClient(Config{APIURL: ts.URL})
	_, err := client.PreviewCancellation(context.Background(), "bk_1", "2026-03-10T09:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-10T09:00:00Z", gotAt)
}

// --- Handler tests ---

func TestHandleGetDispute(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/disputes/dsp_1a2b3c4d5e6f7a8b9c0d1e2f", r.URL.Path)
		_ = json.NewEncoder(w).Encode(sampleTicket())
	}))
	defer cleanup()

	result, err := h.HandleGetDispute(context.Background(),
		makeRequest(map[string]any{"ticket_id": "dsp_1a2b3c4d5e6f7a8b9c0d1e2f"}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "resolved_by_coach")
	assert.Contains(t, text, "100.00 CHF")
	assert.Contains(t, text, "Final refund: 50.00 CHF")
	assert.Contains(t, text, "half seems fair")
}

func TestHandleGetDisputeMissingArg(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("API should not be called without ticket_id")
	}))
	defer cleanup()

	result, err := h.HandleGetDispute(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleListBookingDisputes(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"disputes": []map[string]any{sampleTicket()},
			"count":    1,
		})
	}))
	defer cleanup()

	result, err := h.HandleListBookingDisputes(context.Background(),
		makeRequest(map[string]any{"booking_id": "bk_0011223344556677"}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "1 dispute(s)")
	assert.Contains(t, text, "refund_approved")
}

func TestHandleListBookingDisputesEmpty(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"disputes": []any{}, "count": 0})
	}))
	defer cleanup()

	result, err := h.HandleListBookingDisputes(context.Background(),
		makeRequest(map[string]any{"booking_id": "bk_empty01"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "No disputes found")
}

func TestHandlePreviewCancellation(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"eligible":         true,
			"reasonCode":       "TIER_MATCHED",
			"refundPercentage": 50,
			"grossRefund":      map[string]any{"cents": 5000, "currency": "CHF"},
			"amountRetained":   map[string]any{"cents": 5000, "currency": "CHF"},
		})
	}))
	defer cleanup()

	result, err := h.HandlePreviewCancellation(context.Background(),
		makeRequest(map[string]any{"booking_id": "bk_0011223344556677"}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "50%")
	assert.Contains(t, text, "50.00 CHF back to the client")
}

func TestHandlePreviewCancellationIneligible(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"eligible":       false,
			"reasonCode":     "MINIMUM_NOTICE_VIOLATED",
			"amountRetained": map[string]any{"cents": 10000, "currency": "CHF"},
		})
	}))
	defer cleanup()

	result, err := h.HandlePreviewCancellation(context.Background(),
		makeRequest(map[string]any{"booking_id": "bk_0011223344556677"}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "Not eligible")
	assert.Contains(t, text, "100.00 CHF")
}

func TestHandleGetCoachPolicy(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/coaches/co_eeff0011/policy", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":                 "pol_12345678",
			"coachId":            "co_eeff0011",
			"minimumNoticeHours": 12,
			"tiers": []map[string]any{
				{"hoursBeforeStart": 24, "refundPercentage": 100},
				{"hoursBeforeStart": 12, "refundPercentage": 50},
			},
		})
	}))
	defer cleanup()

	result, err := h.HandleGetCoachPolicy(context.Background(),
		makeRequest(map[string]any{"coach_id": "co_eeff0011"}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "Minimum notice: 12h")
	assert.Contains(t, text, "at least 24h notice: 100% refund")
}

func TestHandlerSurfacesAPIError(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance"))
	}))
	defer cleanup()

	result, err := h.HandleGetDispute(context.Background(),
		makeRequest(map[string]any{"ticket_id": "dsp_1a2b3c4d5e6f7a8b9c0d1e2f"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "503")
}

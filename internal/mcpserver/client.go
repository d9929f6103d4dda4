package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Config holds the connection settings for the Coachwise platform API.
type Config struct {
	APIURL string // Base URL, e.g. "http://localhost:8080"
}

// CoachwiseClient is a pure HTTP client for the platform's dispute API.
type CoachwiseClient struct {
	cfg        Config
	httpClient *http.Client
}

func NewCoachwiseClient(cfg Config) *CoachwiseClient {
	return &CoachwiseClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *CoachwiseClient) doRequest(ctx context.Context, method, path string, query url.Values) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// GetDispute fetches one dispute ticket.
func (c *CoachwiseClient) GetDispute(ctx context.Context, ticketID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/disputes/"+ticketID, nil)
}

// ListBookingDisputes lists every ticket for a booking.
func (c *CoachwiseClient) ListBookingDisputes(ctx context.Context, bookingID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/bookings/"+bookingID+"/disputes", nil)
}

// PreviewCancellation evaluates a hypothetical cancellation.
func (c *CoachwiseClient) PreviewCancellation(ctx context.Context, bookingID, at string) (json.RawMessage, error) {
	var q url.Values
	if at != "" {
		q = url.Values{"at": []string{at}}
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/bookings/"+bookingID+"/cancellation-preview", q)
}

// GetCoachPolicy fetches the coach's cancellation policy.
func (c *CoachwiseClient) GetCoachPolicy(ctx context.Context, coachID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/coaches/"+coachID+"/policy", nil)
}

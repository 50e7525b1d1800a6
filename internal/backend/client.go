// Package backend is the HTTP client for the action-execution service.
// The backend is a black box: POST /api/execute runs one action and
// GET /health reports readiness. Any transport failure or non-2xx
// response surfaces as an error here; the governor converts those into
// structured failure results.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"warden/internal/domain"
)

const maxErrorBody = 512

// Client calls the execution backend over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a backend client. Per-call deadlines come from
// the caller's context; the transport-level timeout is a backstop for
// calls issued without one.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type executeRequest struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// Execute submits the action and decodes the backend's
// {success, data|error} response.
func (c *Client) Execute(ctx context.Context, action domain.Action) (domain.ExecutionResult, error) {
	body, err := json.Marshal(executeRequest{Type: action.Type, Params: action.Params})
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("marshal execute request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/execute", bytes.NewReader(body))
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("build execute request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("execution backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return domain.ExecutionResult{}, fmt.Errorf("execution backend returned %d: %s",
			resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var result domain.ExecutionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("decode execute response: %w", err)
	}
	return result, nil
}

// Health checks backend readiness; any non-2xx status is an error.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execution backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("execution backend health returned %d", resp.StatusCode)
	}
	return nil
}

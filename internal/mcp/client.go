package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/evobot/wa-rag-bridge/internal/server"
)

// Client is the HTTP client for the bridge admin API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new admin API client. apiKey may be empty.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 3 * time.Minute,
		},
	}
}

// PendingMessages is the queue of a chat that has not been flushed yet
type PendingMessages struct {
	ChatID   string   `json:"chat_id"`
	Count    int      `json:"count"`
	Messages []string `json:"messages"`
}

// Status gets the coordinator overview
func (c *Client) Status(ctx context.Context) (*server.StatusResponse, error) {
	var result server.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/buffer/status", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Pending gets the buffered messages of a chat
func (c *Client) Pending(ctx context.Context, chatID string) (*PendingMessages, error) {
	var result PendingMessages
	if err := c.do(ctx, http.MethodGet, "/api/buffer/"+url.PathEscape(chatID), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Flush flushes a chat immediately and returns the run outcome
func (c *Client) Flush(ctx context.Context, chatID string) (*server.FlushResponse, error) {
	var result server.FlushResponse
	path := fmt.Sprintf("/api/buffer/%s/flush", url.PathEscape(chatID))
	if err := c.do(ctx, http.MethodPost, path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ClearBuffer drops the pending messages of a chat
func (c *Client) ClearBuffer(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodDelete, "/api/buffer/"+url.PathEscape(chatID), nil)
}

// ClearHistory drops the stored conversation of a chat
func (c *Client) ClearHistory(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodDelete, "/api/history/"+url.PathEscape(chatID), nil)
}

func (c *Client) do(ctx context.Context, method, path string, result any) error {
	var body io.Reader
	if method == http.MethodPost {
		body = bytes.NewReader([]byte("{}"))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

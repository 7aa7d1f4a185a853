package evolution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 10 * time.Second
	userSuffix     = "@s.whatsapp.net"
	groupSuffix    = "@g.us"
)

// ErrAllFormatsFailed is returned when no number format was accepted
var ErrAllFormatsFailed = errors.New("evolution: all number formats failed")

// Config contains Evolution API settings
type Config struct {
	BaseURL  string
	Instance string
	APIKey   string
	Timeout  time.Duration
	// SendRate limits outgoing messages per second, 0 disables the limit
	SendRate float64
}

// Client is the Evolution API client
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a new Evolution API client
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With("component", "evolution"),
	}
	if cfg.SendRate > 0 {
		burst := int(cfg.SendRate)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.SendRate), burst)
	}
	return c
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

// SendText delivers text to a WhatsApp number. The full JID form is tried
// first, then the bare number; a response reporting that the number does
// not exist moves on to the next form.
func (c *Client) SendText(ctx context.Context, number, text string) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("evolution: rate limit wait: %w", err)
		}
	}

	clean := CleanNumber(number)
	formats := []string{clean + userSuffix, clean}

	var errs []error
	for _, format := range formats {
		err := c.send(ctx, format, text)
		if err == nil {
			c.logger.Info("message sent", "number", format)
			return nil
		}
		c.logger.Debug("send attempt failed", "number", format, "error", err)
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("%w: %w", ErrAllFormatsFailed, errors.Join(errs...))
}

func (c *Client) send(ctx context.Context, number, text string) error {
	body, err := json.Marshal(sendTextRequest{Number: number, Text: text})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/message/sendText/%s", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Instance)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}
	if numberMissing(respBody) {
		return fmt.Errorf("number %s does not exist", number)
	}
	return nil
}

// existsMarker is the per-number lookup result Evolution embeds in replies
type existsMarker struct {
	Exists *bool `json:"exists"`
}

type sendTextResponse struct {
	Exists   *bool           `json:"exists"`
	Message  json.RawMessage `json:"message"`
	Response *struct {
		Message json.RawMessage `json:"message"`
	} `json:"response"`
}

// numberMissing detects the "exists": false marker Evolution returns with a
// success status when the number is not on WhatsApp. Only the decoded field
// counts, never the echoed message text.
func numberMissing(body []byte) bool {
	var resp sendTextResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return false
	}
	if resp.Exists != nil && !*resp.Exists {
		return true
	}
	lists := []json.RawMessage{resp.Message}
	if resp.Response != nil {
		lists = append(lists, resp.Response.Message)
	}
	for _, raw := range lists {
		var markers []existsMarker
		if len(raw) == 0 || json.Unmarshal(raw, &markers) != nil {
			continue
		}
		for _, m := range markers {
			if m.Exists != nil && !*m.Exists {
				return true
			}
		}
	}
	return false
}

// CleanNumber strips WhatsApp address suffixes
func CleanNumber(number string) string {
	n := strings.TrimSuffix(number, userSuffix)
	return strings.TrimSuffix(n, groupSuffix)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fleetbridge-systems/fleetbridge/internal/logging"
)

const (
	defaultCallTimeout = 30 * time.Second
	maxAttempts        = 3
	initialBackoff     = time.Second
)

// Client is the bounded-retry HTTP client shared by all adapters. Transient
// failures (network errors, 5xx) are retried up to maxAttempts with
// exponential backoff starting at initialBackoff; 4xx responses other than
// auth-expired are returned immediately.
type Client struct {
	httpClient *http.Client
	platform   string
}

// NewClient creates a Client for the named platform.
func NewClient(platform string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultCallTimeout},
		platform:   platform,
	}
}

// Request describes one vendor API call.
type Request struct {
	Method  string
	URL     string
	Body    any // marshalled to JSON when non-nil
	Headers map[string]string
	// ClassifyAuth maps a response to ErrAuthExpired when the vendor
	// signals an expired session. Optional.
	ClassifyAuth func(status int, body []byte) bool
}

// Do executes the request with the standard retry budget and decodes a JSON
// response into out when out is non-nil.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	var lastErr error
	backoff := initialBackoff

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		lastErr = c.doOnce(ctx, req, out)
		if lastErr == nil {
			return nil
		}
		if !Transient(lastErr) {
			return lastErr
		}
		slog.Warn("vendor call failed, retrying",
			logging.Platform(c.platform),
			slog.Int("attempt", attempt),
			logging.Error(lastErr),
		)
	}

	return fmt.Errorf("%s call failed after %d attempts: %w", c.platform, maxAttempts, lastErr)
}

func (c *Client) doOnce(ctx context.Context, req Request, out any) error {
	var bodyReader io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "FleetBridge/1.0")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("vendor request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if req.ClassifyAuth != nil && req.ClassifyAuth(resp.StatusCode, respBody) {
			return ErrAuthExpired
		}
		return &APIError{Platform: c.platform, StatusCode: resp.StatusCode, Body: truncate(string(respBody), 256)}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

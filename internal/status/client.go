package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client talks to a running Server.
type Client struct {
	base string
	hc   *http.Client
}

// NewClient accepts "host:port" or a full URL.
func NewClient(addr string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Second}
	}
	base := strings.TrimRight(addr, "/")
	if !strings.Contains(base, "://") {
		if strings.HasPrefix(base, ":") {
			base = "localhost" + base
		}
		base = "http://" + base
	}
	return &Client{base: base, hc: hc}
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	return c.do(ctx, http.MethodGet, "/status")
}

func (c *Client) Toggle(ctx context.Context) (Status, error) {
	return c.do(ctx, http.MethodPost, "/acquisition/toggle")
}

func (c *Client) SetPaused(ctx context.Context, paused bool) (Status, error) {
	if paused {
		return c.do(ctx, http.MethodPost, "/acquisition/pause")
	}
	return c.do(ctx, http.MethodPost, "/acquisition/resume")
}

func (c *Client) do(ctx context.Context, method, path string) (Status, error) {
	var st Status
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return st, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return st, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("decode status: %w", err)
	}
	return st, nil
}

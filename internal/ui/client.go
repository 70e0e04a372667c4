package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/msle237-lees/homelab-monitor/internal/store"
)

// Client fetches machine state from the dashboard API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient trims a trailing slash off baseURL and applies a request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type listEnvelope struct {
	Items  []store.Machine `json:"items"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// Machines returns all tracked machines, paging through the list endpoint.
func (c *Client) Machines(ctx context.Context) ([]store.Machine, error) {
	var out []store.Machine
	offset := 0
	for {
		env, err := c.page(ctx, offset)
		if err != nil {
			return nil, err
		}
		out = append(out, env.Items...)
		offset += len(env.Items)
		if offset >= env.Total || len(env.Items) == 0 {
			return out, nil
		}
	}
}

func (c *Client) page(ctx context.Context, offset int) (listEnvelope, error) {
	var env listEnvelope
	url := fmt.Sprintf("%s/machines?limit=500&offset=%d", c.baseURL, offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return env, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return env, fmt.Errorf("GET %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return env, fmt.Errorf("GET %s: status %d: %s", url, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return env, fmt.Errorf("decode machine list: %w", err)
	}
	return env, nil
}

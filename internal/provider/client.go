// Package provider is the HTTP client for the lookup provider.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/suspectuso/lookup-bot/internal/metrics"
)

// ErrEmptyQuery is returned before any request is made
var ErrEmptyQuery = errors.New("provider: empty query")

// Client is a lookup provider HTTP client
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *slog.Logger

	// Rate limiting
	mu       sync.Mutex
	lastCall time.Time
	minDelay time.Duration
}

// NewClient creates a new provider client
func NewClient(baseURL, token string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log:      log,
		minDelay: 200 * time.Millisecond, // ~5 RPS
	}
}

func (c *Client) throttle(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if wait := c.minDelay - time.Since(c.lastCall); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.lastCall = time.Now()
	return nil
}

func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values, out any) (err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.ProviderRequests.WithLabelValues(endpoint, result).Inc()
		metrics.ProviderLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	if err := c.throttle(ctx); err != nil {
		return err
	}

	u := c.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{Status: resp.StatusCode, Message: string(data)}
		}
		return fmt.Errorf("unmarshal: %w", err)
	}

	if env.Status != "success" {
		apiErr := env.Error
		if apiErr == nil {
			apiErr = &APIError{Message: "unexpected status " + env.Status}
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}

	return nil
}

// Search runs a full lookup across all sources
func (c *Client) Search(ctx context.Context, query string) (*SearchResult, error) {
	return c.query(ctx, "/search", query)
}

// Explain returns per-source hit counts without the records themselves
func (c *Client) Explain(ctx context.Context, query string) (*SearchResult, error) {
	return c.query(ctx, "/explain", query)
}

func (c *Client) query(ctx context.Context, endpoint, query string) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	var res SearchResult
	if err := c.doRequest(ctx, endpoint, url.Values{"q": {query}}, &res); err != nil {
		c.log.Warn("provider request failed", "endpoint", endpoint, "error", err)
		return nil, err
	}

	return &res, nil
}

// Sources lists the searchable databases
func (c *Client) Sources(ctx context.Context) (*SourcesResult, error) {
	var res SourcesResult
	if err := c.doRequest(ctx, "/sources", nil, &res); err != nil {
		c.log.Warn("provider request failed", "endpoint", "/sources", "error", err)
		return nil, err
	}
	return &res, nil
}

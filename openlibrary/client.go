// Package openlibrary issues typed GET requests against the Open Library host.
package openlibrary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aluiziolira/go-openlibrary-books/apperr"
	"github.com/aluiziolira/go-openlibrary-books/config"
	"github.com/aluiziolira/go-openlibrary-books/metrics"
)

// maxErrorBody bounds how much of a non-2xx body is kept for diagnostics.
const maxErrorBody = 64 << 10

// Query holds request parameters. Nil values are omitted.
type Query map[string]any

// Client performs JSON GET requests against a fixed base host.
type Client struct {
	cfg        *config.Config
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTransport swaps the round tripper, keeping the configured timeout.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		cp := *c.httpClient
		cp.Transport = rt
		c.httpClient = &cp
	}
}

// WithMetrics records request metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New builds a client configured from cfg.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	c := &Client{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   cfg.Timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        16,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BuildQueryString serialises q as "?k=v&..." with keys in sorted order.
// It returns "" when nothing remains after dropping nil values.
func BuildQueryString(q Query) string {
	if len(q) == 0 {
		return ""
	}
	params := url.Values{}
	for key, value := range q {
		if value == nil {
			continue
		}
		params.Set(key, fmt.Sprint(value))
	}
	encoded := params.Encode()
	if encoded == "" {
		return ""
	}
	return "?" + encoded
}

// IsAborted reports whether err comes from the caller cancelling the request.
func IsAborted(err error) bool {
	return errors.Is(err, context.Canceled)
}

// Get fetches path with query and decodes the JSON body into out. Non-2xx
// responses fail with *apperr.HTTPError; cancellation fails with an error for
// which IsAborted is true.
func (c *Client) Get(ctx context.Context, path string, query Query, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	target := c.baseURL + path + BuildQueryString(query)
	endpoint := endpointLabel(path)

	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("get %s: %w", path, err)
		}
		err := c.do(ctx, endpoint, target, out)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
			err = fmt.Errorf("get %s: %w", path, ctx.Err())
		}
		if IsAborted(err) || ctx.Err() != nil {
			return err
		}
		if attempt >= c.cfg.MaxRetries || !retryable(err) {
			return err
		}

		attempt++
		c.metrics.IncRetries()
		delay := c.backoff(attempt)
		slog.Debug("retrying request",
			slog.String("url", target),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.Any("error", err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("get %s: %w", path, ctx.Err())
		case <-timer.C:
		}
	}
}

func (c *Client) do(ctx context.Context, endpoint, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ObserveDuration(endpoint, time.Since(start))
	if err != nil {
		if IsAborted(err) {
			c.metrics.IncRequest(endpoint, "aborted")
		} else {
			c.metrics.IncRequest(endpoint, "transport_error")
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if readErr != nil && ctx.Err() != nil {
			return fmt.Errorf("read error body: %w", ctx.Err())
		}
		slog.Warn("non-2xx response",
			slog.Int("status", resp.StatusCode),
			slog.String("url", target),
		)
		c.metrics.IncRequest(endpoint, "http_error")
		return &apperr.HTTPError{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Body:       string(body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("read body: %w", ctx.Err())
		}
		c.metrics.IncRequest(endpoint, "decode_error")
		return fmt.Errorf("decode response from %s: %w", target, err)
	}

	c.metrics.IncRequest(endpoint, "success")
	return nil
}

func (c *Client) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := c.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := c.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

// retryable reports whether another attempt could plausibly succeed.
func retryable(err error) bool {
	var httpErr *apperr.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status == http.StatusTooManyRequests || httpErr.Status >= http.StatusInternalServerError
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func endpointLabel(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[:i]
	}
	if trimmed == "" {
		return "root"
	}
	return trimmed
}

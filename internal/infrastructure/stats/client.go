package stats

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"MoviePageViews/internal/domain"
	"MoviePageViews/internal/ports"
)

const (
	defaultTimeout   = 10 * time.Second
	maxPayloadBytes  = 8 << 20
	defaultUserAgent = "MoviePageViews/1.0"
)

// Client reads per-title page view documents from a stats service.
type Client struct {
	baseURL   string
	timeout   time.Duration
	userAgent string
	http      *http.Client
}

var _ ports.PageViewFetcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds connection setup and the full response read of one fetch.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithHTTPClient overrides the transport used for fetches.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every fetch.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua = strings.TrimSpace(ua); ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient builds a fetcher for baseURL; lookup keys are appended verbatim.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   baseURL,
		timeout:   defaultTimeout,
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Transport: newTransport(c.timeout)}
	}
	return c
}

// Timeout reports the per-fetch deadline.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Fetch performs a single GET for key. Every failure mode is reported as domain.ErrFetch.
func (c *Client) Fetch(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+key, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %v: %w", err, domain.ErrFetch)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request stats (latency=%v): %v: %w", time.Since(start), err, domain.ErrFetch)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("stats returned %s: %w", resp.Status, domain.ErrFetch)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read stats body: %v: %w", err, domain.ErrFetch)
	}
	if len(payload) > maxPayloadBytes {
		return nil, fmt.Errorf("stats body exceeds %d bytes: %w", maxPayloadBytes, domain.ErrFetch)
	}

	return payload, nil
}

func newTransport(timeout time.Duration) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = timeout
	transport.ResponseHeaderTimeout = timeout
	return transport
}

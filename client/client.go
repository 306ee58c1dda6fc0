// Package client provides the shared HTTP client used by every ecosystem
// registry implementation: a typed error taxonomy registries translate into
// domain errors, built on top of the teacher's fetch.Fetcher/
// CircuitBreakerFetcher transport rather than a second retry/backoff stack.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/xregistry/bridge/fetch"
)

// ErrNotFound is returned by Head when the upstream responds 404.
// GetJSON/GetBody report the same condition as an *HTTPError so callers can
// recover the status code (see HTTPError.IsNotFound).
var ErrNotFound = errors.New("not found")

// HTTPError represents a non-2xx HTTP response from an upstream registry.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// IsNotFound reports whether the error represents a 404 response.
func (e *HTTPError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// NotFoundError wraps ErrNotFound with ecosystem context.
type NotFoundError struct {
	Ecosystem string
	Name      string
	Version   string
}

func (e *NotFoundError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("%s: package %s version %s not found", e.Ecosystem, e.Name, e.Version)
	}
	return fmt.Sprintf("%s: package %s not found", e.Ecosystem, e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// RateLimitError is returned when the upstream rate limits requests.
type RateLimitError struct {
	RetryAfter int // seconds
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %d seconds", e.RetryAfter)
}

// RateLimiter paces outbound requests. nil is a valid no-op limiter.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// Client is an HTTP client for registry metadata APIs. It delegates the
// outbound leg to a fetch.FetcherInterface so metadata calls and artifact
// downloads share the same DNS-cached dialer and per-host circuit breaker.
type Client struct {
	fetcher   fetch.FetcherInterface
	userAgent string
	timeout   time.Duration
	limiter   RateLimiter
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithFetcher overrides the transport used for the outbound leg. Facades
// share a single fetch.CircuitBreakerFetcher between this and cachedclient
// so API metadata calls and artifact downloads trip the same breaker.
func WithFetcher(f fetch.FetcherInterface) Option {
	return func(c *Client) { c.fetcher = f }
}

// WithRateLimiter attaches a RateLimiter consulted before every request.
func WithRateLimiter(l RateLimiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithUserAgent sets the User-Agent header used when no explicit fetcher is
// supplied via WithFetcher.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a Client with the given options applied over sane
// defaults: 30s timeout, a circuit-breaking fetcher with the default
// "registries" user agent.
func NewClient(opts ...Option) *Client {
	c := &Client{
		userAgent: "registries",
		timeout:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = fetch.NewCircuitBreakerFetcher(fetch.NewFetcher(fetch.WithUserAgent(c.userAgent)))
	}
	return c
}

// DefaultClient returns a Client with sensible defaults.
func DefaultClient() *Client {
	return NewClient()
}

// WithUserAgent returns a shallow copy of the client with a new User-Agent
// and a freshly built fetcher to match it.
func (c *Client) WithUserAgent(ua string) *Client {
	clone := *c
	clone.userAgent = ua
	clone.fetcher = fetch.NewCircuitBreakerFetcher(fetch.NewFetcher(fetch.WithUserAgent(ua)))
	return &clone
}

// GetBody performs a GET request and returns the raw response body.
func (c *Client) GetBody(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	artifact, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, mapFetchError(err, url)
	}
	defer func() { _ = artifact.Body.Close() }()

	body, err := io.ReadAll(artifact.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	return body, nil
}

// GetJSON performs a GET request and decodes the JSON response into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.GetBody(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding JSON from %s: %w", url, err)
	}
	return nil
}

// Head performs a HEAD request, mainly used to probe existence/headers.
func (c *Client) Head(ctx context.Context, url string) (http.Header, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	size, contentType, err := c.fetcher.Head(ctx, url)
	if err != nil {
		if errors.Is(err, fetch.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, mapFetchError(err, url)
	}

	header := make(http.Header)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	if size >= 0 {
		header.Set("Content-Length", strconv.FormatInt(size, 10))
	}
	return header, nil
}

// mapFetchError translates the fetch package's sentinel transport errors
// into the bare *HTTPError values registries match against directly via
// err.(*core.HTTPError).
func mapFetchError(err error, url string) error {
	switch {
	case errors.Is(err, fetch.ErrNotFound):
		return &HTTPError{StatusCode: http.StatusNotFound, URL: url}
	case errors.Is(err, fetch.ErrRateLimited):
		return &HTTPError{StatusCode: http.StatusTooManyRequests, URL: url}
	case errors.Is(err, fetch.ErrUpstreamDown):
		return &HTTPError{StatusCode: http.StatusServiceUnavailable, URL: url}
	default:
		return fmt.Errorf("requesting %s: %w", url, err)
	}
}

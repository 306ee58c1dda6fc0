// Package cachedclient implements spec §4.A: a tiered (memory + disk) cache
// over upstream JSON fetches, with TTLs, single-flight coalescing of
// concurrent misses, and the NotFound/UpstreamUnavailable/UpstreamMalformed/
// RateLimited error taxonomy the rest of the bridge maps to RFC 9457
// responses. It is built on the teacher's fetch.Fetcher/CircuitBreakerFetcher
// for the outbound HTTP leg.
package cachedclient

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/xregistry/bridge/fetch"
)

var (
	// ErrNotFound mirrors a 404 from the upstream.
	ErrNotFound = errors.New("not found")
	// ErrUpstreamUnavailable covers network failure, 5xx, and timeouts.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUpstreamMalformed covers a non-JSON body where JSON was expected.
	ErrUpstreamMalformed = errors.New("upstream returned malformed JSON")
	// ErrRateLimited mirrors a 429 from the upstream.
	ErrRateLimited = errors.New("rate limited by upstream")
)

// Stats reports cache effectiveness, exposed via the facade's
// /performance/stats endpoint.
type Stats struct {
	Hits      int64
	Misses    int64
	Size      int
	Evictions int64
}

// defaultMaxCacheSize bounds the L1 LRU (spec §4.A: "eviction when size >
// MAX_CACHE_SIZE").
const defaultMaxCacheSize = 10000

// defaultTimeout is the hard per-upstream-call cap (spec §4.A).
const defaultTimeout = 5 * time.Second

// defaultMaxInFlight bounds outbound upstream concurrency per facade (spec
// §5: "upstream concurrency is capped (e.g. 16 in flight per facade);
// excess waiters queue").
const defaultMaxInFlight = 16

// entry is what L1/L2 actually store: the parsed value plus the deadline
// past which it must be treated as expired rather than warm.
type entry struct {
	Value     json.RawMessage `json:"value"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// Client is the tiered cache + single-flight fetcher described in spec §4.A.
type Client struct {
	fetcher  fetch.FetcherInterface
	cacheDir string

	l1 *lru.Cache
	sf singleflight.Group

	// inFlight and limiter are the backpressure gate on the outbound leg:
	// inFlight caps concurrent upstream calls, limiter smooths their rate.
	// Both queue rather than reject, per spec §5.
	inFlight chan struct{}
	limiter  *rate.Limiter

	mu        sync.Mutex
	hits      int64
	misses    int64
	evictions int64
}

// Option configures a Client.
type Option func(*Client)

// WithCacheDir sets the L2 on-disk cache directory. An empty dir disables L2.
func WithCacheDir(dir string) Option {
	return func(c *Client) { c.cacheDir = dir }
}

// WithMaxCacheSize overrides the L1 LRU capacity.
func WithMaxCacheSize(n int) Option {
	return func(c *Client) { c.l1 = lru.New(n) }
}

// WithMaxInFlight overrides the outbound upstream concurrency cap.
func WithMaxInFlight(n int) Option {
	return func(c *Client) { c.inFlight = make(chan struct{}, n) }
}

// WithRateLimit overrides the outbound request-per-second cap; burst allows
// that many requests through immediately before the steady rate applies.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// New creates a Client wrapping fetcher for the outbound HTTP leg.
func New(fetcher fetch.FetcherInterface, opts ...Option) *Client {
	c := &Client{
		fetcher:  fetcher,
		l1:       lru.New(defaultMaxCacheSize),
		inFlight: make(chan struct{}, defaultMaxInFlight),
		limiter:  rate.NewLimiter(rate.Limit(defaultMaxInFlight*2), defaultMaxInFlight),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.l1.OnEvicted = func(_ lru.Key, _ any) {
		c.mu.Lock()
		c.evictions++
		c.mu.Unlock()
	}
	return c
}

// FetchJSON fetches and decodes the JSON document at url into v, consulting
// the cache first and falling through to a single-flight-coalesced upstream
// fetch on miss (spec §4.A's fetchJSON and getOrCompute combined: every
// fetch in this package is cached).
func (c *Client) FetchJSON(ctx context.Context, url string, ttl time.Duration, v any) error {
	raw, err := c.GetOrCompute(ctx, url, ttl, func(ctx context.Context) (json.RawMessage, error) {
		return c.fetchUpstream(ctx, url)
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamMalformed, err)
	}
	return nil
}

// GetOrCompute returns the cached value for key if present and unexpired;
// otherwise it runs compute, with at most one outbound compute in flight per
// key across concurrent callers (single-flight).
func (c *Client) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	cacheKey := hashKey(key)

	if raw, ok := c.getL1(cacheKey); ok {
		c.recordHit()
		return raw, nil
	}
	if raw, ok := c.getL2(cacheKey); ok {
		c.recordHit()
		c.putL1(cacheKey, raw, ttl)
		return raw, nil
	}

	c.recordMiss()
	result, err, _ := c.sf.Do(cacheKey, func() (any, error) {
		raw, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.putL1(cacheKey, raw, ttl)
		c.putL2(cacheKey, raw, ttl)
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(json.RawMessage), nil
}

// Stats returns a snapshot of cache counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Size:      c.l1.Len(),
		Evictions: c.evictions,
	}
}

func (c *Client) recordHit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *Client) recordMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

func (c *Client) getL1(key string) (json.RawMessage, bool) {
	v, ok := c.l1.Get(key)
	if !ok {
		return nil, false
	}
	e := v.(*entry)
	if time.Now().After(e.ExpiresAt) {
		c.l1.Remove(key)
		return nil, false
	}
	return e.Value, true
}

func (c *Client) putL1(key string, raw json.RawMessage, ttl time.Duration) {
	c.l1.Add(key, &entry{Value: raw, ExpiresAt: time.Now().Add(ttl)})
}

func (c *Client) getL2(key string) (json.RawMessage, bool) {
	if c.cacheDir == "" {
		return nil, false
	}
	path := filepath.Join(c.cacheDir, key+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		// Corrupt file: delete and treat as a miss (spec §4.A).
		_ = os.Remove(path)
		return nil, false
	}
	if time.Now().After(e.ExpiresAt) {
		// Expired on disk: kept as "warm" until replaced, but not served.
		return nil, false
	}
	return e.Value, true
}

func (c *Client) putL2(key string, raw json.RawMessage, ttl time.Duration) {
	if c.cacheDir == "" {
		return
	}
	if err := os.MkdirAll(c.cacheDir, 0o755); err != nil {
		return
	}
	data, err := json.Marshal(&entry{Value: raw, ExpiresAt: time.Now().Add(ttl)})
	if err != nil {
		return
	}

	// Write atomically: temp file + rename (spec §5 "files are written
	// atomically").
	final := filepath.Join(c.cacheDir, key+".json")
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, final)
}

func (c *Client) fetchUpstream(ctx context.Context, url string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	select {
	case c.inFlight <- struct{}{}:
		defer func() { <-c.inFlight }()
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, ctx.Err())
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	artifact, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		switch {
		case errors.Is(err, fetch.ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, fetch.ErrRateLimited):
			return nil, ErrRateLimited
		case errors.Is(err, fetch.ErrUpstreamDown):
			return nil, ErrUpstreamUnavailable
		default:
			return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
	}
	defer func() { _ = artifact.Body.Close() }()

	body, err := io.ReadAll(artifact.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if !json.Valid(body) {
		return nil, ErrUpstreamMalformed
	}
	return json.RawMessage(body), nil
}

// breakerStateGetter is implemented by fetch.CircuitBreakerFetcher; asserted
// against rather than widening FetcherInterface since a plain fetch.Fetcher
// has no breaker state to report.
type breakerStateGetter interface {
	GetBreakerState() map[string]string
}

// BreakerState reports per-upstream-host circuit breaker state, surfaced by
// the facade's /health and /performance/stats endpoints. Returns nil if the
// configured fetcher doesn't track breaker state.
func (c *Client) BreakerState() map[string]string {
	if g, ok := c.fetcher.(breakerStateGetter); ok {
		return g.GetBreakerState()
	}
	return nil
}

// hashKey is the SHA-256 of the canonical URL, per spec §4.A's on-disk
// layout (<sha256(upstream-url)>.json).
func hashKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

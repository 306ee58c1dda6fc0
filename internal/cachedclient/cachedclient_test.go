package cachedclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xregistry/bridge/fetch"
)

func TestFetchJSONCachesResult(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"express"}`))
	}))
	defer server.Close()

	c := New(fetch.NewFetcher())

	var first map[string]any
	if err := c.FetchJSON(context.Background(), server.URL+"/express", time.Minute, &first); err != nil {
		t.Fatalf("FetchJSON failed: %v", err)
	}

	var second map[string]any
	if err := c.FetchJSON(context.Background(), server.URL+"/express", time.Minute, &second); err != nil {
		t.Fatalf("FetchJSON failed: %v", err)
	}

	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("upstream calls = %d, want 1 (second call should hit cache)", calls)
	}
	if first["name"] != "express" {
		t.Errorf("name = %v, want express", first["name"])
	}
}

func TestFetchJSONNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := New(fetch.NewFetcher())
	var v map[string]any
	err := c.FetchJSON(context.Background(), server.URL+"/missing", time.Minute, &v)
	if err == nil {
		t.Fatal("expected an error for 404")
	}
}

func TestBreakerStateNilWithoutCircuitBreaker(t *testing.T) {
	c := New(fetch.NewFetcher())
	if got := c.BreakerState(); got != nil {
		t.Errorf("BreakerState() = %v, want nil for a plain fetcher", got)
	}
}

func TestBreakerStateReportsClosedAfterSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := New(fetch.NewCircuitBreakerFetcher(fetch.NewFetcher()))

	var v map[string]any
	if err := c.FetchJSON(context.Background(), server.URL, time.Minute, &v); err != nil {
		t.Fatalf("FetchJSON failed: %v", err)
	}

	states := c.BreakerState()
	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parsing server URL: %v", err)
	}
	if states[u.Host] != "closed" {
		t.Errorf("BreakerState()[%s] = %q, want closed", u.Host, states[u.Host])
	}
}

func TestGetOrComputeSingleFlightsConcurrentMisses(t *testing.T) {
	var calls int32
	c := New(fetch.NewFetcher())

	compute := func(ctx context.Context) (json.RawMessage, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return json.RawMessage(`{"ok":true}`), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetOrCompute(context.Background(), "shared-key", time.Minute, compute)
			if err != nil {
				t.Errorf("GetOrCompute failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("compute calls = %d, want 1 (single-flight)", got)
	}
}

func TestL2CachePersistsAcrossClients(t *testing.T) {
	dir := t.TempDir()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"express"}`))
	}))
	defer server.Close()

	first := New(fetch.NewFetcher(), WithCacheDir(dir))
	var v map[string]any
	if err := first.FetchJSON(context.Background(), server.URL+"/express", time.Minute, &v); err != nil {
		t.Fatalf("FetchJSON failed: %v", err)
	}

	// A fresh Client with an empty L1 but the same cache directory should
	// serve from disk without another upstream call.
	second := New(fetch.NewFetcher(), WithCacheDir(dir))
	if err := second.FetchJSON(context.Background(), server.URL+"/express", time.Minute, &v); err != nil {
		t.Fatalf("FetchJSON failed: %v", err)
	}

	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("upstream calls = %d, want 1 (second client should hit L2)", calls)
	}
}

func TestCorruptL2FileIsTreatedAsMiss(t *testing.T) {
	dir := t.TempDir()
	c := New(fetch.NewFetcher(), WithCacheDir(dir))

	key := hashKey("https://example.invalid/pkg")
	if err := os.WriteFile(dir+"/"+key+".json", []byte("not json"), 0o644); err != nil {
		t.Fatalf("seeding corrupt file: %v", err)
	}

	if _, ok := c.getL2(key); ok {
		t.Error("expected corrupt L2 entry to be treated as a miss")
	}
	if _, err := os.Stat(dir + "/" + key + ".json"); !os.IsNotExist(err) {
		t.Error("expected corrupt L2 file to be removed")
	}
}

func TestStatsTracksHitsAndMisses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := New(fetch.NewFetcher())
	var v map[string]any
	_ = c.FetchJSON(context.Background(), server.URL+"/a", time.Minute, &v)
	_ = c.FetchJSON(context.Background(), server.URL+"/a", time.Minute, &v)

	stats := c.Stats()
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
	if stats.Hits != 1 {
		t.Errorf("Hits = %d, want 1", stats.Hits)
	}
}

func TestMaxInFlightBoundsUpstreamConcurrency(t *testing.T) {
	var current, peak int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&current, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := New(fetch.NewFetcher(), WithMaxInFlight(2), WithRateLimit(1000, 10))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var v map[string]any
			_ = c.FetchJSON(context.Background(), server.URL+"/pkg"+string(rune('a'+i)), time.Minute, &v)
		}(i)
	}
	wg.Wait()

	if atomic.LoadInt32(&peak) > 2 {
		t.Errorf("peak concurrent upstream calls = %d, want <= 2", peak)
	}
}

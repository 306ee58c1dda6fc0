package reqcontext

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/packages", nil)
	f, err := Parse(r)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if f.Limit != defaultLimit {
		t.Errorf("Limit = %d, want %d", f.Limit, defaultLimit)
	}
	if f.Offset != 0 {
		t.Errorf("Offset = %d, want 0", f.Offset)
	}
	if f.HasFilter || f.HasSort {
		t.Error("expected no filter/sort by default")
	}
}

func TestParseLimitZeroIsBadRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/packages?limit=0", nil)
	_, err := Parse(r)
	if err == nil {
		t.Fatal("expected error for limit=0")
	}
}

func TestParseInlineSet(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?inline=model,endpoints", nil)
	f, err := Parse(r)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !f.Inline["model"] || !f.Inline["endpoints"] {
		t.Errorf("Inline = %v, want model and endpoints set", f.Inline)
	}
}

func TestParseFilterAndSort(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/packages?filter=name=react*&sort=name=asc", nil)
	f, err := Parse(r)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if f.Filter != "name=react*" || !f.HasFilter {
		t.Errorf("Filter = %q, HasFilter = %v", f.Filter, f.HasFilter)
	}
	if f.Sort != "name=asc" || !f.HasSort {
		t.Errorf("Sort = %q, HasSort = %v", f.Sort, f.HasSort)
	}
}

func TestAdoptTraceMintsWhenAbsent(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	tr := AdoptTrace(r)
	if tr.TraceID == "" || tr.CorrelationID == "" {
		t.Errorf("expected minted trace/correlation ids, got %+v", tr)
	}
}

func TestAdoptTraceHonorsInboundHeaders(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Trace-Id", "trace-abc")
	r.Header.Set("X-Correlation-Id", "corr-abc")

	tr := AdoptTrace(r)
	if tr.TraceID != "trace-abc" || tr.CorrelationID != "corr-abc" {
		t.Errorf("got %+v, want inbound values preserved", tr)
	}
}

func TestWriteCORSHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteCORS(rec)

	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected wildcard CORS origin")
	}
	if rec.Header().Get("Access-Control-Expose-Headers") == "" {
		t.Error("expected exposed headers to be set")
	}
}

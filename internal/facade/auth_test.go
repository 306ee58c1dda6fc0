package facade

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func newAuthTestEngine(apiKey string) *Engine {
	adapter := newFakeAdapter()
	return New(adapter, nil, Config{BridgeBaseURL: "https://bridge.example", APIKey: apiKey})
}

func TestAuthDisabledWhenNoAPIKeyConfigured(t *testing.T) {
	mux := newTestMux(newAuthTestEngine(""))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAuthRejectsMissingBearerToken(t *testing.T) {
	mux := newTestMux(newAuthTestEngine("secret"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthRejectsWrongBearerToken(t *testing.T) {
	mux := newTestMux(newAuthTestEngine("secret"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthAcceptsCorrectBearerToken(t *testing.T) {
	mux := newTestMux(newAuthTestEngine("secret"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAuthAllowsLoopbackModelWithoutToken(t *testing.T) {
	mux := newTestMux(newAuthTestEngine("secret"))

	req := httptest.NewRequest(http.MethodGet, "/model", nil)
	req.RemoteAddr = "127.0.0.1:54321"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAuthRejectsNonLoopbackModelWithoutToken(t *testing.T) {
	mux := newTestMux(newAuthTestEngine("secret"))

	req := httptest.NewRequest(http.MethodGet, "/model", nil)
	req.RemoteAddr = "203.0.113.9:54321"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

package control

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAccessListAllowDisallowKill(t *testing.T) {
	a := NewAccessList([]string{"127.0.0.1"})

	if !a.Allowed("127.0.0.1") {
		t.Fatalf("expected seeded IP to be allowed")
	}
	if a.Allowed("10.0.0.1") {
		t.Fatalf("expected unseeded IP to be disallowed")
	}

	a.Allow("10.0.0.1")
	if !a.Allowed("10.0.0.1") {
		t.Fatalf("expected Allow to admit the IP")
	}

	a.Disallow("10.0.0.1")
	if a.Allowed("10.0.0.1") {
		t.Fatalf("expected Disallow to revoke the IP")
	}

	a.Allow("10.0.0.2")
	a.Kill("10.0.0.2")
	if a.Allowed("10.0.0.2") {
		t.Fatalf("expected Kill to revoke the IP like Disallow")
	}
}

func TestAccessListSnapshot(t *testing.T) {
	a := NewAccessList([]string{"127.0.0.1", "127.0.0.2"})
	snap := a.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(snap))
	}
}

func TestIPAllowMiddlewareRejectsDisallowedAddress(t *testing.T) {
	access := NewAccessList([]string{"127.0.0.1:0"})
	handler := ipAllowMiddleware(access, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestIPAllowMiddlewareAllowsListedAddress(t *testing.T) {
	access := NewAccessList([]string{"10.0.0.1"})
	handler := ipAllowMiddleware(access, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCORSMiddlewareSetsConfiguredOrigin(t *testing.T) {
	handler := corsMiddleware("https://example.test", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://example.test" {
		t.Fatalf("expected configured origin header, got %q", got)
	}
}

func TestCORSMiddlewareOmitsHeaderWhenUnconfigured(t *testing.T) {
	handler := corsMiddleware("", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no origin header, got %q", got)
	}
}

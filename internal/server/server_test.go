package server

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lastbrain/edge/internal/upstream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func appOrigin(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("app:" + r.URL.Path))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewRejectsBadOrigin(t *testing.T) {
	if _, err := New(Config{AppURL: ""}, testLogger()); err == nil {
		t.Error("expected error for empty app origin")
	}
	if _, err := New(Config{AppURL: "not a url"}, testLogger()); err == nil {
		t.Error("expected error for malformed app origin")
	}
}

func TestHealth(t *testing.T) {
	srv, err := New(Config{AppURL: appOrigin(t).URL}, testLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["status"] != "ok" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestProxyPassThrough(t *testing.T) {
	srv, err := New(Config{AppURL: appOrigin(t).URL}, testLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/boutique", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Body.String(); got != "app:/boutique" {
		t.Errorf("body = %q, want %q", got, "app:/boutique")
	}
}

func TestProtectedPathWithoutSession(t *testing.T) {
	srv, err := New(Config{
		AppURL:          appOrigin(t).URL,
		ProtectedPrefix: "/private",
	}, testLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/private/orders", nil))

	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusFound)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want %q", loc, "/login")
	}
}

func TestCodeResolutionEndToEnd(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get(upstream.AuthHeader); got != "shared" {
			t.Errorf("auth header = %q, want %q", got, "shared")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"payload":      map[string]any{"owner_id": "u2", "at": 1700000000, "v": 1},
			"redirectPath": "/boutique",
			"cookieDays":   7,
		})
	}))
	defer backend.Close()

	srv, err := New(Config{
		AppURL:   appOrigin(t).URL,
		Upstream: upstream.Config{BaseURL: backend.URL, Token: "shared"},
	}, testLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/?code=ABC", nil))

	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusFound)
	}
	if loc := rec.Header().Get("Location"); loc != "/boutique" {
		t.Errorf("Location = %q, want %q", loc, "/boutique")
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "lb_aff" {
		t.Fatalf("expected one lb_aff cookie, got %v", cookies)
	}
	if cookies[0].MaxAge != 604800 {
		t.Errorf("max-age = %d, want 604800", cookies[0].MaxAge)
	}
	if cookies[0].Secure {
		t.Error("cookie must not be Secure outside production")
	}
}

func TestStaticAssetsBypassChecks(t *testing.T) {
	backendCalled := false
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backendCalled = true
	}))
	defer backend.Close()

	srv, err := New(Config{
		AppURL:   appOrigin(t).URL,
		Upstream: upstream.Config{BaseURL: backend.URL, Token: "shared"},
	}, testLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/static/app.js?code=ABC", nil))

	if backendCalled {
		t.Error("static asset request must not trigger code resolution")
	}
	if !strings.HasPrefix(rec.Body.String(), "app:") {
		t.Errorf("expected proxy pass-through, body = %q", rec.Body.String())
	}
}

// Protocol upgrades (websockets) must survive the whole stack: request
// logger, dispatcher, and reverse proxy.
func TestUpgradeThroughProxy(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Upgrade") != "echo" {
			t.Errorf("Upgrade = %q, want %q", r.Header.Get("Upgrade"), "echo")
		}
		conn, bufrw, err := http.NewResponseController(w).Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		defer conn.Close()
		bufrw.WriteString("HTTP/1.1 101 Switching Protocols\r\nConnection: Upgrade\r\nUpgrade: echo\r\n\r\n")
		bufrw.Flush()
	}))
	defer origin.Close()

	srv, err := New(Config{AppURL: origin.URL}, testLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	edge := httptest.NewServer(srv.Router())
	defer edge.Close()

	conn, err := net.Dial("tcp", edge.Listener.Addr().String())
	if err != nil {
		t.Fatalf("dial edge: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("GET /ws HTTP/1.1\r\nHost: edge\r\nConnection: Upgrade\r\nUpgrade: echo\r\n\r\n")); err != nil {
		t.Fatalf("write request: %v", err)
	}

	status, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if !strings.HasPrefix(status, "HTTP/1.1 101") {
		t.Errorf("status line = %q, want 101 Switching Protocols", strings.TrimSpace(status))
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv, err := New(Config{AppURL: appOrigin(t).URL}, testLogger())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id header")
	}
}

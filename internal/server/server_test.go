package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raysh454/darkscan/internal/app"
	"github.com/raysh454/darkscan/internal/server"
	"github.com/raysh454/darkscan/internal/testutil"
	"github.com/raysh454/darkscan/internal/webclient"
)

const checkoutHTML = `<html><body><form><input type="checkbox" checked></form></body></html>`

// staticPages serves canned markup per URL instead of fetching.
type staticPages struct {
	mu    sync.Mutex
	pages map[string]string
}

func (p *staticPages) factory(_ context.Context, url, backend string) (webclient.PageSource, error) {
	if backend != "" && backend != "static" {
		return nil, app.ErrUnknownBackend
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return webclient.NewStaticPage(url, p.pages[url]), nil
}

func newTestServer(t *testing.T) *server.Server {
	t.Helper()

	logger := &testutil.DummyLogger{}
	cfg := app.DefaultConfig()
	cfg.Monitor.Enabled = false

	pages := &staticPages{pages: map[string]string{
		"https://shop.example/checkout": checkoutHTML,
	}}
	orch := app.NewOrchestrator(cfg, nil, nil, pages.factory, logger)
	if _, err := orch.SetSetting(context.Background(), "autoScan", "false"); err != nil {
		t.Fatalf("disable autoScan: %v", err)
	}
	t.Cleanup(func() { orch.Shutdown(context.Background()) })

	return server.NewServer(server.Config{ListenAddr: ":0", Logger: logger}, orch)
}

func doJSON(t *testing.T, s http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON response: %v (body: %s)", err, rec.Body.String())
	}
}

func createSession(t *testing.T, s http.Handler, url string) string {
	t.Helper()
	rec := doJSON(t, s, "POST", "/sessions", `{"url":"`+url+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var info app.Info
	decodeJSON(t, rec, &info)
	if info.ID == "" {
		t.Fatalf("expected session id in %s", rec.Body.String())
	}
	return info.ID
}

// ─── CORS ──────────────────────────────────────────────────────────────

func TestServer_CORS_HeaderPresent(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/sessions", "")

	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("expected CORS origin *, got %q", origin)
	}

	rec = doJSON(t, s, "OPTIONS", "/sessions", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", rec.Code)
	}
}

// ─── Sessions ──────────────────────────────────────────────────────────

func TestServer_CreateSession_InvalidJSON(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "POST", "/sessions", `{invalid}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestServer_CreateSession_Errors(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	if rec := doJSON(t, s, "POST", "/sessions", `{"url":""}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty url: expected 422, got %d", rec.Code)
	}
	if rec := doJSON(t, s, "POST", "/sessions", `{"url":"https://a.example/","backend":"telnet"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown backend: expected 400, got %d", rec.Code)
	}
}

func TestServer_ScanFlow(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	id := createSession(t, s, "https://shop.example/checkout")

	rec := doJSON(t, s, "POST", "/sessions/"+id+"/scan", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res server.ScanResponse
	decodeJSON(t, rec, &res)
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Count == 0 || res.Count != len(res.Patterns) {
		t.Fatalf("expected the pre-checked checkbox to be reported, got count=%d patterns=%d", res.Count, len(res.Patterns))
	}

	rec = doJSON(t, s, "GET", "/sessions/"+id+"/patterns", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var view app.View
	decodeJSON(t, rec, &view)
	if view.IsScanning {
		t.Errorf("expected isScanning=false after scan")
	}
	if len(view.Patterns) != res.Count {
		t.Errorf("expected %d patterns, got %d", res.Count, len(view.Patterns))
	}

	if rec := doJSON(t, s, "POST", "/sessions/"+id+"/inject-ui", ""); rec.Code != http.StatusNoContent {
		t.Errorf("inject-ui: expected 204, got %d", rec.Code)
	}
	if rec := doJSON(t, s, "DELETE", "/sessions/"+id, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", rec.Code)
	}
	if rec := doJSON(t, s, "GET", "/sessions/"+id+"/patterns", ""); rec.Code != http.StatusNotFound {
		t.Errorf("after delete: expected 404, got %d", rec.Code)
	}
}

func TestServer_Scan_RestrictedPage(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	id := createSession(t, s, "chrome://newtab")

	rec := doJSON(t, s, "POST", "/sessions/"+id+"/scan", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	var res server.ScanResponse
	decodeJSON(t, rec, &res)
	if res.Success || res.Error == "" {
		t.Errorf("expected failure with error message, got %+v", res)
	}
}

func TestServer_UnknownSession(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{"POST", "/sessions/nope/scan"},
		{"GET", "/sessions/nope/patterns"},
		{"DELETE", "/sessions/nope"},
		{"GET", "/ws/sessions/nope/events"},
	} {
		if rec := doJSON(t, s, tc.method, tc.path, ""); rec.Code != http.StatusNotFound {
			t.Errorf("%s %s: expected 404, got %d", tc.method, tc.path, rec.Code)
		}
	}
}

// ─── Settings & history ────────────────────────────────────────────────

func TestServer_Settings(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "PUT", "/settings", `{"confidenceThreshold":0.75,"scanInterval":2500}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, "GET", "/settings", "")
	var got map[string]any
	decodeJSON(t, rec, &got)
	if got["confidenceThreshold"] != 0.75 {
		t.Errorf("expected confidenceThreshold 0.75, got %v", got["confidenceThreshold"])
	}
	if got["scanInterval"] != float64(2500) {
		t.Errorf("expected scanInterval 2500, got %v", got["scanInterval"])
	}

	if rec := doJSON(t, s, "PUT", "/settings", `{"theme":"dark"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown key: expected 400, got %d", rec.Code)
	}
	if rec := doJSON(t, s, "PUT", "/settings", `{"confidenceThreshold":3}`); rec.Code != http.StatusBadRequest {
		t.Errorf("out of range: expected 400, got %d", rec.Code)
	}
}

func TestServer_HistoryWithoutStore(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/history?limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("expected empty list, got %s", body)
	}
	if rec := doJSON(t, s, "DELETE", "/history", ""); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec := doJSON(t, s, "GET", "/history/7", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown entry, got %d", rec.Code)
	}
	if rec := doJSON(t, s, "GET", "/history/abc", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid id, got %d", rec.Code)
	}
}

// ─── Metrics ───────────────────────────────────────────────────────────

func TestServer_Metrics(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := doJSON(t, s, "GET", "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "darkscan_active_sessions") {
		t.Errorf("expected darkscan collectors in metrics output")
	}
}

// ─── WebSocket ─────────────────────────────────────────────────────────

func TestServer_EventStream(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	id := createSession(t, s, "https://shop.example/checkout")

	ts := httptest.NewServer(s)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/sessions/" + id + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The subscription is registered before the upgrade completes.
	if rec := doJSON(t, s, "POST", "/sessions/"+id+"/scan", ""); rec.Code != http.StatusOK {
		t.Fatalf("scan: expected 200, got %d", rec.Code)
	}

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var ev app.Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read event: %v", err)
		}
		if ev.Type == app.EventScanComplete {
			if ev.SessionID != id || ev.Count == 0 {
				t.Errorf("unexpected scan event: %+v", ev)
			}
			break
		}
	}

	if rec := doJSON(t, s, "DELETE", "/sessions/"+id, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	for {
		var ev app.Event
		if err := conn.ReadJSON(&ev); err != nil {
			// Close frame after SESSION_CLOSED.
			return
		}
		if ev.Type == app.EventClosed {
			return
		}
	}
}

package webclient_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/raysh454/darkscan/internal/webclient"
)

const checkoutMarkup = `<html><body><form><input type="checkbox" name="newsletter" checked></form></body></html>`

// seen captures what the test server received.
type seen struct {
	method    string
	path      string
	userAgent string
	auth      string
	body      string
}

func newRecordingServer(t *testing.T, status int, payload string) (*httptest.Server, *seen) {
	t.Helper()
	got := &seen{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got.method = r.Method
		got.path = r.URL.Path
		got.userAgent = r.Header.Get("User-Agent")
		got.auth = r.Header.Get("Authorization")
		got.body = string(body)
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, payload)
	}))
	t.Cleanup(ts.Close)
	return ts, got
}

func newClient(t *testing.T, cfg webclient.Config, hc *http.Client) *webclient.NetHTTPClient {
	t.Helper()
	client, err := webclient.NewNetHTTPClient(cfg, &noopLogger{}, hc)
	if err != nil {
		t.Fatalf("NewNetHTTPClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNetHTTPClient_Do_FetchesPageMarkup(t *testing.T) {
	t.Parallel()
	ts, got := newRecordingServer(t, http.StatusOK, checkoutMarkup)
	client := newClient(t, webclient.Config{}, ts.Client())

	resp, err := client.Do(context.Background(), &webclient.Request{Method: http.MethodGet, URL: ts.URL + "/checkout"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !resp.OK() || string(resp.Body) != checkoutMarkup {
		t.Errorf("unexpected response %d %q", resp.StatusCode, resp.Body)
	}
	if resp.Headers.Get("Content-Type") != "text/html" {
		t.Errorf("response headers not kept: %v", resp.Headers)
	}
	if got.path != "/checkout" {
		t.Errorf("expected /checkout, got %s", got.path)
	}
}

func TestNetHTTPClient_Do_MethodDefaults(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name, method, want string
	}{
		{"empty means GET", "", http.MethodGet},
		{"lower case is normalized", "post", http.MethodPost},
		{"explicit", http.MethodPut, http.MethodPut},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ts, got := newRecordingServer(t, http.StatusOK, "")
			client := newClient(t, webclient.Config{}, ts.Client())

			if _, err := client.Do(context.Background(), &webclient.Request{Method: tc.method, URL: ts.URL}); err != nil {
				t.Fatalf("Do: %v", err)
			}
			if got.method != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got.method)
			}
		})
	}
}

func TestNetHTTPClient_Do_SendsRelayPayload(t *testing.T) {
	t.Parallel()
	ts, got := newRecordingServer(t, http.StatusCreated, `{"verified":[]}`)
	client := newClient(t, webclient.Config{}, ts.Client())

	hdrs := http.Header{}
	hdrs.Set("Authorization", "Bearer relay-token")
	payload := `{"patterns":[{"text":"Only 2 left","category":"Scarcity"}]}`

	resp, err := client.Do(context.Background(), &webclient.Request{
		Method:  http.MethodPost,
		URL:     ts.URL + "/verify",
		Headers: hdrs,
		Body:    []byte(payload),
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("expected 201, got %d", resp.StatusCode)
	}
	if got.body != payload {
		t.Errorf("body not forwarded: %q", got.body)
	}
	if got.auth != "Bearer relay-token" {
		t.Errorf("expected Authorization forwarded, got %q", got.auth)
	}
}

func TestNetHTTPClient_Do_UserAgent(t *testing.T) {
	t.Parallel()
	t.Run("default config sends darkscan agent", func(t *testing.T) {
		t.Parallel()
		ts, got := newRecordingServer(t, http.StatusOK, "")
		client := newClient(t, webclient.DefaultConfig(), ts.Client())

		if _, err := client.Get(context.Background(), ts.URL); err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.userAgent != webclient.DefaultConfig().UserAgent {
			t.Errorf("expected %q, got %q", webclient.DefaultConfig().UserAgent, got.userAgent)
		}
	})
	t.Run("configured agent is applied", func(t *testing.T) {
		t.Parallel()
		ts, got := newRecordingServer(t, http.StatusOK, "")
		client := newClient(t, webclient.Config{UserAgent: "darkscan/1.0"}, ts.Client())

		if _, err := client.Get(context.Background(), ts.URL); err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.userAgent != "darkscan/1.0" {
			t.Errorf("expected darkscan/1.0, got %q", got.userAgent)
		}
	})
	t.Run("request header wins", func(t *testing.T) {
		t.Parallel()
		ts, got := newRecordingServer(t, http.StatusOK, "")
		client := newClient(t, webclient.Config{UserAgent: "darkscan/1.0"}, ts.Client())

		hdrs := http.Header{}
		hdrs.Set("User-Agent", "custom-agent")
		if _, err := client.Do(context.Background(), &webclient.Request{URL: ts.URL, Headers: hdrs}); err != nil {
			t.Fatalf("Do: %v", err)
		}
		if got.userAgent != "custom-agent" {
			t.Errorf("expected custom-agent, got %q", got.userAgent)
		}
	})
}

func TestNetHTTPClient_Do_PropagatesStatusCode(t *testing.T) {
	t.Parallel()
	for _, code := range []int{http.StatusOK, http.StatusMovedPermanently, http.StatusNotFound, http.StatusBadGateway} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			t.Parallel()
			ts, _ := newRecordingServer(t, code, "")
			hc := ts.Client()
			hc.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
			client := newClient(t, webclient.Config{}, hc)

			resp, err := client.Do(context.Background(), &webclient.Request{URL: ts.URL})
			if err != nil {
				t.Fatalf("Do: %v", err)
			}
			if resp.StatusCode != code {
				t.Errorf("expected %d, got %d", code, resp.StatusCode)
			}
			if resp.OK() != (code == http.StatusOK) {
				t.Errorf("OK() = %v for %d", resp.OK(), code)
			}
		})
	}
}

func TestNetHTTPClient_Do_Errors(t *testing.T) {
	t.Parallel()
	client := newClient(t, webclient.Config{}, &http.Client{Timeout: time.Second})

	if _, err := client.Do(context.Background(), nil); err == nil {
		t.Error("expected error for nil request")
	}
	if _, err := client.Do(context.Background(), &webclient.Request{URL: "http://127.0.0.1:1"}); err == nil {
		t.Error("expected error for refused connection")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Do(ctx, &webclient.Request{URL: "http://127.0.0.1:1"}); err == nil {
		t.Error("expected error for canceled context")
	}
}

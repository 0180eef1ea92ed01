package webclient_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/raysh454/darkscan/internal/testutil"
	"github.com/raysh454/darkscan/internal/webclient"
)

func TestStaticPage_SnapshotReflectsSetHTML(t *testing.T) {
	t.Parallel()
	page := webclient.NewStaticPage("https://shop.example/", "<p>first</p>")

	doc, err := page.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got := doc.Select("p")[0].Text(); got != "first" {
		t.Errorf("expected 'first', got %q", got)
	}

	page.SetHTML("<p>second</p>")
	doc, err = page.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got := doc.Select("p")[0].Text(); got != "second" {
		t.Errorf("expected 'second', got %q", got)
	}
	if doc.URL() != "https://shop.example/" {
		t.Errorf("unexpected url %q", doc.URL())
	}
}

func TestStaticPage_CanceledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := webclient.NewStaticPage("", "<p></p>").Snapshot(ctx); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestLivePage_FetchesAndParses(t *testing.T) {
	t.Parallel()
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = io.WriteString(w, `<html><body><span>Only 2 left</span></body></html>`)
	}))
	defer ts.Close()

	client, _ := webclient.NewNetHTTPClient(webclient.Config{}, &noopLogger{}, ts.Client())
	page := webclient.NewLivePage(client, ts.URL)
	defer page.Close()

	for i := 0; i < 2; i++ {
		doc, err := page.Snapshot(context.Background())
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if len(doc.Select("span")) != 1 {
			t.Fatalf("expected one span")
		}
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Errorf("expected 2 fetches, got %d", hits)
	}
}

func TestLivePage_Non2xxIsError(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	client, _ := webclient.NewNetHTTPClient(webclient.Config{}, &noopLogger{}, ts.Client())
	if _, err := webclient.NewLivePage(client, ts.URL).Snapshot(context.Background()); err == nil {
		t.Fatal("expected error for 502")
	}
}

func TestLivePage_ReusesLoadedPage(t *testing.T) {
	t.Parallel()
	const url = "https://shop.example/checkout"
	client := &testutil.DummyWebClient{}
	client.SetPage(url, `<form><input type="checkbox" checked></form>`)
	page := webclient.NewLivePage(client, url)

	for i := 0; i < 2; i++ {
		if _, err := page.Snapshot(context.Background()); err != nil {
			t.Fatalf("Snapshot %d: %v", i, err)
		}
	}
	if client.RequestCount() != 2 {
		t.Fatalf("expected 2 requests, got %d", client.RequestCount())
	}
	if got := client.Requests[0].Options[webclient.OptionReuse]; got != "" {
		t.Errorf("first snapshot must load the page, got reuse=%q", got)
	}
	if got := client.Requests[1].Options[webclient.OptionReuse]; got != "true" {
		t.Errorf("second snapshot should reuse the page, got %q", got)
	}

	if err := page.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !client.Closed {
		t.Error("Close should close the underlying client")
	}
}

func TestLivePage_FetchErrorKeepsFreshLoad(t *testing.T) {
	t.Parallel()
	const url = "https://shop.example/"
	client := &testutil.DummyWebClient{FailURLs: map[string]bool{url: true}}
	page := webclient.NewLivePage(client, url)

	if _, err := page.Snapshot(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}

	client.FailURLs[url] = false
	client.SetPage(url, "<p>ok</p>")
	if _, err := page.Snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got := client.Requests[1].Options[webclient.OptionReuse]; got != "" {
		t.Errorf("page never loaded, reuse should be unset, got %q", got)
	}
}

package webclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/raysh454/darkscan/internal/dom"
)

// PageSource produces DOM snapshots of one page.
type PageSource interface {
	URL() string
	Snapshot(ctx context.Context) (*dom.Document, error)
	Close() error
}

// LivePage snapshots a URL through a WebClient. After the first snapshot it
// asks the backend to reuse the loaded page, so browser backends observe the
// live DOM instead of a fresh load.
type LivePage struct {
	client WebClient
	url    string

	mu     sync.Mutex
	loaded bool
}

func NewLivePage(client WebClient, url string) *LivePage {
	return &LivePage{client: client, url: strings.TrimSpace(url)}
}

func (p *LivePage) URL() string { return p.url }

func (p *LivePage) Snapshot(ctx context.Context) (*dom.Document, error) {
	p.mu.Lock()
	reuse := p.loaded
	p.mu.Unlock()

	req := &Request{Method: http.MethodGet, URL: p.url}
	if reuse {
		req.Options = map[string]string{OptionReuse: "true"}
	}
	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", p.url, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", p.url, resp.StatusCode)
	}
	doc, err := dom.ParseBytes(resp.Body, p.url)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.loaded = true
	p.mu.Unlock()
	return doc, nil
}

func (p *LivePage) Close() error { return p.client.Close() }

// StaticPage serves in-memory markup. SetHTML replaces the markup, standing
// in for DOM changes between snapshots.
type StaticPage struct {
	url string

	mu   sync.RWMutex
	html string
}

func NewStaticPage(url, html string) *StaticPage {
	return &StaticPage{url: url, html: html}
}

func (p *StaticPage) URL() string { return p.url }

func (p *StaticPage) SetHTML(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.html = html
}

func (p *StaticPage) Snapshot(ctx context.Context) (*dom.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	markup := p.html
	p.mu.RUnlock()
	return dom.ParseString(markup, p.url)
}

func (p *StaticPage) Close() error { return nil }

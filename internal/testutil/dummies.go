// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/raysh454/darkscan/internal/logging"
	"github.com/raysh454/darkscan/internal/relay"
	"github.com/raysh454/darkscan/internal/webclient"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// WarnCount returns how many warnings were recorded.
func (l *DummyLogger) WarnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Warns)
}

// ─── WebClient ─────────────────────────────────────────────────────────

// DummyWebClient implements webclient.WebClient.
// It serves Pages[url] with status 200 and 404 for unknown URLs.
// Set FailURLs[url] = true to force an error for a specific URL.
type DummyWebClient struct {
	ResponseDelay time.Duration
	Pages         map[string]string
	FailURLs      map[string]bool

	mu       sync.Mutex
	Requests []*webclient.Request
	Closed   bool
}

func (d *DummyWebClient) Do(ctx context.Context, req *webclient.Request) (*webclient.Response, error) {
	if d.ResponseDelay > 0 {
		select {
		case <-time.After(d.ResponseDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	d.Requests = append(d.Requests, req)
	body, ok := d.Pages[req.URL]
	d.mu.Unlock()

	if d.FailURLs != nil && d.FailURLs[req.URL] {
		return nil, &errString{"dummy fetch fail for " + req.URL}
	}
	status := http.StatusOK
	if !ok {
		status = http.StatusNotFound
	}
	return &webclient.Response{
		Request:    req,
		Headers:    http.Header{},
		Body:       []byte(body),
		StatusCode: status,
		FetchedAt:  time.Now(),
	}, nil
}

// SetPage replaces the markup served for url.
func (d *DummyWebClient) SetPage(url, body string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Pages == nil {
		d.Pages = map[string]string{}
	}
	d.Pages[url] = body
}

// RequestCount returns how many requests were served.
func (d *DummyWebClient) RequestCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Requests)
}

func (d *DummyWebClient) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	return nil
}

// ─── Relay ─────────────────────────────────────────────────────────────

// DummyRelay implements the verification relay calls. With VerifyFunc
// unset every verification answers an empty list; with Err set every call
// fails. Use SetErr to change Err while calls may be in flight.
type DummyRelay struct {
	VerifyFunc  func([]relay.Item) ([]relay.Verified, error)
	Description string
	Err         error

	mu       sync.Mutex
	Verified [][]relay.Item
	Dataset  [][]relay.DatasetItem
}

func (d *DummyRelay) Verify(_ context.Context, items []relay.Item) ([]relay.Verified, error) {
	d.mu.Lock()
	d.Verified = append(d.Verified, items)
	err := d.Err
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if d.VerifyFunc == nil {
		return nil, nil
	}
	return d.VerifyFunc(items)
}

func (d *DummyRelay) VerifyBestEffort(ctx context.Context, items []relay.Item) ([]relay.Verified, error) {
	return nil, d.err()
}

func (d *DummyRelay) Describe(_ context.Context, _ relay.DescribeRequest) (string, error) {
	if err := d.err(); err != nil {
		return "", err
	}
	return d.Description, nil
}

func (d *DummyRelay) UpdateDataset(_ context.Context, items []relay.DatasetItem) (relay.DatasetResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return relay.DatasetResult{}, d.Err
	}
	d.Dataset = append(d.Dataset, items)
	return relay.DatasetResult{Added: len(items)}, nil
}

// SetErr makes every following call fail with err, or succeed again when
// err is nil.
func (d *DummyRelay) SetErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Err = err
}

func (d *DummyRelay) err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Err
}

// Sent returns the items of every verification request so far.
func (d *DummyRelay) Sent() [][]relay.Item {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]relay.Item(nil), d.Verified...)
}

// VerifyCalls returns how many verification requests were made.
func (d *DummyRelay) VerifyCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Verified)
}

// DatasetCalls returns how many dataset updates were made.
func (d *DummyRelay) DatasetCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Dataset)
}

// ─── helpers ───────────────────────────────────────────────────────────

type errString struct{ s string }

func (e *errString) Error() string { return e.s }

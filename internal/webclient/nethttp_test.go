package webclient_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/raysh454/darkscan/internal/logging"
	"github.com/raysh454/darkscan/internal/webclient"
)

// noopLogger is a test-local logger implementation that discards all log messages
type noopLogger struct{}

func (n *noopLogger) Debug(msg string, fields ...logging.Field) {}
func (n *noopLogger) Info(msg string, fields ...logging.Field)  {}
func (n *noopLogger) Warn(msg string, fields ...logging.Field)  {}
func (n *noopLogger) Error(msg string, fields ...logging.Field) {}
func (n *noopLogger) With(fields ...logging.Field) logging.Logger {
	return n
}

// TestNewNetHTTPClient_Construct verifies that NewNetHTTPClient returns a non-nil client
func TestNewNetHTTPClient_Construct(t *testing.T) {
	t.Parallel()
	cfg := webclient.Config{Client: webclient.ClientNetHTTP}
	logger := &noopLogger{}

	client, err := webclient.NewNetHTTPClient(cfg, logger, nil)
	if err != nil {
		t.Fatalf("NewNetHTTPClient returned error: %v", err)
	}
	if client == nil {
		t.Fatal("NewNetHTTPClient returned nil client")
	}
	defer client.Close()

	if got := client.HTTPClient().Timeout; got != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %s", got)
	}
}

// TestNewNetHTTPClient_WithCustomClient verifies that a custom *http.Client can be injected
func TestNewNetHTTPClient_WithCustomClient(t *testing.T) {
	t.Parallel()
	logger := &noopLogger{}
	customClient := &http.Client{Timeout: time.Second}

	client, err := webclient.NewNetHTTPClient(webclient.Config{}, logger, customClient)
	if err != nil {
		t.Fatalf("NewNetHTTPClient returned error: %v", err)
	}
	defer client.Close()

	if client.HTTPClient() != customClient {
		t.Error("expected injected *http.Client to be used")
	}
}

// TestNetHTTPClient_Close verifies that Close() does not panic and returns nil
func TestNetHTTPClient_Close(t *testing.T) {
	t.Parallel()
	client, err := webclient.NewNetHTTPClient(webclient.Config{}, nil, nil)
	if err != nil {
		t.Fatalf("NewNetHTTPClient returned error: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() returned error: %v", err)
	}
}

// TestNetHTTPClient_ErrInvalidRequest verifies the nil-request error
func TestNetHTTPClient_ErrInvalidRequest(t *testing.T) {
	t.Parallel()
	client, _ := webclient.NewNetHTTPClient(webclient.Config{}, &noopLogger{}, nil)
	defer client.Close()

	_, err := client.Do(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "cannot be nil") {
		t.Fatalf("expected nil-request error, got %v", err)
	}
}

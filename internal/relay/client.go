// Package relay owns network egress to the remote language-model service:
// pattern verification, description generation and dataset updates. The
// service is treated as untrusted; every response is parsed tolerantly and
// every failure is returned as ErrRelayCall or ErrMalformedResponse.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/raysh454/darkscan/internal/logging"
	"github.com/raysh454/darkscan/internal/metrics"
	"github.com/raysh454/darkscan/internal/webclient"
)

var (
	ErrRelayCall         = errors.New("relay call failed")
	ErrMalformedResponse = errors.New("malformed relay response")
)

const (
	EndpointVerify   = "verify"
	EndpointDescribe = "describe"
	EndpointDataset  = "dataset"
)

// Item is one pattern submitted for verification.
type Item struct {
	Text        string  `json:"text"`
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence"`
	Reason      string  `json:"reason"`
	PatternType string  `json:"pattern_type"`
}

// Verified is one verifier answer. Zero values mean the field was absent or
// of the wrong type.
type Verified struct {
	Text        string
	Category    string
	Confidence  float64
	Explanation string
	Reason      string
	// Rejected is set when the answer carries is_dark_pattern=false.
	Rejected bool
}

type DescribeRequest struct {
	Category    string `json:"category"`
	Text        string `json:"text"`
	Reason      string `json:"reason"`
	PatternType string `json:"pattern_type"`
}

type DatasetItem struct {
	Text       string  `json:"text"`
	Category   string  `json:"category"`
	Label      int     `json:"label"`
	Confidence float64 `json:"confidence"`
}

type DatasetResult struct {
	Added   int
	Skipped int
	Message string
}

type Client struct {
	cfg      Config
	wc       webclient.WebClient
	logger   logging.Logger
	breakers map[string]Breaker
}

// New builds a relay client. A nil WebClient gets a net/http backend.
func New(cfg Config, wc webclient.WebClient, logger logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.Nop{}
	}
	cfg = cfg.withDefaults()
	if wc == nil {
		nh, err := webclient.NewNetHTTPClient(webclient.Config{Timeout: cfg.VerifyTimeout + time.Second}, logger, nil)
		if err != nil {
			return nil, fmt.Errorf("relay webclient: %w", err)
		}
		wc = nh
	}
	breakers := map[string]Breaker{}
	for _, ep := range []string{EndpointVerify, EndpointDescribe, EndpointDataset} {
		breakers[ep] = NewBreaker("relay-"+ep, cfg.BreakerCooldown, cfg.BreakerMaxFailures)
	}
	return &Client{
		cfg:      cfg,
		wc:       wc,
		logger:   logger.With(logging.Field{Key: "component", Value: "relay"}),
		breakers: breakers,
	}, nil
}

func (c *Client) Config() Config { return c.cfg }

// Verify submits items with the verification timeout.
func (c *Client) Verify(ctx context.Context, items []Item) ([]Verified, error) {
	return c.verify(ctx, items, c.cfg.VerifyTimeout)
}

// VerifyBestEffort submits items with the short best-effort timeout.
func (c *Client) VerifyBestEffort(ctx context.Context, items []Item) ([]Verified, error) {
	return c.verify(ctx, items, c.cfg.BestEffortTimeout)
}

func (c *Client) verify(ctx context.Context, items []Item, timeout time.Duration) ([]Verified, error) {
	if len(items) == 0 {
		return nil, nil
	}
	body, err := c.call(ctx, EndpointVerify, c.cfg.VerifyPath, timeout, map[string]any{"patterns": items})
	if err != nil {
		return nil, err
	}
	out, err := ParseVerified(body)
	if err != nil {
		metrics.RelayRequestsTotal.WithLabelValues(EndpointVerify, "malformed").Inc()
		c.logger.Warn("verification response malformed",
			logging.Field{Key: "error", Value: err.Error()})
		return nil, err
	}
	c.logger.Debug("verification answered",
		logging.Field{Key: "sent", Value: len(items)},
		logging.Field{Key: "verified", Value: len(out)})
	return out, nil
}

// ParseVerified reads {verified:[...]}. Non-object entries are skipped.
func ParseVerified(body []byte) ([]Verified, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedResponse)
	}
	list := gjson.GetBytes(body, "verified")
	if !list.IsArray() {
		return nil, fmt.Errorf("%w: missing verified array", ErrMalformedResponse)
	}
	var out []Verified
	list.ForEach(func(_, v gjson.Result) bool {
		if !v.IsObject() {
			return true
		}
		out = append(out, Verified{
			Text:        stringField(v, "text"),
			Category:    stringField(v, "category"),
			Confidence:  numberField(v, "confidence"),
			Explanation: stringField(v, "explanation"),
			Reason:      stringField(v, "reason"),
			Rejected:    v.Get("is_dark_pattern").Type == gjson.False,
		})
		return true
	})
	return out, nil
}

// Describe asks for a human-readable description. An empty string means the
// service answered without a description.
func (c *Client) Describe(ctx context.Context, req DescribeRequest) (string, error) {
	body, err := c.call(ctx, EndpointDescribe, c.cfg.DescribePath, c.cfg.DescribeTimeout, req)
	if err != nil {
		return "", err
	}
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("%w: invalid json", ErrMalformedResponse)
	}
	return strings.TrimSpace(stringField(gjson.ParseBytes(body), "description")), nil
}

// UpdateDataset submits labelled samples. Callers treat it as fire-and-forget.
func (c *Client) UpdateDataset(ctx context.Context, items []DatasetItem) (DatasetResult, error) {
	if len(items) == 0 {
		return DatasetResult{}, nil
	}
	body, err := c.call(ctx, EndpointDataset, c.cfg.DatasetPath, c.cfg.DatasetTimeout, map[string]any{"patterns": items})
	if err != nil {
		return DatasetResult{}, err
	}
	res := gjson.ParseBytes(body)
	return DatasetResult{
		Added:   int(res.Get("added").Int()),
		Skipped: int(res.Get("skipped").Int()),
		Message: res.Get("message").String(),
	}, nil
}

func (c *Client) call(ctx context.Context, endpoint, path string, timeout time.Duration, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %w", ErrRelayCall, endpoint, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := strings.TrimRight(c.cfg.BaseURL, "/") + path
	start := time.Now()
	var body []byte
	err = c.breakers[endpoint].Execute(func() error {
		resp, err := c.wc.Do(ctx, &webclient.Request{
			Method:  http.MethodPost,
			URL:     url,
			Headers: http.Header{"Content-Type": []string{"application/json"}},
			Body:    encoded,
		})
		if err != nil {
			return err
		}
		if !resp.OK() {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		body = resp.Body
		return nil
	})
	elapsed := time.Since(start)
	if err != nil {
		metrics.ObserveRelay(endpoint, "error", elapsed)
		c.logger.Warn("relay call failed",
			logging.Field{Key: "endpoint", Value: endpoint},
			logging.Field{Key: "elapsed_ms", Value: elapsed.Milliseconds()},
			logging.Field{Key: "error", Value: err.Error()})
		return nil, fmt.Errorf("%w: %s: %w", ErrRelayCall, endpoint, err)
	}
	metrics.ObserveRelay(endpoint, "ok", elapsed)
	return body, nil
}

func stringField(v gjson.Result, key string) string {
	f := v.Get(key)
	if f.Type != gjson.String {
		return ""
	}
	return f.Str
}

func numberField(v gjson.Result, key string) float64 {
	f := v.Get(key)
	if f.Type != gjson.Number {
		return 0
	}
	return f.Num
}

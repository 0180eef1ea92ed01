package relay_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/raysh454/darkscan/internal/relay"
)

func newClient(t *testing.T, srv *httptest.Server, mutate func(*relay.Config)) *relay.Client {
	t.Helper()
	cfg := relay.DefaultConfig()
	cfg.BaseURL = srv.URL
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := relay.New(cfg, nil, nil)
	require.NoError(t, err)
	return c
}

func TestVerify_ParsesAnswers(t *testing.T) {
	t.Parallel()

	var got []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/verify-patterns", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		got, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"verified":[
			{"text":"Only 2 left","category":"Scarcity","confidence":0.95,"explanation":"low stock claim","is_dark_pattern":true},
			"junk",
			{"text":"Sign up","category":"None","is_dark_pattern":false,"confidence":"high"}
		]}`))
	}))
	defer srv.Close()

	c := newClient(t, srv, nil)
	out, err := c.Verify(context.Background(), []relay.Item{{
		Text: "Only 2 left! Hurry", Category: "Scarcity", Confidence: 0.9, Reason: "r", PatternType: "heuristic",
	}})
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "Only 2 left", out[0].Text)
	assert.InDelta(t, 0.95, out[0].Confidence, 1e-9)
	assert.Equal(t, "low stock claim", out[0].Explanation)
	assert.False(t, out[0].Rejected)

	assert.True(t, out[1].Rejected)
	assert.Zero(t, out[1].Confidence)

	assert.Equal(t, "Only 2 left! Hurry", gjson.GetBytes(got, "patterns.0.text").String())
	assert.Equal(t, "heuristic", gjson.GetBytes(got, "patterns.0.pattern_type").String())
}

func TestVerify_EmptyInputSkipsCall(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	out, err := newClient(t, srv, nil).Verify(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestVerify_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusInternalServerError, `{"verified":[]}`, relay.ErrRelayCall},
		{"not json", http.StatusOK, `<html>`, relay.ErrMalformedResponse},
		{"missing array", http.StatusOK, `{"result":"ok"}`, relay.ErrMalformedResponse},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newClient(t, srv, nil).Verify(context.Background(), []relay.Item{{Text: "x"}})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), err.Error())
		})
	}
}

func TestVerifyBestEffort_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newClient(t, srv, func(cfg *relay.Config) { cfg.BestEffortTimeout = 50 * time.Millisecond })
	start := time.Now()
	_, err := c.VerifyBestEffort(context.Background(), []relay.Item{{Text: "Hurry"}})
	require.ErrorIs(t, err, relay.ErrRelayCall)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newClient(t, srv, func(cfg *relay.Config) {
		cfg.BreakerMaxFailures = 2
		cfg.BreakerCooldown = time.Minute
	})
	for i := 0; i < 4; i++ {
		_, err := c.Describe(context.Background(), relay.DescribeRequest{Category: "Urgency", Text: "Hurry"})
		require.ErrorIs(t, err, relay.ErrRelayCall)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "Urgency", gjson.GetBytes(body, "category").String())
		_, _ = w.Write([]byte(`{"description":"  Creates false time pressure.  "}`))
	}))
	defer srv.Close()

	desc, err := newClient(t, srv, nil).Describe(context.Background(), relay.DescribeRequest{Category: "Urgency", Text: "Hurry"})
	require.NoError(t, err)
	assert.Equal(t, "Creates false time pressure.", desc)
}

func TestUpdateDataset(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/update-dataset", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, int64(1), gjson.GetBytes(body, "patterns.0.label").Int())
		_, _ = w.Write([]byte(`{"added":1,"skipped":2,"message":"ok"}`))
	}))
	defer srv.Close()

	res, err := newClient(t, srv, nil).UpdateDataset(context.Background(), []relay.DatasetItem{
		{Text: "Only 2 left", Category: "Scarcity", Label: 1, Confidence: 0.9},
	})
	require.NoError(t, err)
	assert.Equal(t, relay.DatasetResult{Added: 1, Skipped: 2, Message: "ok"}, res)
}

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/darkscan/internal/app"
	"github.com/raysh454/darkscan/internal/config"
	"github.com/raysh454/darkscan/internal/webclient"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, app.DefaultConfig(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "darkscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
monitor:
  coarse: 2m
  fine: 750ms
webclient:
  client: chromedp
relay:
  base_url: http://relay.internal:9000
  breaker_max_failures: 3
history:
  capacity: 25
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 2*time.Minute, cfg.Monitor.Coarse)
	assert.Equal(t, 750*time.Millisecond, cfg.Monitor.Fine)
	assert.Equal(t, 180*time.Second, cfg.Monitor.Settle)
	assert.Equal(t, webclient.ClientChromedp, cfg.WebClient.Client)
	assert.Equal(t, "http://relay.internal:9000", cfg.Relay.BaseURL)
	assert.Equal(t, uint32(3), cfg.Relay.BreakerMaxFailures)
	assert.Equal(t, 25, cfg.History.Capacity)
	assert.Equal(t, "/verify-patterns", cfg.Relay.VerifyPath)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "darkscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9000\"\n"), 0o644))
	t.Setenv("DARKSCAN_SERVER_ADDR", ":9100")
	t.Setenv("DARKSCAN_RULES_THRESHOLD", "0.7")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.InDelta(t, 0.7, cfg.Rules.Threshold, 1e-9)
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

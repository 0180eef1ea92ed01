// Package config loads app.Config from an optional YAML file and
// DARKSCAN_-prefixed environment variables on top of the built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/raysh454/darkscan/internal/app"
)

const (
	// EnvPrefix prefixes every environment override, e.g.
	// DARKSCAN_RELAY_BASE_URL.
	EnvPrefix = "DARKSCAN"
	fileName  = "darkscan"
)

// Load reads configPath when set, otherwise looks for darkscan.yaml in
// ./config and the working directory. A missing file is not an error.
func Load(configPath string) (*app.Config, error) {
	v := viper.New()
	setDefaults(v, app.DefaultConfig())

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(fileName)
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := app.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that
// are absent from the file.
func setDefaults(v *viper.Viper, d *app.Config) {
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("scan.snippet_max", d.Scan.SnippetMax)

	v.SetDefault("monitor.enabled", d.Monitor.Enabled)
	v.SetDefault("monitor.settle", d.Monitor.Settle)
	v.SetDefault("monitor.coarse", d.Monitor.Coarse)
	v.SetDefault("monitor.fine", d.Monitor.Fine)

	v.SetDefault("webclient.client", string(d.WebClient.Client))
	v.SetDefault("webclient.timeout", d.WebClient.Timeout)
	v.SetDefault("webclient.idle_after", d.WebClient.IdleAfter)
	v.SetDefault("webclient.show_browser", d.WebClient.ShowBrowser)
	v.SetDefault("webclient.user_agent", d.WebClient.UserAgent)

	v.SetDefault("rules.threshold", d.Rules.Threshold)

	v.SetDefault("relay.base_url", d.Relay.BaseURL)
	v.SetDefault("relay.verify_path", d.Relay.VerifyPath)
	v.SetDefault("relay.describe_path", d.Relay.DescribePath)
	v.SetDefault("relay.dataset_path", d.Relay.DatasetPath)
	v.SetDefault("relay.verify_timeout", d.Relay.VerifyTimeout)
	v.SetDefault("relay.describe_timeout", d.Relay.DescribeTimeout)
	v.SetDefault("relay.dataset_timeout", d.Relay.DatasetTimeout)
	v.SetDefault("relay.best_effort_timeout", d.Relay.BestEffortTimeout)
	v.SetDefault("relay.breaker_max_failures", d.Relay.BreakerMaxFailures)
	v.SetDefault("relay.breaker_cooldown", d.Relay.BreakerCooldown)

	v.SetDefault("verifier.nlp_candidates", d.Verifier.NLPCandidates)
	v.SetDefault("verifier.describe", d.Verifier.Describe)
	v.SetDefault("verifier.enrich_workers", d.Verifier.EnrichWorkers)

	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("history.capacity", d.History.Capacity)
}

package app

import (
	"time"

	"github.com/raysh454/darkscan/internal/history"
	"github.com/raysh454/darkscan/internal/relay"
	"github.com/raysh454/darkscan/internal/rules"
	"github.com/raysh454/darkscan/internal/verifier"
	"github.com/raysh454/darkscan/internal/webclient"
)

// Config aggregates the configuration of every module.
type Config struct {
	Log       LogConfig        `mapstructure:"log"`
	Server    ServerConfig     `mapstructure:"server"`
	Scan      ScanConfig       `mapstructure:"scan"`
	Monitor   MonitorConfig    `mapstructure:"monitor"`
	WebClient webclient.Config `mapstructure:"webclient"`
	Rules     rules.Config     `mapstructure:"rules"`
	Relay     relay.Config     `mapstructure:"relay"`
	Verifier  verifier.Config  `mapstructure:"verifier"`
	History   history.Config   `mapstructure:"history"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type ScanConfig struct {
	// SnippetMax caps extracted snippets, in characters.
	SnippetMax int `mapstructure:"snippet_max"`
}

type MonitorConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Settle is the delay between the first completed scan and the start
	// of monitoring.
	Settle time.Duration `mapstructure:"settle"`
	Coarse time.Duration `mapstructure:"coarse"`
	// Fine is used when the stored scanInterval setting is unset.
	Fine time.Duration `mapstructure:"fine"`
}

// DefaultConfig returns a Config populated with production defaults.
func DefaultConfig() *Config {
	return &Config{
		Log:    LogConfig{Level: "info"},
		Server: ServerConfig{Addr: ":8080"},
		Scan:   ScanConfig{SnippetMax: 300},
		Monitor: MonitorConfig{
			Enabled: true,
			Settle:  180 * time.Second,
			Coarse:  60 * time.Second,
			Fine:    5 * time.Second,
		},
		WebClient: webclient.DefaultConfig(),
		Rules:     rules.DefaultConfig(),
		Relay:     relay.DefaultConfig(),
		Verifier:  verifier.DefaultConfig(),
		History:   history.DefaultConfig(),
	}
}

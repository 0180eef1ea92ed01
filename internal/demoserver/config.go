package demoserver

import "time"

// Config holds configuration for the demo shop.
type Config struct {
	// Addr is the listen address of the demo shop.
	Addr string `mapstructure:"addr"`

	// InitialVersion is the starting version for all pages (default: 1).
	InitialVersion int `mapstructure:"initial_version"`

	// CountdownFrom is the timer value printed on urgency banners.
	CountdownFrom time.Duration `mapstructure:"countdown_from"`
}

func DefaultConfig() Config {
	return Config{
		Addr:           ":9999",
		InitialVersion: 1,
		CountdownFrom:  10 * time.Minute,
	}
}

package webclient

import "time"

type Client string

const (
	ClientNetHTTP  Client = "nethttp"
	ClientChromedp Client = "chromedp"
)

// Config selects and tunes the backend used for page snapshots and relay
// egress.
type Config struct {
	Client Client `mapstructure:"client"`

	// Timeout bounds a single nethttp round trip and a chromedp navigation.
	Timeout time.Duration `mapstructure:"timeout"`

	// IdleAfter is how long the network must stay quiet before chromedp
	// considers the page settled.
	IdleAfter time.Duration `mapstructure:"idle_after"`

	// ShowBrowser runs chromedp with a visible window.
	ShowBrowser bool   `mapstructure:"show_browser"`
	UserAgent   string `mapstructure:"user_agent"`
}

func DefaultConfig() Config {
	return Config{
		Client:    ClientNetHTTP,
		Timeout:   30 * time.Second,
		IdleAfter: 2 * time.Second,
		UserAgent: "darkscan/1.0",
	}
}

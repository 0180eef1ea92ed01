package relay

import "time"

type Config struct {
	BaseURL      string `mapstructure:"base_url"`
	VerifyPath   string `mapstructure:"verify_path"`
	DescribePath string `mapstructure:"describe_path"`
	DatasetPath  string `mapstructure:"dataset_path"`

	VerifyTimeout     time.Duration `mapstructure:"verify_timeout"`
	DescribeTimeout   time.Duration `mapstructure:"describe_timeout"`
	DatasetTimeout    time.Duration `mapstructure:"dataset_timeout"`
	BestEffortTimeout time.Duration `mapstructure:"best_effort_timeout"`

	// Breaker opens after BreakerMaxFailures consecutive failures of one
	// endpoint and half-opens after BreakerCooldown.
	BreakerMaxFailures uint32        `mapstructure:"breaker_max_failures"`
	BreakerCooldown    time.Duration `mapstructure:"breaker_cooldown"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:            "http://127.0.0.1:8001",
		VerifyPath:         "/verify-patterns",
		DescribePath:       "/generate-description",
		DatasetPath:        "/update-dataset",
		VerifyTimeout:      15 * time.Second,
		DescribeTimeout:    15 * time.Second,
		DatasetTimeout:     10 * time.Second,
		BestEffortTimeout:  2500 * time.Millisecond,
		BreakerMaxFailures: 5,
		BreakerCooldown:    30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	if c.VerifyPath == "" {
		c.VerifyPath = def.VerifyPath
	}
	if c.DescribePath == "" {
		c.DescribePath = def.DescribePath
	}
	if c.DatasetPath == "" {
		c.DatasetPath = def.DatasetPath
	}
	if c.VerifyTimeout <= 0 {
		c.VerifyTimeout = def.VerifyTimeout
	}
	if c.DescribeTimeout <= 0 {
		c.DescribeTimeout = def.DescribeTimeout
	}
	if c.DatasetTimeout <= 0 {
		c.DatasetTimeout = def.DatasetTimeout
	}
	if c.BestEffortTimeout <= 0 {
		c.BestEffortTimeout = def.BestEffortTimeout
	}
	if c.BreakerMaxFailures == 0 {
		c.BreakerMaxFailures = def.BreakerMaxFailures
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = def.BreakerCooldown
	}
	return c
}

package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *CrawlConfig {
	cfg := DefaultConfig()
	cfg.StartURLs = []string{"https://example.com"}
	return cfg
}

func TestDefaultsValidate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CrawlConfig)
	}{
		{"no starts", func(c *CrawlConfig) { c.StartURLs = nil }},
		{"zero max pages", func(c *CrawlConfig) { c.MaxPages = 0 }},
		{"negative depth", func(c *CrawlConfig) { c.MaxDepth = -1 }},
		{"zero concurrency", func(c *CrawlConfig) { c.Concurrency = 0 }},
		{"negative delay", func(c *CrawlConfig) { c.Delay = -time.Second }},
		{"sub-second timeout", func(c *CrawlConfig) { c.Timeout = 500 * time.Millisecond }},
		{"resume without sqlite", func(c *CrawlConfig) { c.Resume = true }},
		{"empty output", func(c *CrawlConfig) { c.OutputPath = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
		})
	}
}

func TestNormalizeClamps(t *testing.T) {
	cfg := validConfig()
	cfg.MaxConnections = 0
	cfg.MetricsInterval = -time.Second
	cfg.GlobalRPS = -3
	cfg.UserAgent = ""
	cfg.Resume = true
	cfg.SQLitePath = ""

	cfg.Normalize()
	assert.Equal(t, 1, cfg.MaxConnections)
	assert.Zero(t, cfg.MetricsInterval)
	assert.Zero(t, cfg.GlobalRPS)
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
	assert.False(t, cfg.Resume, "resume without a store is dropped")
}

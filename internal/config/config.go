// Package config defines crawl configuration and validation.
package config

import (
	"errors"
	"fmt"
	"time"
)

// DefaultUserAgent identifies the crawler to origin servers.
const DefaultUserAgent = "polite-crawler/1.0 (+https://example.com; contact: crawler@example.com)"

// ErrInvalid marks configuration errors; the CLI maps it to exit code 2.
var ErrInvalid = errors.New("invalid configuration")

// CrawlConfig holds all settings for a crawl session.
type CrawlConfig struct {
	// Seed URLs to start crawling from.
	StartURLs []string

	// Domains the crawl is scoped to. Empty means the hosts of StartURLs.
	AllowedDomains []string

	// Global page-fetch cap.
	MaxPages int

	// Maximum link distance from any seed.
	MaxDepth int

	// Number of concurrent workers.
	Concurrency int

	// HTTP connection pool size per host.
	MaxConnections int

	// Per-host politeness delay.
	Delay time.Duration

	// HTTP read timeout.
	Timeout time.Duration

	// User-Agent header.
	UserAgent string

	// Whether robots.txt is consulted before each fetch.
	ObeyRobots bool

	// JSONL output path.
	OutputPath string

	// SQLite database path; empty disables persistence.
	SQLitePath string

	// Resume from the persisted frontier (requires SQLitePath).
	Resume bool

	// Interval between periodic perf log lines; 0 disables them.
	MetricsInterval time.Duration

	// Aggregate requests-per-second ceiling across all hosts; 0 disables it.
	GlobalRPS float64

	// Port for the Prometheus /metrics endpoint; 0 disables it.
	PrometheusPort int
}

// DefaultConfig returns a config with the documented defaults.
func DefaultConfig() *CrawlConfig {
	return &CrawlConfig{
		MaxPages:        200,
		MaxDepth:        2,
		Concurrency:     8,
		MaxConnections:  16,
		Delay:           500 * time.Millisecond,
		Timeout:         15 * time.Second,
		UserAgent:       DefaultUserAgent,
		ObeyRobots:      true,
		OutputPath:      "crawl.jsonl",
		MetricsInterval: 10 * time.Second,
	}
}

// Validate checks hard requirements. Soft bounds are clamped by Normalize.
func (c *CrawlConfig) Validate() error {
	if len(c.StartURLs) == 0 {
		return fmt.Errorf("%w: at least one start URL is required", ErrInvalid)
	}
	if c.MaxPages < 1 {
		return fmt.Errorf("%w: max-pages must be >= 1", ErrInvalid)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("%w: max-depth must be >= 0", ErrInvalid)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be >= 1", ErrInvalid)
	}
	if c.Delay < 0 {
		return fmt.Errorf("%w: delay must be >= 0", ErrInvalid)
	}
	if c.Timeout < time.Second {
		return fmt.Errorf("%w: timeout must be >= 1s", ErrInvalid)
	}
	if c.Resume && c.SQLitePath == "" {
		return fmt.Errorf("%w: --resume requires --sqlite", ErrInvalid)
	}
	if c.OutputPath == "" {
		return fmt.Errorf("%w: output path must not be empty", ErrInvalid)
	}
	return nil
}

// Normalize clamps soft bounds and derives dependent fields.
func (c *CrawlConfig) Normalize() {
	if c.MaxConnections < 1 {
		c.MaxConnections = 1
	}
	if c.MetricsInterval < 0 {
		c.MetricsInterval = 0
	}
	if c.GlobalRPS < 0 {
		c.GlobalRPS = 0
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	// Resume is only meaningful with a store.
	if c.SQLitePath == "" {
		c.Resume = false
	}
}

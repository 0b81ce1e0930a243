// Package robots caches per-origin robots.txt policies. An origin whose
// robots.txt cannot be fetched or answers >= 400 is treated as fully allowed
// for the rest of the session.
package robots

import (
	"context"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// RawFetcher fetches a URL and returns the raw response.
type RawFetcher interface {
	FetchRaw(ctx context.Context, url string) (status int, contentType string, body []byte, err error)
}

// Cache holds one parsed policy per origin (scheme://host). A nil entry
// means the policy was unavailable and the origin is allowed.
type Cache struct {
	userAgent string
	client    RawFetcher
	log       *zap.Logger

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData
}

// NewCache creates an empty cache backed by the given fetcher.
func NewCache(userAgent string, client RawFetcher, log *zap.Logger) *Cache {
	return &Cache{
		userAgent: userAgent,
		client:    client,
		log:       log,
		cache:     make(map[string]*robotstxt.RobotsData),
	}
}

// CanFetch reports whether the configured user agent may fetch rawURL.
// The robots.txt fetch happens outside the cache lock.
func (c *Cache) CanFetch(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	origin := u.Scheme + "://" + u.Host

	c.mu.Lock()
	data, cached := c.cache[origin]
	c.mu.Unlock()

	if !cached {
		data = c.fetchPolicy(ctx, origin)
		c.mu.Lock()
		c.cache[origin] = data
		c.mu.Unlock()
	}

	if data == nil {
		return true
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.TestAgent(path, c.userAgent)
}

func (c *Cache) fetchPolicy(ctx context.Context, origin string) *robotstxt.RobotsData {
	status, _, body, err := c.client.FetchRaw(ctx, origin+"/robots.txt")
	if err != nil {
		c.log.Debug("robots.txt unavailable", zap.String("origin", origin), zap.Error(err))
		return nil
	}
	if status >= 400 {
		return nil
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		c.log.Debug("robots.txt unparseable", zap.String("origin", origin), zap.Error(err))
		return nil
	}
	return data
}

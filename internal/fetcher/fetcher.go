// Package fetcher implements the HTTP transport used by crawl workers:
// pooled connections, bounded retries, and text decoding for HTML pages.
package fetcher

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	connectTimeout = 5 * time.Second
	maxBodySize    = 10 * 1024 * 1024
	maxRetries     = 2
	backoffBase    = 300 * time.Millisecond
)

// Result is the outcome of fetching a URL that produced an HTTP response.
// Text is non-empty only for text/html and text/plain bodies.
type Result struct {
	Status      int
	ContentType string
	Text        string
	SizeBytes   int64
}

// Client is an HTTP client tuned for crawling. It retries transport errors
// and 429/5xx responses with exponential backoff.
type Client struct {
	client    *http.Client
	transport *http.Transport
	userAgent string
	log       *zap.Logger
}

// NewClient creates a client with the given read timeout and per-host
// connection pool size.
func NewClient(userAgent string, readTimeout time.Duration, maxConnections int, log *zap.Logger) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: maxConnections,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   readTimeout,
		},
		transport: transport,
		userAgent: userAgent,
		log:       log,
	}
}

// Fetch retrieves url and returns nil when the transport fails or retries
// are exhausted without a response.
func (c *Client) Fetch(ctx context.Context, url string) *Result {
	status, contentType, body, err := c.FetchRaw(ctx, url)
	if err != nil {
		c.log.Debug("fetch failed", zap.String("url", url), zap.Error(err))
		return nil
	}
	text := ""
	if strings.Contains(contentType, "text/html") || strings.Contains(contentType, "text/plain") {
		text = strings.ToValidUTF8(string(body), "")
	}
	return &Result{
		Status:      status,
		ContentType: contentType,
		Text:        text,
		SizeBytes:   int64(len(body)),
	}
}

// FetchRaw performs a GET with retries and returns the raw response. It is
// also used by the robots cache, which needs status and body regardless of
// content type.
func (c *Client) FetchRaw(ctx context.Context, url string) (status int, contentType string, body []byte, err error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := backoffBase << (attempt - 1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return 0, "", nil, ctx.Err()
			}
		}

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if reqErr != nil {
			return 0, "", nil, reqErr
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "text/html,*/*;q=0.8")

		resp, doErr := c.client.Do(req)
		if doErr != nil {
			lastErr = doErr
			continue
		}

		if retryableStatus(resp.StatusCode) && attempt < maxRetries {
			io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
			resp.Body.Close()
			continue
		}

		data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}
		return resp.StatusCode, resp.Header.Get("Content-Type"), data, nil
	}
	return 0, "", nil, lastErr
}

// Close releases idle connections.
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Package engine coordinates the crawl: a shared frontier drained by a worker
// pool, a two-tier visited gate, robots and politeness gating, and durable
// persistence enabling resume without duplicate work.
package engine

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/polite-crawler/polite/internal/bloom"
	"github.com/polite-crawler/polite/internal/config"
	"github.com/polite-crawler/polite/internal/fetcher"
	"github.com/polite-crawler/polite/internal/frontier"
	"github.com/polite-crawler/polite/internal/metrics"
	"github.com/polite-crawler/polite/internal/parser"
	"github.com/polite-crawler/polite/internal/robots"
	"github.com/polite-crawler/polite/internal/scheduler"
	"github.com/polite-crawler/polite/internal/storage"
	"github.com/polite-crawler/polite/internal/urlutil"
)

const (
	// pollInterval is the bounded frontier wait; an empty poll is the
	// workers' termination signal.
	pollInterval = 500 * time.Millisecond

	// bloomTargetFPR sizes the visited-set accelerator.
	bloomTargetFPR = 0.001

	// bloomPreloadBatch caps memory while streaming crawled URLs on resume.
	bloomPreloadBatch = 10_000
)

// Fetcher fetches a URL, returning nil on transport failure.
type Fetcher interface {
	Fetch(ctx context.Context, url string) *fetcher.Result
}

// Crawler owns the in-memory frontier, the visited set, and worker lifetime.
type Crawler struct {
	cfg     *config.CrawlConfig
	log     *zap.Logger
	http    Fetcher
	robots  *robots.Cache
	rate    *scheduler.HostRateLimiter
	global  *scheduler.GlobalLimiter
	queue   *frontier.Queue
	writer  *storage.JsonlWriter
	store   *storage.Store
	metrics *metrics.Metrics

	allowed []string

	// visitedMu guards filter (with store) or visited (without). It is held
	// only for membership tests and inserts, never across I/O.
	visitedMu sync.Mutex
	filter    *bloom.Filter
	visited   map[string]struct{}

	pagesMu      sync.Mutex
	pagesCrawled int

	closeHTTP func()
}

// Option adjusts crawler construction, mainly for tests.
type Option func(*Crawler)

// WithFetcher substitutes the HTTP client.
func WithFetcher(f Fetcher) Option {
	return func(c *Crawler) { c.http = f }
}

// New builds a crawler and seeds its frontier. When a store is configured and
// either the resume flag is set or the output file already exists, persisted
// state supersedes the start URLs.
func New(cfg *config.CrawlConfig, log *zap.Logger, opts ...Option) (*Crawler, error) {
	cfg.Normalize()

	client := fetcher.NewClient(cfg.UserAgent, cfg.Timeout, cfg.MaxConnections, log)
	c := &Crawler{
		cfg:       cfg,
		log:       log,
		http:      client,
		rate:      scheduler.NewHostRateLimiter(cfg.Delay),
		global:    scheduler.NewGlobalLimiter(cfg.GlobalRPS),
		queue:     frontier.NewQueue(),
		metrics:   metrics.New(),
		allowed:   urlutil.CleanDomains(cfg.AllowedDomains),
		visited:   make(map[string]struct{}),
		closeHTTP: client.Close,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.robots = robots.NewCache(cfg.UserAgent, clientRawFetcher(c.http, client), log)

	resume := false
	if cfg.SQLitePath != "" {
		store, err := storage.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		c.store = store

		capacity := cfg.MaxPages
		if capacity < 1 {
			capacity = 1
		}
		filter, err := bloom.New(capacity, bloomTargetFPR)
		if err != nil {
			store.Close()
			return nil, err
		}
		c.filter = filter

		resume = cfg.Resume || fileExists(cfg.OutputPath)
	}

	writer, err := storage.NewJsonlWriter(cfg.OutputPath, resume)
	if err != nil {
		if c.store != nil {
			c.store.Close()
		}
		return nil, err
	}
	c.writer = writer

	if resume {
		if err := c.initResume(); err != nil {
			c.closeAll()
			return nil, err
		}
	} else {
		c.seedStarts()
	}
	return c, nil
}

// clientRawFetcher prefers an injected fetcher that also implements FetchRaw
// (test stubs), falling back to the real client for robots.txt retrieval.
func clientRawFetcher(injected Fetcher, client *fetcher.Client) robots.RawFetcher {
	if raw, ok := injected.(robots.RawFetcher); ok {
		return raw
	}
	return client
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// seedStarts enqueues the normalized start URLs at depth zero.
func (c *Crawler) seedStarts() {
	for _, u := range urlutil.NormalizeStart(c.cfg.StartURLs) {
		c.queue.Put(frontier.Entry{URL: u, Depth: 0})
		if c.store != nil {
			if _, err := c.store.MarkEnqueued(u, 0); err != nil {
				c.log.Warn("persist enqueue failed", zap.String("url", u), zap.Error(err))
			}
		}
	}
}

// initResume rebuilds the visited accelerator from the pages table and
// restores the persisted frontier. Start URLs are only used when the
// persisted frontier is empty.
func (c *Crawler) initResume() error {
	preloaded := 0
	err := c.store.IterPagesURLs(bloomPreloadBatch, func(urls []string) error {
		c.filter.AddBatch(urls)
		preloaded += len(urls)
		return nil
	})
	if err != nil {
		return err
	}
	if preloaded > 0 {
		c.log.Info("resume: preloaded visited set", zap.Int("urls", preloaded))
	}

	rows, err := c.store.LoadFrontier()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		c.seedStarts()
		return nil
	}
	for _, row := range rows {
		c.queue.Put(frontier.Entry{URL: row.URL, Depth: row.Depth})
	}
	c.log.Info("resume: restored frontier", zap.Int("entries", len(rows)))
	return nil
}

// Run executes the crawl to completion: cap reached or frontier drained.
func (c *Crawler) Run(ctx context.Context) error {
	defer c.closeAll()

	c.log.Info("starting crawl",
		zap.Strings("starts", c.cfg.StartURLs),
		zap.Strings("allowed_domains", c.allowed),
		zap.Int("max_pages", c.cfg.MaxPages),
		zap.Int("concurrency", c.cfg.Concurrency),
	)

	var stats *metrics.StatsLogger
	if c.cfg.MetricsInterval > 0 {
		stats = metrics.NewStatsLogger(c.metrics, c.cfg.MetricsInterval, c.log)
		stats.Start()
	}
	var exporter *metrics.Exporter
	if c.cfg.PrometheusPort > 0 {
		exporter = metrics.NewExporter(c.metrics, c.cfg.PrometheusPort, c.log)
		exporter.Start()
	}

	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.worker(ctx)
		}()
	}
	wg.Wait()

	if stats != nil {
		stats.Stop()
	}
	if exporter != nil {
		exporter.Stop()
	}

	c.log.Info("finished crawl",
		zap.Int("pages_crawled", c.PagesCrawled()),
		zap.String("output", c.cfg.OutputPath),
	)
	return nil
}

func (c *Crawler) closeAll() {
	c.writer.Close()
	if c.store != nil {
		c.store.Close()
	}
	if c.closeHTTP != nil {
		c.closeHTTP()
	}
}

// PagesCrawled returns the advisory page count.
func (c *Crawler) PagesCrawled() int {
	c.pagesMu.Lock()
	defer c.pagesMu.Unlock()
	return c.pagesCrawled
}

func (c *Crawler) withinLimit() bool {
	c.pagesMu.Lock()
	defer c.pagesMu.Unlock()
	return c.pagesCrawled < c.cfg.MaxPages
}

func (c *Crawler) incrementPages() int {
	c.pagesMu.Lock()
	defer c.pagesMu.Unlock()
	c.pagesCrawled++
	return c.pagesCrawled
}

func (c *Crawler) storeDequeue(url string) {
	if c.store == nil {
		return
	}
	if err := c.store.Dequeue(url); err != nil {
		c.log.Warn("store dequeue failed", zap.String("url", url), zap.Error(err))
	}
}

// worker drains the frontier until the page cap is reached or the queue stays
// empty across one bounded wait.
func (c *Crawler) worker(ctx context.Context) {
	for c.withinLimit() {
		if ctx.Err() != nil {
			return
		}
		entry, ok := c.queue.Get(pollInterval)
		if !ok {
			return
		}
		if !c.withinLimit() {
			c.queue.TaskDone()
			return
		}

		if c.cfg.ObeyRobots && !c.robots.CanFetch(ctx, entry.URL) {
			c.log.Debug("disallowed by robots.txt", zap.String("url", entry.URL))
			c.queue.TaskDone()
			c.storeDequeue(entry.URL)
			continue
		}

		if !c.shouldVisit(entry.URL) {
			c.queue.TaskDone()
			c.storeDequeue(entry.URL)
			continue
		}

		if err := c.global.Wait(ctx); err != nil {
			c.queue.TaskDone()
			return
		}
		c.rate.WaitTurn(urlutil.Host(entry.URL))

		start := time.Now()
		res := c.http.Fetch(ctx, entry.URL)
		fetchMs := float64(time.Since(start).Microseconds()) / 1000.0

		if res == nil {
			c.metrics.RecordFetch(false, 0, fetchMs)
			c.storeDequeue(entry.URL)
			c.queue.TaskDone()
			continue
		}

		rec := storage.PageRecord{
			URL:         entry.URL,
			Status:      res.Status,
			ContentType: res.ContentType,
		}
		var links []string
		if res.Text != "" && strings.Contains(res.ContentType, "text/html") {
			extracted, pageLinks := parser.Extract(entry.URL, res.Text)
			rec.Title = extracted.Title
			rec.Description = extracted.Description
			rec.Text = extracted.Text
			rec.NumLinks = extracted.NumLinks
			links = pageLinks
			c.enqueueLinks(links, entry.Depth)
		}

		if err := c.writer.Write(rec); err != nil {
			// A broken sink stops this worker; the rest continue.
			c.log.Error("jsonl write failed", zap.String("url", entry.URL), zap.Error(err))
			c.queue.TaskDone()
			return
		}
		c.metrics.RecordFetch(true, res.SizeBytes, fetchMs)

		if c.store != nil {
			if err := c.store.SavePage(rec, entry.Depth); err != nil {
				c.log.Warn("save page failed", zap.String("url", entry.URL), zap.Error(err))
			}
			if err := c.store.AddLinks(entry.URL, links); err != nil {
				c.log.Warn("add links failed", zap.String("url", entry.URL), zap.Error(err))
			}
			c.storeDequeue(entry.URL)
		}

		if n := c.incrementPages(); n%10 == 0 {
			c.log.Info("progress", zap.Int("pages_crawled", n))
		}
		c.queue.TaskDone()
	}
}

// shouldVisit admits each URL at most once across the crawl's lifetime,
// including across restarts when a store is configured. The Bloom filter
// answers the common negative in O(1); the store is the authority behind
// filter positives.
func (c *Crawler) shouldVisit(url string) bool {
	if !urlutil.IsAllowedDomain(url, c.allowed) {
		return false
	}

	if c.store == nil {
		c.visitedMu.Lock()
		defer c.visitedMu.Unlock()
		if _, seen := c.visited[url]; seen {
			return false
		}
		c.visited[url] = struct{}{}
		return true
	}

	c.visitedMu.Lock()
	if !c.filter.Contains(url) {
		c.filter.Add(url)
		c.visitedMu.Unlock()
		return true
	}
	c.visitedMu.Unlock()

	// Possible false positive: consult the store outside the lock.
	has, err := c.store.HasPage(url)
	if err != nil {
		c.log.Warn("has page failed", zap.String("url", url), zap.Error(err))
		return false
	}
	if has {
		return false
	}

	c.visitedMu.Lock()
	c.filter.Add(url)
	c.visitedMu.Unlock()
	return true
}

// enqueueLinks pushes in-domain links at the next depth. With a store, a link
// is enqueued only when it is unseen and the frontier insert won the race;
// an existing entry's depth is never updated.
func (c *Crawler) enqueueLinks(links []string, currentDepth int) {
	nextDepth := currentDepth + 1
	if nextDepth > c.cfg.MaxDepth {
		return
	}
	for _, link := range links {
		if !urlutil.IsAllowedDomain(link, c.allowed) {
			continue
		}
		if c.store != nil {
			seen, err := c.store.SeenURL(link)
			if err != nil {
				c.log.Warn("seen url failed", zap.String("url", link), zap.Error(err))
				continue
			}
			if seen {
				continue
			}
			inserted, err := c.store.MarkEnqueued(link, nextDepth)
			if err != nil {
				c.log.Warn("persist enqueue failed", zap.String("url", link), zap.Error(err))
				continue
			}
			if !inserted {
				continue
			}
		}
		c.queue.Put(frontier.Entry{URL: link, Depth: nextDepth})
	}
}

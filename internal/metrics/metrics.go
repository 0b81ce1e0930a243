// Package metrics accumulates crawl counters and logs periodic snapshots.
package metrics

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Totals are the accumulated crawl counters.
type Totals struct {
	Pages      int64
	Bytes      int64
	Errors     int64
	FetchMsSum float64
}

// Metrics is a lock-guarded counter set shared by all workers.
type Metrics struct {
	mu     sync.Mutex
	totals Totals
	start  time.Time
}

// New creates a Metrics with the clock started now.
func New() *Metrics {
	return &Metrics{start: time.Now()}
}

// RecordFetch atomically accounts for one fetch attempt.
func (m *Metrics) RecordFetch(ok bool, bytes int64, fetchMs float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals.Pages++
	if bytes > 0 {
		m.totals.Bytes += bytes
	}
	if !ok {
		m.totals.Errors++
	}
	m.totals.FetchMsSum += fetchMs
}

// Snapshot returns a consistent copy of the totals and the elapsed seconds
// since construction.
func (m *Metrics) Snapshot() (Totals, float64) {
	m.mu.Lock()
	t := m.totals
	m.mu.Unlock()
	elapsed := time.Since(m.start).Seconds()
	if elapsed < 1e-6 {
		elapsed = 1e-6
	}
	return t, elapsed
}

// minStatsInterval bounds how often the stats logger may wake.
const minStatsInterval = 500 * time.Millisecond

// StatsLogger periodically logs a perf line derived from a Metrics snapshot.
type StatsLogger struct {
	metrics  *Metrics
	interval time.Duration
	log      *zap.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewStatsLogger creates a logger waking every interval (floored at 500ms).
func NewStatsLogger(m *Metrics, interval time.Duration, log *zap.Logger) *StatsLogger {
	if interval < minStatsInterval {
		interval = minStatsInterval
	}
	return &StatsLogger{
		metrics:  m,
		interval: interval,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the logging goroutine.
func (s *StatsLogger) Start() {
	go s.run()
}

func (s *StatsLogger) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			totals, elapsed := s.metrics.Snapshot()
			pages := totals.Pages
			avgMs := 0.0
			if pages > 0 {
				avgMs = totals.FetchMsSum / float64(pages)
			}
			s.log.Info("perf",
				zap.Int64("pages", pages),
				zap.Int64("errors", totals.Errors),
				zap.Float64("mb", float64(totals.Bytes)/(1024*1024)),
				zap.Float64("avg_fetch_ms", avgMs),
				zap.Float64("pages_per_sec", float64(pages)/elapsed),
			)
		}
	}
}

// Stop signals the goroutine and waits for it to exit.
func (s *StatsLogger) Stop() {
	close(s.stop)
	<-s.done
}

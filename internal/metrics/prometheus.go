package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const exporterUpdateInterval = 5 * time.Second

// Exporter serves crawl counters on a Prometheus /metrics endpoint. It diffs
// Metrics snapshots into counters on a fixed interval.
type Exporter struct {
	metrics *Metrics
	log     *zap.Logger
	server  *http.Server

	pagesTotal  prometheus.Counter
	bytesTotal  prometheus.Counter
	errorsTotal prometheus.Counter
	pagesPerSec prometheus.Gauge
	avgFetchSec prometheus.Gauge

	last Totals
	stop chan struct{}
	done chan struct{}
}

// NewExporter creates an exporter listening on the given port with its own
// registry, so repeated runs in one process never collide.
func NewExporter(m *Metrics, port int, log *zap.Logger) *Exporter {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &Exporter{
		metrics: m,
		log:     log,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
		pagesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "crawler_pages_total",
			Help: "Total number of pages crawled.",
		}),
		bytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "crawler_bytes_total",
			Help: "Total number of bytes downloaded.",
		}),
		errorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "crawler_errors_total",
			Help: "Total number of crawl errors.",
		}),
		pagesPerSec: factory.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_pages_per_second",
			Help: "Current crawl rate in pages per second.",
		}),
		avgFetchSec: factory.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_avg_fetch_duration_seconds",
			Help: "Average fetch duration in seconds.",
		}),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start serves /metrics and launches the updater goroutine.
func (e *Exporter) Start() {
	go func() {
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	go e.run()
	e.log.Info("prometheus metrics available", zap.String("addr", e.server.Addr+"/metrics"))
}

func (e *Exporter) run() {
	defer close(e.done)
	ticker := time.NewTicker(exporterUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stop:
			e.update()
			return
		case <-ticker.C:
			e.update()
		}
	}
}

func (e *Exporter) update() {
	totals, elapsed := e.metrics.Snapshot()

	if d := totals.Pages - e.last.Pages; d > 0 {
		e.pagesTotal.Add(float64(d))
	}
	if d := totals.Bytes - e.last.Bytes; d > 0 {
		e.bytesTotal.Add(float64(d))
	}
	if d := totals.Errors - e.last.Errors; d > 0 {
		e.errorsTotal.Add(float64(d))
	}
	e.pagesPerSec.Set(float64(totals.Pages) / elapsed)
	if totals.Pages > 0 {
		e.avgFetchSec.Set(totals.FetchMsSum / float64(totals.Pages) / 1000.0)
	}
	e.last = totals
}

// Stop flushes a final update and shuts the server down.
func (e *Exporter) Stop() {
	close(e.stop)
	<-e.done
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	e.server.Shutdown(ctx)
}

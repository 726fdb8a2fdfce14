package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks operational counters for an export run.
type Metrics struct {
	// API request metrics
	RequestsTotal   atomic.Int64
	RequestsFailed  atomic.Int64
	RequestsRetried atomic.Int64
	BytesDownloaded atomic.Int64

	// Page metrics
	PagesListed  atomic.Int64
	PagesFetched atomic.Int64
	PagesSkipped atomic.Int64
	PagesFailed  atomic.Int64

	// Record metrics
	RecordsStored  atomic.Int64
	RecordsDropped atomic.Int64

	registry *prometheus.Registry
	server   *http.Server
	logger   *slog.Logger
}

// NewMetrics creates a Metrics instance with its own Prometheus registry.
func NewMetrics(logger *slog.Logger) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		logger:   logger.With("component", "metrics"),
	}

	counters := []struct {
		name  string
		help  string
		value *atomic.Int64
	}{
		{"wikiharvest_requests_total", "Total API requests made", &m.RequestsTotal},
		{"wikiharvest_requests_failed_total", "Total failed API requests", &m.RequestsFailed},
		{"wikiharvest_requests_retried_total", "Total retried API requests", &m.RequestsRetried},
		{"wikiharvest_bytes_downloaded_total", "Total response bytes downloaded", &m.BytesDownloaded},
		{"wikiharvest_pages_listed_total", "Total pages returned by enumeration", &m.PagesListed},
		{"wikiharvest_pages_fetched_total", "Total pages whose content was fetched", &m.PagesFetched},
		{"wikiharvest_pages_skipped_total", "Total pages skipped for language", &m.PagesSkipped},
		{"wikiharvest_pages_failed_total", "Total pages that failed to export", &m.PagesFailed},
		{"wikiharvest_records_stored_total", "Total records written to storage", &m.RecordsStored},
		{"wikiharvest_records_dropped_total", "Total records dropped by the pipeline", &m.RecordsDropped},
	}
	for _, c := range counters {
		value := c.value
		m.registry.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Name: c.name, Help: c.help},
			func() float64 { return float64(value.Load()) },
		))
	}
	return m
}

// Handler serves the metrics in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer binds the metrics HTTP server and serves it in the
// background. A bind failure is returned to the caller.
func (m *Metrics) StartServer(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	m.server = srv
	m.logger.Info("metrics server starting", "addr", ln.Addr().String(), "path", path)

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// Shutdown stops the metrics server if one was started.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}

// Snapshot returns all counters as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"requests_total":   m.RequestsTotal.Load(),
		"requests_failed":  m.RequestsFailed.Load(),
		"requests_retried": m.RequestsRetried.Load(),
		"bytes_downloaded": m.BytesDownloaded.Load(),
		"pages_listed":     m.PagesListed.Load(),
		"pages_fetched":    m.PagesFetched.Load(),
		"pages_skipped":    m.PagesSkipped.Load(),
		"pages_failed":     m.PagesFailed.Load(),
		"records_stored":   m.RecordsStored.Load(),
		"records_dropped":  m.RecordsDropped.Load(),
	}
}

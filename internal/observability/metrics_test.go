package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestMetricsHandlerExposesCounters(t *testing.T) {
	m := NewMetrics(testLogger)
	m.PagesFetched.Add(3)
	m.RecordsStored.Add(2)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	for _, want := range []string{
		"wikiharvest_pages_fetched_total 3",
		"wikiharvest_records_stored_total 2",
		"wikiharvest_pages_failed_total 0",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics(testLogger)
	m.PagesSkipped.Add(1)
	m.RequestsTotal.Add(5)

	snap := m.Snapshot()
	if snap["pages_skipped"] != 1 {
		t.Errorf("expected pages_skipped 1, got %d", snap["pages_skipped"])
	}
	if snap["requests_total"] != 5 {
		t.Errorf("expected requests_total 5, got %d", snap["requests_total"])
	}
}

func TestStartServerReportsBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	m := NewMetrics(testLogger)
	if err := m.StartServer(port, "/metrics"); err == nil {
		m.Shutdown(context.Background())
		t.Fatalf("expected bind error for busy port %d", port)
	}
}

func TestStartServerServesMetrics(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	m := NewMetrics(testLogger)
	m.PagesListed.Add(4)
	if err := m.StartServer(port, "/metrics"); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	for path, want := range map[string]string{
		"/health":  "ok",
		"/metrics": "wikiharvest_pages_listed_total 4",
	} {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d%s", port, path))
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if !strings.Contains(string(body), want) {
			t.Errorf("%s: missing %q in %q", path, want, body)
		}
	}
}

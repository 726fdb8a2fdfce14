// Package mediawiki talks to the MediaWiki Action API: it enumerates the
// articles of a wiki and fetches their rendered content.
package mediawiki

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/wikiharvest/internal/config"
	"github.com/IshaanNene/wikiharvest/internal/observability"
	"github.com/IshaanNene/wikiharvest/internal/types"
)

// Client is a sequential MediaWiki API client.
type Client struct {
	client  *http.Client
	apiURL  string
	source  config.SourceConfig
	cfg     config.FetcherConfig
	metrics *observability.Metrics
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client for the API configured in cfg.Source.
func NewClient(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if err := config.ValidateURL(cfg.Source.APIURL); err != nil {
		return nil, fmt.Errorf("api url: %w", err)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.Fetcher.TLSInsecure,
		},
		DisableCompression: true, // decompression (including brotli) is handled in do
	}

	if cfg.Fetcher.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.Fetcher.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	c := &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Fetcher.RequestTimeout,
		},
		apiURL: cfg.Source.APIURL,
		source: cfg.Source,
		cfg:    cfg.Fetcher,
		logger: logger.With("component", "mediawiki"),
		sleep:  sleepContext,
	}

	if cfg.Fetcher.TLSInsecure {
		c.logger.Warn("TLS certificate verification is disabled; use only against development hosts")
	}
	return c, nil
}

// SetMetrics attaches request counters to the client.
func (c *Client) SetMetrics(m *observability.Metrics) {
	c.metrics = m
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// getJSON issues a GET against the API and decodes the JSON body into v,
// retrying retryable failures up to the configured limit.
func (c *Client) getJSON(ctx context.Context, params url.Values, v any) error {
	params.Set("format", "json")
	params.Set("formatversion", "2")
	reqURL := c.apiURL + "?" + params.Encode()

	var body []byte
	var err error
	for attempt := 0; ; attempt++ {
		body, err = c.do(ctx, reqURL)
		if err == nil {
			break
		}

		var fetchErr *types.FetchError
		if !errors.As(err, &fetchErr) || !fetchErr.IsRetryable() || attempt >= c.cfg.MaxRetries {
			return err
		}

		delay := c.cfg.RetryDelay
		if fetchErr.RetryAfter > 0 {
			delay = fetchErr.RetryAfter
		}
		if c.metrics != nil {
			c.metrics.RequestsRetried.Add(1)
		}
		c.logger.Warn("request failed, retrying",
			"url", reqURL,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}

	if err := json.Unmarshal(body, v); err != nil {
		return &types.FetchError{URL: reqURL, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// do performs a single request and returns the decoded body bytes.
func (c *Client) do(ctx context.Context, reqURL string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &types.FetchError{URL: reqURL, Err: err}
	}
	httpReq.Header.Set("User-Agent", c.userAgent())
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")

	if c.metrics != nil {
		c.metrics.RequestsTotal.Add(1)
	}

	start := time.Now()
	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RequestsFailed.Add(1)
		}
		return nil, &types.FetchError{
			URL:       reqURL,
			Err:       fmt.Errorf("%w: %w", types.ErrNoResponse, err),
			Retryable: isRetryableError(err),
		}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusTooManyRequests {
		if c.metrics != nil {
			c.metrics.RequestsFailed.Add(1)
		}
		retryAfter := parseRetryAfter(httpResp.Header.Get("Retry-After"))
		return nil, &types.FetchError{
			URL:        reqURL,
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("HTTP 429: rate limited (retry after %s)", retryAfter),
			Retryable:  true,
			RetryAfter: retryAfter,
		}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		if c.metrics != nil {
			c.metrics.RequestsFailed.Add(1)
		}
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, &types.FetchError{
			URL:        reqURL,
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, strings.TrimSpace(string(snippet))),
			Retryable:  httpResp.StatusCode >= 500,
		}
	}

	reader, err := decompressReader(httpResp, httpResp.Body)
	if err != nil {
		return nil, &types.FetchError{URL: reqURL, Err: err}
	}

	// The limit applies to the decoded body; one extra byte detects overflow.
	if c.cfg.MaxBodySize > 0 {
		reader = io.LimitReader(reader, c.cfg.MaxBodySize+1)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &types.FetchError{URL: reqURL, Err: err, Retryable: true}
	}
	if c.cfg.MaxBodySize > 0 && int64(len(body)) > c.cfg.MaxBodySize {
		return nil, &types.FetchError{
			URL:        reqURL,
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("%w (max_body_size %d bytes)", types.ErrBodyTooLarge, c.cfg.MaxBodySize),
		}
	}
	if len(body) == 0 {
		return nil, &types.FetchError{URL: reqURL, StatusCode: httpResp.StatusCode, Err: types.ErrEmptyResponse}
	}

	if c.metrics != nil {
		c.metrics.BytesDownloaded.Add(int64(len(body)))
	}
	c.logger.Debug("request complete",
		"url", reqURL,
		"status", httpResp.StatusCode,
		"size", len(body),
		"duration", time.Since(start),
	)
	return body, nil
}

func (c *Client) userAgent() string {
	if c.cfg.UserAgent != "" {
		return c.cfg.UserAgent
	}
	return "wikiharvest/" + config.Version
}

// decompressReader wraps a reader with the appropriate decompressor.
// Handles gzip, deflate, and brotli (br) encodings.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

// isRetryableError checks if a network error warrants a retry.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return true
		}
	}
	return false
}

// parseRetryAfter parses the Retry-After header value.
// Supports both integer seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 5 * time.Second
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil {
		if secs > 120 {
			secs = 120
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		d := time.Until(t)
		if d < 0 {
			return time.Second
		}
		if d > 2*time.Minute {
			return 2 * time.Minute
		}
		return d
	}
	return 5 * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

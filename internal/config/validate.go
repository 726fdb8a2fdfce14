package config

import (
	"fmt"
	"net/url"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/xpath"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if err := ValidateURL(cfg.Source.APIURL); err != nil {
		return fmt.Errorf("source.api_url: %w", err)
	}
	if cfg.Source.Namespace < 0 {
		return fmt.Errorf("source.namespace must be >= 0, got %d", cfg.Source.Namespace)
	}
	if cfg.Source.BatchSize < 0 || cfg.Source.BatchSize > 5000 {
		return fmt.Errorf("source.batch_size must be 0-5000, got %d", cfg.Source.BatchSize)
	}

	if cfg.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRetries < 0 {
		return fmt.Errorf("fetcher.max_retries must be >= 0, got %d", cfg.Fetcher.MaxRetries)
	}
	if cfg.Fetcher.RetryDelay < 0 {
		return fmt.Errorf("fetcher.retry_delay must be >= 0")
	}
	if cfg.Fetcher.ProxyURL != "" {
		if err := ValidateURL(cfg.Fetcher.ProxyURL); err != nil {
			return fmt.Errorf("fetcher.proxy_url: %w", err)
		}
	}

	seen := make(map[string]bool, len(cfg.Normalizer.Rules))
	for _, rule := range cfg.Normalizer.Rules {
		if rule.Name == "" {
			return fmt.Errorf("normalizer rule with selector %q has no name", rule.Selector)
		}
		if seen[rule.Name] {
			return fmt.Errorf("normalizer rule %q defined twice", rule.Name)
		}
		seen[rule.Name] = true
		if err := ValidateRule(rule); err != nil {
			return err
		}
	}

	if cfg.Export.MaxFailures < 0 {
		return fmt.Errorf("export.max_failures must be >= 0, got %d", cfg.Export.MaxFailures)
	}
	if cfg.Export.MaxPages < 0 {
		return fmt.Errorf("export.max_pages must be >= 0, got %d", cfg.Export.MaxPages)
	}

	validStorageTypes := map[string]bool{
		"csv": true, "jsonl": true,
	}
	if !validStorageTypes[cfg.Storage.Type] {
		return fmt.Errorf("storage.type %q is not supported (valid: csv, jsonl)", cfg.Storage.Type)
	}
	if cfg.Storage.FilePrefix == "" {
		return fmt.Errorf("storage.file_prefix must not be empty")
	}
	if cfg.Storage.Mongo.Enabled {
		if cfg.Storage.Mongo.URI == "" || cfg.Storage.Mongo.Database == "" || cfg.Storage.Mongo.Collection == "" {
			return fmt.Errorf("storage.mongo requires uri, database and collection when enabled")
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateRule checks that a rule's selector compiles for its type.
func ValidateRule(rule ParseRule) error {
	if rule.Selector == "" {
		return fmt.Errorf("normalizer rule %q has an empty selector", rule.Name)
	}
	switch rule.Type {
	case "", "css":
		if _, err := cascadia.Compile(rule.Selector); err != nil {
			return fmt.Errorf("normalizer rule %q: invalid css selector: %w", rule.Name, err)
		}
	case "xpath":
		if _, err := xpath.Compile(rule.Selector); err != nil {
			return fmt.Errorf("normalizer rule %q: invalid xpath: %w", rule.Name, err)
		}
	default:
		return fmt.Errorf("normalizer rule %q: type must be 'css' or 'xpath', got %q", rule.Name, rule.Type)
	}
	return nil
}

// ValidateURL checks that a URL string is an absolute http(s) URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

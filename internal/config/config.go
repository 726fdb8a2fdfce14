package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for wikiharvest.
type Config struct {
	Source     SourceConfig     `mapstructure:"source"     yaml:"source"`
	Fetcher    FetcherConfig    `mapstructure:"fetcher"    yaml:"fetcher"`
	Normalizer NormalizerConfig `mapstructure:"normalizer" yaml:"normalizer"`
	Export     ExportConfig     `mapstructure:"export"     yaml:"export"`
	Storage    StorageConfig    `mapstructure:"storage"    yaml:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"    yaml:"metrics"`
}

// SourceConfig describes the wiki being exported.
type SourceConfig struct {
	APIURL           string   `mapstructure:"api_url"           yaml:"api_url"`
	Language         string   `mapstructure:"language"          yaml:"language"`
	Namespace        int      `mapstructure:"namespace"         yaml:"namespace"`
	BatchSize        int      `mapstructure:"batch_size"        yaml:"batch_size"` // 0 = "max"
	StartFrom        string   `mapstructure:"start_from"        yaml:"start_from"`
	CategoryPrefixes []string `mapstructure:"category_prefixes" yaml:"category_prefixes"`
}

// FetcherConfig controls the API client.
type FetcherConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"      yaml:"user_agent"`
	MaxBodySize    int64         `mapstructure:"max_body_size"   yaml:"max_body_size"`
	MaxRetries     int           `mapstructure:"max_retries"     yaml:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"     yaml:"retry_delay"`
	ProxyURL       string        `mapstructure:"proxy_url"       yaml:"proxy_url"`

	// TLSInsecure disables certificate verification. Development only.
	TLSInsecure bool `mapstructure:"tls_insecure" yaml:"tls_insecure"`
}

// NormalizerConfig controls HTML clean-up.
type NormalizerConfig struct {
	Rules []ParseRule `mapstructure:"rules" yaml:"rules"`
}

// ParseRule names a structural region of a rendered page.
type ParseRule struct {
	Name     string `mapstructure:"name"     yaml:"name"`
	Selector string `mapstructure:"selector" yaml:"selector"`
	Type     string `mapstructure:"type"     yaml:"type"` // css, xpath
}

// ExportConfig controls the per-page loop.
type ExportConfig struct {
	RetainHTML  bool `mapstructure:"retain_html"  yaml:"retain_html"`
	FailFast    bool `mapstructure:"fail_fast"    yaml:"fail_fast"`
	MaxFailures int  `mapstructure:"max_failures" yaml:"max_failures"` // 0 = unlimited
	MaxPages    int  `mapstructure:"max_pages"    yaml:"max_pages"`    // 0 = unlimited
	Checkpoint  bool `mapstructure:"checkpoint"   yaml:"checkpoint"`
}

// StorageConfig controls output/storage.
type StorageConfig struct {
	Type       string      `mapstructure:"type"        yaml:"type"`
	OutputPath string      `mapstructure:"output_path" yaml:"output_path"`
	FilePrefix string      `mapstructure:"file_prefix" yaml:"file_prefix"`
	Mongo      MongoConfig `mapstructure:"mongo"       yaml:"mongo"`
}

// MongoConfig controls the optional MongoDB sink.
type MongoConfig struct {
	Enabled    bool   `mapstructure:"enabled"    yaml:"enabled"`
	URI        string `mapstructure:"uri"        yaml:"uri"`
	Database   string `mapstructure:"database"   yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// Names of the built-in normalizer rules.
const (
	RuleSummary = "summary"
	RuleTOC     = "toc"
	RuleMap     = "map"
)

// DefaultRules returns the built-in structural rules.
func DefaultRules() []ParseRule {
	return []ParseRule{
		{Name: RuleSummary, Type: "css", Selector: ".article-summary"},
		{Name: RuleTOC, Type: "css", Selector: ".toc-box"},
		{Name: RuleMap, Type: "css", Selector: ".mw-kartographer-map"},
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			APIURL:           "https://www.kolzchut.org.il/w/he/api.php",
			Language:         "he",
			Namespace:        0,
			BatchSize:        0,
			CategoryPrefixes: []string{"קטגוריה:", "Category:"},
		},
		Fetcher: FetcherConfig{
			RequestTimeout: 30 * time.Second,
			UserAgent:      "wikiharvest/" + Version,
			MaxBodySize:    20 * 1024 * 1024, // 20MB
			MaxRetries:     2,
			RetryDelay:     2 * time.Second,
		},
		Normalizer: NormalizerConfig{
			Rules: DefaultRules(),
		},
		Export: ExportConfig{
			RetainHTML: false,
			FailFast:   false,
		},
		Storage: StorageConfig{
			Type:       "csv",
			OutputPath: "./output",
			FilePrefix: "wiki_pages",
			Mongo: MongoConfig{
				URI:        "mongodb://localhost:27017",
				Database:   "wikiharvest",
				Collection: "pages",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

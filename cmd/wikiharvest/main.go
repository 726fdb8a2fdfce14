package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/wikiharvest/internal/config"
	"github.com/IshaanNene/wikiharvest/internal/engine"
	"github.com/IshaanNene/wikiharvest/internal/mediawiki"
	"github.com/IshaanNene/wikiharvest/internal/normalizer"
	"github.com/IshaanNene/wikiharvest/internal/observability"
	"github.com/IshaanNene/wikiharvest/internal/pipeline"
	"github.com/IshaanNene/wikiharvest/internal/storage"
	"github.com/IshaanNene/wikiharvest/internal/types"
)

var (
	cfgFile    string
	verbose    bool
	apiURL     string
	outputPath string
	outputType string
	batchSize  int
	startFrom  string
	language   string
	retainHTML bool
	insecure   bool
	failFast   bool
	resume     bool
	maxPages   int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wikiharvest",
		Short: "wikiharvest exports MediaWiki articles to CSV",
		Long: `wikiharvest walks every article of a MediaWiki site through the Action API,
cleans the rendered markup down to a summary and plain text body, and writes
one row per article to a timestamped export file.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(normalizeCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// exportCmd creates the "export" subcommand.
func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every article of the wiki",
		Args:  cobra.NoArgs,
		RunE:  runExport,
	}

	cmd.Flags().StringVar(&apiURL, "api-url", "", "MediaWiki api.php endpoint")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output directory")
	cmd.Flags().StringVarP(&outputType, "format", "f", "", "output format: csv, jsonl")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "pages per listing request (0 = max)")
	cmd.Flags().StringVar(&startFrom, "from", "", "title to start the enumeration at")
	cmd.Flags().StringVar(&language, "language", "", "only export pages in this language")
	cmd.Flags().BoolVar(&retainHTML, "retain-html", false, "keep the cleaned HTML body in the output")
	cmd.Flags().BoolVar(&insecure, "insecure", false, "skip TLS certificate verification (development only)")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "abort the run on the first page failure")
	cmd.Flags().BoolVar(&resume, "resume", false, "resume from the last checkpoint")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "stop after exporting this many pages (0 = unlimited)")

	return cmd
}

// runExport executes the export command.
func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, closeLog, err := setupLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	client, err := mediawiki.NewClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer client.Close()

	norm, err := normalizer.New(cfg.Normalizer, logger)
	if err != nil {
		return fmt.Errorf("create normalizer: %w", err)
	}

	runStart := time.Now()
	store, err := storage.New(cfg.Storage, runStart, logger)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("storage close error", "error", err)
		}
	}()

	metrics := observability.NewMetrics(logger)
	client.SetMetrics(metrics)
	if cfg.Metrics.Enabled {
		if err := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metrics.Shutdown(ctx); err != nil {
				logger.Warn("metrics server shutdown", "error", err)
			}
		}()
	}

	eng := engine.New(cfg, logger)
	eng.SetSource(client)
	eng.SetNormalizer(norm)
	eng.SetPipeline(pipeline.NewDefault(cfg, eng.RunID(), logger))
	eng.SetStorage(store)
	eng.SetMetrics(metrics)

	start, err := resumeCursor(eng)
	if err != nil {
		return err
	}

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down...", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	stats, runErr := eng.Run(ctx, start)
	printSummary(cmd.OutOrStdout(), cfg, stats, metrics.Snapshot(), time.Since(runStart))
	if runErr != nil {
		return fmt.Errorf("export failed: %w", runErr)
	}
	return nil
}

func resumeCursor(eng *engine.Engine) (*types.Cursor, error) {
	if !resume {
		return nil, nil
	}
	cursor, err := eng.Resume()
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return cursor, nil
}

func printSummary(w io.Writer, cfg *config.Config, stats engine.Stats, snap map[string]int64, elapsed time.Duration) {
	fmt.Fprintf(w, "\nExport finished in %s (run %s)\n", elapsed.Round(time.Millisecond), stats.RunID)
	fmt.Fprintf(w, "   Pages:     %d listed, %d skipped (language), %d failed\n", stats.Listed, stats.Skipped, stats.Failed)
	fmt.Fprintf(w, "   Records:   %d exported, %d dropped\n", stats.Exported, stats.Dropped)
	fmt.Fprintf(w, "   Requests:  %d sent, %d failed, %d retried\n", snap["requests_total"], snap["requests_failed"], snap["requests_retried"])
	fmt.Fprintf(w, "   Data:      %d bytes downloaded\n", snap["bytes_downloaded"])
	fmt.Fprintf(w, "   Output:    %s\n", cfg.Storage.OutputPath)
	if len(stats.FailedPages) > 0 {
		fmt.Fprintf(w, "   Failed page IDs: %v\n", stats.FailedPages)
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wikiharvest %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func printConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "Source:\n")
	fmt.Fprintf(w, "  API URL:           %s\n", cfg.Source.APIURL)
	fmt.Fprintf(w, "  Language:          %s\n", cfg.Source.Language)
	fmt.Fprintf(w, "  Namespace:         %d\n", cfg.Source.Namespace)
	fmt.Fprintf(w, "  Batch Size:        %d\n", cfg.Source.BatchSize)
	fmt.Fprintf(w, "  Start From:        %s\n", cfg.Source.StartFrom)
	fmt.Fprintf(w, "\nFetcher:\n")
	fmt.Fprintf(w, "  Request Timeout:   %s\n", cfg.Fetcher.RequestTimeout)
	fmt.Fprintf(w, "  Max Retries:       %d\n", cfg.Fetcher.MaxRetries)
	fmt.Fprintf(w, "  Retry Delay:       %s\n", cfg.Fetcher.RetryDelay)
	fmt.Fprintf(w, "  TLS Insecure:      %v\n", cfg.Fetcher.TLSInsecure)
	fmt.Fprintf(w, "\nNormalizer rules:\n")
	for _, r := range cfg.Normalizer.Rules {
		fmt.Fprintf(w, "  %-18s %s (%s)\n", r.Name+":", r.Selector, r.Type)
	}
	fmt.Fprintf(w, "\nExport:\n")
	fmt.Fprintf(w, "  Retain HTML:       %v\n", cfg.Export.RetainHTML)
	fmt.Fprintf(w, "  Fail Fast:         %v\n", cfg.Export.FailFast)
	fmt.Fprintf(w, "  Max Failures:      %d\n", cfg.Export.MaxFailures)
	fmt.Fprintf(w, "  Checkpoint:        %v\n", cfg.Export.Checkpoint)
	fmt.Fprintf(w, "\nStorage:\n")
	fmt.Fprintf(w, "  Type:              %s\n", cfg.Storage.Type)
	fmt.Fprintf(w, "  Output Path:       %s\n", cfg.Storage.OutputPath)
	fmt.Fprintf(w, "  File Prefix:       %s\n", cfg.Storage.FilePrefix)
	fmt.Fprintf(w, "  MongoDB:           %v\n", cfg.Storage.Mongo.Enabled)
	fmt.Fprintf(w, "\nMetrics:\n")
	fmt.Fprintf(w, "  Enabled:           %v\n", cfg.Metrics.Enabled)
	fmt.Fprintf(w, "  Port:              %d\n", cfg.Metrics.Port)
}

// loadConfig reads the configuration and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cmd, cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if flags.Changed("api-url") {
		cfg.Source.APIURL = apiURL
	}
	if flags.Changed("output") {
		cfg.Storage.OutputPath = outputPath
	}
	if flags.Changed("format") {
		cfg.Storage.Type = strings.ToLower(outputType)
	}
	if flags.Changed("batch-size") {
		cfg.Source.BatchSize = batchSize
	}
	if flags.Changed("from") {
		cfg.Source.StartFrom = startFrom
	}
	if flags.Changed("language") {
		cfg.Source.Language = language
	}
	if flags.Changed("retain-html") {
		cfg.Export.RetainHTML = retainHTML
	}
	if flags.Changed("insecure") {
		cfg.Fetcher.TLSInsecure = insecure
	}
	if flags.Changed("fail-fast") {
		cfg.Export.FailFast = failFast
	}
	if flags.Changed("max-pages") {
		cfg.Export.MaxPages = maxPages
	}
	if resume {
		cfg.Export.Checkpoint = true
	}
}

// setupLogger creates the structured logger described by cfg. The returned
// func closes the log file, if one was opened.
func setupLogger(cfg config.LoggingConfig) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	out := io.Writer(os.Stderr)
	closeFn := func() {}
	switch cfg.Output {
	case "", "stderr":
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closeFn = func() { f.Close() }
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler), closeFn, nil
}

// Package engine drives an export run: it folds the listing sequence into
// stored records while tracking run statistics and the failure policy.
package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/IshaanNene/wikiharvest/internal/config"
	"github.com/IshaanNene/wikiharvest/internal/metadata"
	"github.com/IshaanNene/wikiharvest/internal/normalizer"
	"github.com/IshaanNene/wikiharvest/internal/observability"
	"github.com/IshaanNene/wikiharvest/internal/types"
)

// Source enumerates and fetches wiki pages.
type Source interface {
	Listings(ctx context.Context, start *types.Cursor) iter.Seq2[types.ListingBatch, error]
	FetchParsedPage(ctx context.Context, pageID int64) (*types.ParsedPage, error)
}

// Normalizer converts rendered page markup.
type Normalizer interface {
	Normalize(rawHTML string) (normalizer.Result, error)
}

// Pipeline is the record processing chain.
type Pipeline interface {
	Process(rec *types.Record) (*types.Record, error)
}

// Storage persists records.
type Storage interface {
	Store(records []*types.Record) error
}

// Stats is the running state of an export. It is threaded through the fold
// by value; the engine never shares it.
type Stats struct {
	RunID     string    `json:"run_id"`
	StartTime time.Time `json:"start_time"`

	Batches  int64 `json:"batches"`
	Listed   int64 `json:"listed"`
	Skipped  int64 `json:"skipped"`
	Exported int64 `json:"exported"`
	Dropped  int64 `json:"dropped"`
	Failed   int64 `json:"failed"`

	// FailedPages holds the IDs of pages that could not be exported.
	FailedPages []int64 `json:"failed_pages,omitempty"`

	// Cursor points at the next batch, nil once the enumeration is done.
	Cursor *types.Cursor `json:"cursor,omitempty"`
}

// Snapshot returns the counters for logging.
func (s Stats) Snapshot() map[string]any {
	return map[string]any{
		"run_id":   s.RunID,
		"batches":  s.Batches,
		"listed":   s.Listed,
		"skipped":  s.Skipped,
		"exported": s.Exported,
		"dropped":  s.Dropped,
		"failed":   s.Failed,
		"elapsed":  time.Since(s.StartTime).Round(time.Millisecond).String(),
	}
}

// errLimitReached stops the fold once max_pages records were exported.
var errLimitReached = errors.New("page limit reached")

// Engine is the export orchestrator.
type Engine struct {
	cfg        *config.Config
	logger     *slog.Logger
	runID      string
	source     Source
	normalizer Normalizer
	pipeline   Pipeline
	storage    Storage
	metrics    *observability.Metrics
	checkpoint *CheckpointManager
	resumed    *Checkpoint
	now        func() time.Time
}

// New creates a new Engine with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) *Engine {
	runID := uuid.NewString()
	e := &Engine{
		cfg:    cfg,
		runID:  runID,
		logger: logger.With("component", "engine", "run_id", runID),
		now:    time.Now,
	}
	if cfg.Export.Checkpoint {
		e.checkpoint = NewCheckpointManager(cfg.Storage.OutputPath)
	}
	return e
}

// RunID returns the identifier of this run.
func (e *Engine) RunID() string { return e.runID }

// SetSource sets the page source.
func (e *Engine) SetSource(s Source) { e.source = s }

// SetNormalizer sets the content normalizer.
func (e *Engine) SetNormalizer(n Normalizer) { e.normalizer = n }

// SetPipeline sets the record pipeline.
func (e *Engine) SetPipeline(p Pipeline) { e.pipeline = p }

// SetStorage sets the storage backend. The caller closes it.
func (e *Engine) SetStorage(s Storage) { e.storage = s }

// SetMetrics enables metric collection.
func (e *Engine) SetMetrics(m *observability.Metrics) { e.metrics = m }

// Resume loads the saved checkpoint, if any, and returns the cursor to start
// from. Counters of the interrupted run carry over into this one.
func (e *Engine) Resume() (*types.Cursor, error) {
	cm := e.checkpoint
	if cm == nil {
		cm = NewCheckpointManager(e.cfg.Storage.OutputPath)
	}
	cp, err := cm.Load()
	if err != nil {
		return nil, err
	}
	if cp == nil {
		e.logger.Info("no checkpoint found, starting from the beginning")
		return nil, nil
	}
	e.resumed = cp
	e.logger.Info("resuming from checkpoint",
		"previous_run", cp.Stats.RunID,
		"saved_at", cp.Timestamp,
		"exported", cp.Stats.Exported,
	)
	return cp.Stats.Cursor.Clone(), nil
}

// Run exports every listed page starting at start. It returns the final
// statistics together with the error that ended the run, if any.
func (e *Engine) Run(ctx context.Context, start *types.Cursor) (Stats, error) {
	if e.source == nil || e.normalizer == nil || e.storage == nil {
		return Stats{}, errors.New("engine: source, normalizer and storage are required")
	}

	stats := Stats{RunID: e.runID, StartTime: e.now()}
	if e.resumed != nil {
		stats = e.resumed.Stats
		stats.RunID = e.runID
		stats.StartTime = e.now()
		stats.FailedPages = append([]int64(nil), stats.FailedPages...)
	}
	if start.IsZero() && e.cfg.Source.StartFrom != "" {
		start = &types.Cursor{From: e.cfg.Source.StartFrom}
	}
	stats.Cursor = start.Clone()

	e.logger.Info("export starting",
		"api", e.cfg.Source.APIURL,
		"language", e.cfg.Source.Language,
		"from", cursorLabel(start),
	)

	var err error
	for batch, listErr := range e.source.Listings(ctx, start) {
		if listErr != nil {
			err = fmt.Errorf("listing pages: %w", listErr)
			break
		}
		stats, err = e.foldBatch(ctx, stats, batch)
		if err != nil {
			break
		}
		stats.Cursor = batch.Next
		e.saveCheckpoint(stats)
	}

	switch {
	case errors.Is(err, errLimitReached):
		e.logger.Info("page limit reached", "max_pages", e.cfg.Export.MaxPages)
		err = nil
	case err == nil && ctx.Err() != nil:
		err = ctx.Err()
	}

	if err != nil {
		e.logger.Error("export aborted", "error", err, "stats", stats.Snapshot())
		return stats, err
	}

	stats.Cursor = nil
	e.cleanCheckpoint()
	e.logger.Info("export finished", "stats", stats.Snapshot())
	return stats, nil
}

// foldBatch processes one listing batch and returns the updated statistics.
func (e *Engine) foldBatch(ctx context.Context, stats Stats, batch types.ListingBatch) (Stats, error) {
	stats.Batches++
	for _, listing := range batch.Listings {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		stats.Listed++
		e.count(func(m *observability.Metrics) { m.PagesListed.Add(1) })

		if !e.wantLanguage(listing.Language) {
			stats.Skipped++
			e.count(func(m *observability.Metrics) { m.PagesSkipped.Add(1) })
			e.logger.Debug("page skipped",
				"page_id", listing.PageID,
				"title", listing.Title,
				"language", listing.Language,
			)
			continue
		}

		rec, err := e.exportPage(ctx, listing)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			var storageErr *types.StorageError
			if errors.As(err, &storageErr) {
				return stats, err
			}

			stats.Failed++
			stats.FailedPages = append(stats.FailedPages, listing.PageID)
			e.count(func(m *observability.Metrics) { m.PagesFailed.Add(1) })
			pageErr := &types.PageError{PageID: listing.PageID, Title: listing.Title, Err: err}
			e.logger.Warn("page export failed", "page_id", listing.PageID, "title", listing.Title, "error", err)

			if e.cfg.Export.FailFast {
				return stats, pageErr
			}
			if limit := e.cfg.Export.MaxFailures; limit > 0 && stats.Failed >= int64(limit) {
				return stats, fmt.Errorf("%w (%d): %w", types.ErrMaxFailures, stats.Failed, pageErr)
			}
			continue
		}
		if rec == nil {
			stats.Dropped++
			e.count(func(m *observability.Metrics) { m.RecordsDropped.Add(1) })
			continue
		}

		stats.Exported++
		e.count(func(m *observability.Metrics) { m.RecordsStored.Add(1) })
		e.logger.Debug("page exported", "page_id", rec.PageID, "title", rec.Title)

		if limit := e.cfg.Export.MaxPages; limit > 0 && stats.Exported >= int64(limit) {
			return stats, errLimitReached
		}
	}

	e.logger.Info("batch processed",
		"batch", stats.Batches,
		"pages", len(batch.Listings),
		"exported", stats.Exported,
		"failed", stats.Failed,
	)
	return stats, nil
}

// exportPage fetches, normalizes, maps and stores one page. A nil record
// with a nil error means the pipeline dropped it.
func (e *Engine) exportPage(ctx context.Context, listing types.Listing) (*types.Record, error) {
	page, err := e.source.FetchParsedPage(ctx, listing.PageID)
	if err != nil {
		return nil, err
	}

	content, err := e.normalizer.Normalize(page.HTML)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	labels := metadata.MapLabels(page.Properties)

	rec := types.NewRecord(listing)
	rec.Timestamp = e.now()
	rec.RunID = e.runID
	rec.ArticleType = labels.ArticleType
	rec.ContentArea = labels.ContentArea
	rec.Summary = content.Summary
	rec.Body = content.Body
	rec.BodyHTML = content.BodyHTML
	rec.Categories = page.Categories

	if e.pipeline != nil {
		rec, err = e.pipeline.Process(rec)
		if err != nil || rec == nil {
			return nil, err
		}
	}

	if err := e.storage.Store([]*types.Record{rec}); err != nil {
		var storageErr *types.StorageError
		if errors.As(err, &storageErr) {
			return nil, err
		}
		return nil, &types.StorageError{Backend: "output", Err: err}
	}
	return rec, nil
}

func (e *Engine) wantLanguage(lang string) bool {
	target := e.cfg.Source.Language
	return target == "" || strings.EqualFold(lang, target)
}

func (e *Engine) count(fn func(m *observability.Metrics)) {
	if e.metrics != nil {
		fn(e.metrics)
	}
}

func (e *Engine) saveCheckpoint(stats Stats) {
	if e.checkpoint == nil || stats.Cursor == nil {
		return
	}
	if err := e.checkpoint.Save(stats, e.now()); err != nil {
		e.logger.Error("checkpoint save failed", "error", err)
		return
	}
	e.logger.Debug("checkpoint saved", "batch", stats.Batches)
}

func (e *Engine) cleanCheckpoint() {
	if e.checkpoint == nil {
		return
	}
	if err := e.checkpoint.Clean(); err != nil {
		e.logger.Warn("checkpoint cleanup failed", "error", err)
	}
}

func cursorLabel(c *types.Cursor) string {
	switch {
	case c.IsZero():
		return "start"
	case len(c.Continue) > 0:
		return "checkpoint"
	default:
		return c.From
	}
}

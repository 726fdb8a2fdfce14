// Package pipeline applies an ordered chain of middleware to each record
// before it is stored.
package pipeline

import (
	"log/slog"
	"strings"

	"github.com/IshaanNene/wikiharvest/internal/types"
)

// Middleware processes a record and returns the (possibly modified) record.
// Return nil to drop the record from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms a record. Return nil to drop it.
	Process(rec *types.Record) (*types.Record, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the record through all middleware in order.
func (p *Pipeline) Process(rec *types.Record) (*types.Record, error) {
	current := rec

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage:  mw.Name(),
				Record: current,
				Err:    err,
			}
		}
		if result == nil {
			p.logger.Debug("record dropped", "stage", mw.Name(), "page_id", rec.PageID)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// Names returns the middleware names in chain order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.middlewares))
	for i, mw := range p.middlewares {
		names[i] = mw.Name()
	}
	return names
}

// --- Built-in Middleware ---

// TrimMiddleware trims whitespace from the text fields of a record.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(rec *types.Record) (*types.Record, error) {
	rec.Title = strings.TrimSpace(rec.Title)
	rec.URL = strings.TrimSpace(rec.URL)
	rec.ArticleType = strings.TrimSpace(rec.ArticleType)
	rec.ContentArea = strings.TrimSpace(rec.ContentArea)
	rec.Summary = strings.TrimSpace(rec.Summary)
	rec.Body = strings.TrimSpace(rec.Body)
	rec.BodyHTML = strings.TrimSpace(rec.BodyHTML)
	return rec, nil
}

// RequiredFieldsMiddleware drops records without a page ID or title.
type RequiredFieldsMiddleware struct{}

func (m *RequiredFieldsMiddleware) Name() string { return "required_fields" }

func (m *RequiredFieldsMiddleware) Process(rec *types.Record) (*types.Record, error) {
	if rec.PageID <= 0 || rec.Title == "" {
		return nil, nil
	}
	return rec, nil
}

// DefaultLabelsMiddleware fills empty label fields.
type DefaultLabelsMiddleware struct {
	ArticleType string
	ContentArea string
}

func (m *DefaultLabelsMiddleware) Name() string { return "default_labels" }

func (m *DefaultLabelsMiddleware) Process(rec *types.Record) (*types.Record, error) {
	if rec.ArticleType == "" {
		rec.ArticleType = m.ArticleType
	}
	if rec.ContentArea == "" {
		rec.ContentArea = m.ContentArea
	}
	return rec, nil
}

package pipeline

import (
	"log/slog"
	"strings"

	"github.com/IshaanNene/wikiharvest/internal/config"
	"github.com/IshaanNene/wikiharvest/internal/metadata"
	"github.com/IshaanNene/wikiharvest/internal/types"
)

// HTMLRetentionMiddleware clears BodyHTML unless retention is enabled.
type HTMLRetentionMiddleware struct {
	Retain bool
}

func (m *HTMLRetentionMiddleware) Name() string { return "html_retention" }

func (m *HTMLRetentionMiddleware) Process(rec *types.Record) (*types.Record, error) {
	if !m.Retain {
		rec.BodyHTML = ""
	}
	return rec, nil
}

// CategoryMiddleware drops blank and repeated category labels, keeping the
// first-seen order.
type CategoryMiddleware struct{}

func (m *CategoryMiddleware) Name() string { return "categories" }

func (m *CategoryMiddleware) Process(rec *types.Record) (*types.Record, error) {
	if len(rec.Categories) == 0 {
		return rec, nil
	}
	seen := make(map[string]struct{}, len(rec.Categories))
	out := make([]string, 0, len(rec.Categories))
	for _, c := range rec.Categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	rec.Categories = out
	return rec, nil
}

// RunTagMiddleware stamps records with the run ID.
type RunTagMiddleware struct {
	RunID string
}

func (m *RunTagMiddleware) Name() string { return "run_tag" }

func (m *RunTagMiddleware) Process(rec *types.Record) (*types.Record, error) {
	rec.RunID = m.RunID
	return rec, nil
}

// NewDefault builds the standard export chain.
func NewDefault(cfg *config.Config, runID string, logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(&TrimMiddleware{})
	p.Use(&RequiredFieldsMiddleware{})
	p.Use(&DefaultLabelsMiddleware{
		ArticleType: metadata.UnknownArticleType,
		ContentArea: metadata.UnknownContentArea,
	})
	p.Use(&CategoryMiddleware{})
	p.Use(&HTMLRetentionMiddleware{Retain: cfg.Export.RetainHTML})
	if runID != "" {
		p.Use(&RunTagMiddleware{RunID: runID})
	}
	return p
}

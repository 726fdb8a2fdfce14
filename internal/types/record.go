package types

import (
	"strconv"
	"strings"
	"time"
)

// CategorySeparator joins category labels inside a single output field.
const CategorySeparator = "\n"

// RecordHeader is the fixed column order of tabular exports.
var RecordHeader = []string{
	"id", "title", "url", "articleType", "contentArea",
	"summary", "body", "bodyHtml", "categories",
}

// Record is one exported article.
type Record struct {
	PageID      int64
	Title       string
	URL         string
	ArticleType string
	ContentArea string
	Summary     string
	Body        string

	// BodyHTML is empty unless HTML retention is enabled.
	BodyHTML string

	Categories []string

	// RunID identifies the export run that produced this record.
	RunID string

	// Timestamp is when this record was created.
	Timestamp time.Time
}

// NewRecord creates a Record for a listed page.
func NewRecord(l Listing) *Record {
	return &Record{
		PageID:    l.PageID,
		Title:     l.Title,
		URL:       l.FullURL,
		Timestamp: time.Now(),
	}
}

// Row returns the record's fields in RecordHeader order.
func (r *Record) Row() []string {
	return []string{
		strconv.FormatInt(r.PageID, 10),
		r.Title,
		r.URL,
		r.ArticleType,
		r.ContentArea,
		r.Summary,
		r.Body,
		r.BodyHTML,
		strings.Join(r.Categories, CategorySeparator),
	}
}

// ToMap returns the record keyed by RecordHeader names, suitable for
// document stores.
func (r *Record) ToMap() map[string]any {
	categories := r.Categories
	if categories == nil {
		categories = []string{}
	}
	m := map[string]any{
		"id":          r.PageID,
		"title":       r.Title,
		"url":         r.URL,
		"articleType": r.ArticleType,
		"contentArea": r.ContentArea,
		"summary":     r.Summary,
		"body":        r.Body,
		"categories":  categories,
		"_timestamp":  r.Timestamp,
	}
	if r.BodyHTML != "" {
		m["bodyHtml"] = r.BodyHTML
	}
	if r.RunID != "" {
		m["_run"] = r.RunID
	}
	return m
}

// Clone creates a deep copy of the record.
func (r *Record) Clone() *Record {
	clone := *r
	clone.Categories = append([]string(nil), r.Categories...)
	return &clone
}

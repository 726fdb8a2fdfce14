package types

import (
	"errors"
	"reflect"
	"testing"
)

func TestRecordRow(t *testing.T) {
	rec := NewRecord(Listing{PageID: 12, Title: "T", FullURL: "https://w/T"})
	rec.ArticleType = "זכות"
	rec.ContentArea = "unknown"
	rec.Categories = []string{"a", "b"}

	row := rec.Row()
	if len(row) != len(RecordHeader) {
		t.Fatalf("row has %d fields, header has %d", len(row), len(RecordHeader))
	}
	want := []string{"12", "T", "https://w/T", "זכות", "unknown", "", "", "", "a\nb"}
	if !reflect.DeepEqual(row, want) {
		t.Errorf("got %q, want %q", row, want)
	}
}

func TestRecordToMap(t *testing.T) {
	rec := &Record{PageID: 1, Title: "T"}
	m := rec.ToMap()
	if _, ok := m["bodyHtml"]; ok {
		t.Error("empty bodyHtml should be omitted")
	}
	if _, ok := m["_run"]; ok {
		t.Error("empty run id should be omitted")
	}
	if cats, ok := m["categories"].([]string); !ok || cats == nil {
		t.Errorf("categories should be an empty list, got %#v", m["categories"])
	}

	rec.RunID = "r"
	rec.BodyHTML = "<p>x</p>"
	m = rec.ToMap()
	if m["_run"] != "r" || m["bodyHtml"] != "<p>x</p>" {
		t.Errorf("unexpected map %v", m)
	}
}

func TestRecordClone(t *testing.T) {
	rec := &Record{PageID: 1, Categories: []string{"a"}}
	clone := rec.Clone()
	clone.Categories[0] = "b"
	if rec.Categories[0] != "a" {
		t.Error("clone must not share categories")
	}
}

func TestCursor(t *testing.T) {
	var nilCursor *Cursor
	if !nilCursor.IsZero() || nilCursor.Clone() != nil {
		t.Error("nil cursor should be zero and clone to nil")
	}
	if (&Cursor{From: "X"}).IsZero() {
		t.Error("cursor with start title is not zero")
	}

	c := &Cursor{Continue: map[string]string{"gapcontinue": "B"}}
	clone := c.Clone()
	clone.Continue["gapcontinue"] = "C"
	if c.Continue["gapcontinue"] != "B" {
		t.Error("clone must not share the continue map")
	}
}

func TestErrorUnwrap(t *testing.T) {
	fetchErr := &FetchError{URL: "u", StatusCode: 503, Err: ErrEmptyResponse, Retryable: true}
	pageErr := &PageError{PageID: 3, Title: "T", Err: fetchErr}

	if !errors.Is(pageErr, ErrEmptyResponse) {
		t.Error("PageError should unwrap to the sentinel")
	}
	var fe *FetchError
	if !errors.As(pageErr, &fe) || !fe.IsRetryable() {
		t.Error("PageError should unwrap to a retryable FetchError")
	}
	if got := (&APIError{Code: "c", Info: "i"}).Error(); got != "mediawiki api error c: i" {
		t.Errorf("unexpected api error text %q", got)
	}
}

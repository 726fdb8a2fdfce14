package storage

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/IshaanNene/wikiharvest/internal/config"
	"github.com/IshaanNene/wikiharvest/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

var runStart = time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

func sampleRecord() *types.Record {
	return &types.Record{
		PageID:      7,
		Title:       `Rights, "quoted"`,
		URL:         "https://www.kolzchut.org.il/he/x",
		ArticleType: "זכות",
		ContentArea: "unknown",
		Summary:     "line one\nline two",
		Body:        "Body, with comma",
		Categories:  []string{"תעסוקה", "אבטלה"},
		RunID:       "run-1",
		Timestamp:   runStart,
	}
}

func TestFileName(t *testing.T) {
	if got := FileName("wiki_pages", runStart, "csv"); got != "wiki_pages_20240305-140709.csv" {
		t.Errorf("unexpected file name %q", got)
	}
	if got := FileName("", runStart, "jsonl"); got != "export_20240305-140709.jsonl" {
		t.Errorf("unexpected file name %q", got)
	}
}

func TestCSVStorage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage("csv", dir, "wiki_pages", runStart, testLogger)
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}

	if err := s.Store([]*types.Record{sampleRecord()}); err != nil {
		t.Fatalf("store: %v", err)
	}

	path := filepath.Join(dir, "wiki_pages_20240305-140709.csv")

	// Rows must be on disk before Close.
	rows := readCSV(t, path)
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row before close, got %d", len(rows))
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	rows = readCSV(t, path)
	if !reflect.DeepEqual(rows[0], types.RecordHeader) {
		t.Errorf("unexpected header %v", rows[0])
	}

	want := []string{
		"7", `Rights, "quoted"`, "https://www.kolzchut.org.il/he/x", "זכות", "unknown",
		"line one\nline two", "Body, with comma", "", "תעסוקה\nאבטלה",
	}
	if !reflect.DeepEqual(rows[1], want) {
		t.Errorf("row mismatch:\n got %q\nwant %q", rows[1], want)
	}
}

func TestCSVStorageEmptyRun(t *testing.T) {
	dir := t.TempDir()
	s, err := NewCSVStorage(filepath.Join(dir, "out", "empty.csv"), testLogger)
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close should be a no-op: %v", err)
	}

	rows := readCSV(t, s.Path())
	if len(rows) != 1 {
		t.Fatalf("expected only the header, got %d rows", len(rows))
	}
}

func TestJSONLStorage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage("jsonl", dir, "wiki_pages", runStart, testLogger)
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}

	rec := sampleRecord()
	rec.BodyHTML = "<p>Body</p>"
	if err := s.Store([]*types.Record{rec, sampleRecord()}); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "wiki_pages_20240305-140709.jsonl"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var docs []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if len(docs) == 0 && !strings.Contains(scanner.Text(), `"bodyHtml":"<p>Body</p>"`) {
			t.Errorf("html must be written unescaped, got %s", scanner.Text())
		}
		var doc map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &doc); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		docs = append(docs, doc)
	}

	if len(docs) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(docs))
	}
	if docs[0]["bodyHtml"] != "<p>Body</p>" {
		t.Errorf("expected retained html, got %v", docs[0]["bodyHtml"])
	}
	if _, ok := docs[1]["bodyHtml"]; ok {
		t.Error("bodyHtml should be omitted when empty")
	}
	if docs[0]["_run"] != "run-1" {
		t.Errorf("expected run id, got %v", docs[0]["_run"])
	}
}

func TestNewFileStorageUnsupported(t *testing.T) {
	if _, err := NewFileStorage("parquet", t.TempDir(), "x", runStart, testLogger); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}

type memoryStorage struct {
	name    string
	records []*types.Record
	failOn  bool
	closed  bool
}

func (m *memoryStorage) Name() string { return m.name }

func (m *memoryStorage) Store(records []*types.Record) error {
	if m.failOn {
		return errors.New("unavailable")
	}
	m.records = append(m.records, records...)
	return nil
}

func (m *memoryStorage) Close() error {
	m.closed = true
	return nil
}

func TestMultiStorage(t *testing.T) {
	good := &memoryStorage{name: "good"}
	bad := &memoryStorage{name: "bad", failOn: true}
	multi := NewMultiStorage([]Storage{bad, good}, testLogger)

	err := multi.Store([]*types.Record{sampleRecord()})
	var se *types.StorageError
	if !errors.As(err, &se) || se.Backend != "bad" {
		t.Fatalf("expected StorageError from bad backend, got %v", err)
	}
	if len(good.records) != 1 {
		t.Error("healthy backend should still receive records")
	}

	if err := multi.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !good.closed || !bad.closed {
		t.Error("all backends should be closed")
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.DefaultConfig().Storage
	cfg.OutputPath = t.TempDir()

	s, err := New(cfg, runStart, testLogger)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Close()
	if s.Name() != "csv" {
		t.Errorf("expected csv backend, got %s", s.Name())
	}
}

func TestMongoStorageInvalidURI(t *testing.T) {
	_, err := NewMongoStorage("not-a-mongo-uri", "db", "pages", testLogger)
	if err == nil {
		t.Fatal("expected error for invalid uri")
	}
	if !strings.Contains(err.Error(), "mongodb") {
		t.Errorf("error should name the backend: %v", err)
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return rows
}

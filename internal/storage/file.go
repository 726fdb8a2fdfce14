package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/IshaanNene/wikiharvest/internal/types"
)

// --- CSV Storage ---

// CSVStorage writes records as CSV rows under a fixed header. Rows are
// flushed after every Store so an interrupted run keeps what it wrote.
type CSVStorage struct {
	path   string
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewCSVStorage creates the file and writes the header row.
func NewCSVStorage(outputPath string, logger *slog.Logger) (*CSVStorage, error) {
	f, err := createFile(outputPath)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)
	if err := w.Write(types.RecordHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write CSV header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("write CSV header: %w", err)
	}

	return &CSVStorage{
		path:   outputPath,
		file:   f,
		writer: w,
		logger: logger.With("component", "csv_storage"),
	}, nil
}

func (s *CSVStorage) Name() string { return "csv" }

// Path returns the output file path.
func (s *CSVStorage) Path() string { return s.path }

func (s *CSVStorage) Store(records []*types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if err := s.writer.Write(rec.Row()); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
		s.count++
	}

	s.writer.Flush()
	return s.writer.Error()
}

func (s *CSVStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("CSV written", "path", s.path, "records", s.count)
	if s.file == nil {
		return nil
	}
	s.writer.Flush()
	err := s.writer.Error()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	s.file = nil
	return err
}

// --- JSONL Storage ---

// JSONLStorage writes records as newline-delimited JSON (one object per line).
type JSONLStorage struct {
	path   string
	file   *os.File
	enc    *json.Encoder
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewJSONLStorage creates a new JSONL file storage (streaming writes).
func NewJSONLStorage(outputPath string, logger *slog.Logger) (*JSONLStorage, error) {
	f, err := createFile(outputPath)
	if err != nil {
		return nil, err
	}

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)

	return &JSONLStorage{
		path:   outputPath,
		file:   f,
		enc:    enc,
		logger: logger.With("component", "jsonl_storage"),
	}, nil
}

func (s *JSONLStorage) Name() string { return "jsonl" }

// Path returns the output file path.
func (s *JSONLStorage) Path() string { return s.path }

func (s *JSONLStorage) Store(records []*types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if err := s.enc.Encode(rec.ToMap()); err != nil {
			return fmt.Errorf("encode JSONL: %w", err)
		}
		s.count++
	}
	return nil
}

func (s *JSONLStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("JSONL written", "path", s.path, "records", s.count)
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func createFile(outputPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return f, nil
}

// NewFileStorage creates the file-based storage for storageType, named after
// prefix and the run start time.
func NewFileStorage(storageType, outputDir, prefix string, runStart time.Time, logger *slog.Logger) (Storage, error) {
	switch storageType {
	case "csv", "":
		return NewCSVStorage(filepath.Join(outputDir, FileName(prefix, runStart, "csv")), logger)
	case "jsonl":
		return NewJSONLStorage(filepath.Join(outputDir, FileName(prefix, runStart, "jsonl")), logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

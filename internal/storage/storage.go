// Package storage writes exported records to files and databases.
package storage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/IshaanNene/wikiharvest/internal/config"
	"github.com/IshaanNene/wikiharvest/internal/types"
)

// Storage is the interface for all storage backends.
type Storage interface {
	// Store persists a batch of records.
	Store(records []*types.Record) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// TimestampLayout formats the run timestamp embedded in output file names.
const TimestampLayout = "20060102-150405"

// FileName returns "<prefix>_<timestamp>.<ext>".
func FileName(prefix string, ts time.Time, ext string) string {
	if prefix == "" {
		prefix = "export"
	}
	return fmt.Sprintf("%s_%s.%s", prefix, ts.Format(TimestampLayout), ext)
}

// New builds the storage configured in cfg: the file backend, fanned out to
// MongoDB when that sink is enabled.
func New(cfg config.StorageConfig, runStart time.Time, logger *slog.Logger) (Storage, error) {
	file, err := NewFileStorage(cfg.Type, cfg.OutputPath, cfg.FilePrefix, runStart, logger)
	if err != nil {
		return nil, err
	}
	if !cfg.Mongo.Enabled {
		return file, nil
	}

	mongo, err := NewMongoStorage(cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection, logger)
	if err != nil {
		_ = file.Close()
		return nil, &types.StorageError{Backend: "mongodb", Err: err}
	}
	return NewMultiStorage([]Storage{file, mongo}, logger), nil
}

package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CheckpointFile is the checkpoint file name inside the output directory.
const CheckpointFile = ".wikiharvest_checkpoint.json"

// CheckpointManager saves and loads export progress for resume.
type CheckpointManager struct {
	dir string
}

// Checkpoint is the serialized export state.
type Checkpoint struct {
	Timestamp time.Time `json:"timestamp"`
	Stats     Stats     `json:"stats"`
}

// NewCheckpointManager creates a manager writing into dir.
func NewCheckpointManager(dir string) *CheckpointManager {
	if dir == "" {
		dir = "."
	}
	return &CheckpointManager{dir: dir}
}

// Path returns the checkpoint file path.
func (cm *CheckpointManager) Path() string {
	return filepath.Join(cm.dir, CheckpointFile)
}

// Save writes the state to disk, replacing any previous checkpoint.
func (cm *CheckpointManager) Save(stats Stats, now time.Time) error {
	if err := os.MkdirAll(cm.dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	data := Checkpoint{Timestamp: now, Stats: stats}

	// Write to temp file, then rename (atomic write)
	f, err := os.CreateTemp(cm.dir, CheckpointFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("create checkpoint file: %w", err)
	}
	tmpPath := f.Name()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close checkpoint file: %w", err)
	}

	if err := os.Rename(tmpPath, cm.Path()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename checkpoint file: %w", err)
	}
	return nil
}

// Load reads the checkpoint. It returns nil without error when none exists.
func (cm *CheckpointManager) Load() (*Checkpoint, error) {
	f, err := os.Open(cm.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	var data Checkpoint
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &data, nil
}

// HasCheckpoint returns true if a checkpoint file exists.
func (cm *CheckpointManager) HasCheckpoint() bool {
	_, err := os.Stat(cm.Path())
	return err == nil
}

// Clean removes the checkpoint file.
func (cm *CheckpointManager) Clean() error {
	if err := os.Remove(cm.Path()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

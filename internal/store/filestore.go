package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"foxfamily/internal/models"
)

// FileStore persists the snapshot as a single JSON document. Saves go
// through a sibling temp file followed by an atomic rename, so a crash
// mid-write leaves either the previous or the new complete document on
// disk, never a torn hybrid.
type FileStore struct {
	path string
	mu   sync.Mutex
	log  *zap.Logger
}

// NewFileStore creates a file-backed store at path.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	return &FileStore{path: path, log: logger}
}

// Load reads and parses the snapshot file. A missing file yields an empty
// snapshot. An unparseable file is renamed to a timestamped backup so user
// data is never silently discarded, and an empty snapshot is returned.
func (s *FileStore) Load() (*models.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.NewSnapshot(), nil
		}
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		backup := fmt.Sprintf("%s.corrupt.%s", s.path, time.Now().Format("20060102_150405"))
		if renameErr := os.Rename(s.path, backup); renameErr != nil {
			return nil, fmt.Errorf("snapshot file unreadable and backup failed: %w", renameErr)
		}
		s.log.Warn("snapshot file unreadable, preserved as backup",
			zap.String("path", s.path),
			zap.String("backup", backup),
			zap.Error(err))
		return models.NewSnapshot(), nil
	}

	snap.Normalize()
	return &snap, nil
}

// Save writes snap to a temp file, flushes it to disk and renames it over
// the canonical path. The internal mutex keeps parallel savers from
// interleaving temp-file writes.
func (s *FileStore) Save(snap *models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write temp snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to flush temp snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close temp snapshot: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// Close implements Store. File handles are not held between calls.
func (s *FileStore) Close() error {
	return nil
}

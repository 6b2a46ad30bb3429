package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"foxfamily/internal/models"
)

// SQLiteStore keeps the serialized snapshot in a single row of an embedded
// SQLite database. The write granularity stays "one full snapshot
// replace"; SQLite's transaction guarantees stand in for the file
// backend's temp-write-and-rename protocol.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex
	log *zap.Logger
}

// NewSQLiteStore opens (or creates) the database at path and prepares the
// snapshot schema.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL keeps the scheduler's reads from blocking handler writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure connection: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS snapshot (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			doc TEXT NOT NULL,
			saved_at DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS snapshot_backup (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			doc TEXT NOT NULL,
			backed_up_at DATETIME NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, log: logger}, nil
}

// Load reads the snapshot row. An empty table yields an empty snapshot.
// An unreadable document is copied into snapshot_backup before falling
// back to an empty snapshot, mirroring the file backend's corrupt-file
// policy.
func (s *SQLiteStore) Load() (*models.Snapshot, error) {
	var doc string
	err := s.db.QueryRow("SELECT doc FROM snapshot WHERE id = 1").Scan(&doc)
	if err == sql.ErrNoRows {
		return models.NewSnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot row: %w", err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal([]byte(doc), &snap); err != nil {
		if _, backupErr := s.db.Exec(
			"INSERT INTO snapshot_backup (doc, backed_up_at) VALUES (?, ?)",
			doc, time.Now(),
		); backupErr != nil {
			return nil, fmt.Errorf("snapshot unreadable and backup failed: %w", backupErr)
		}
		s.log.Warn("snapshot row unreadable, preserved in snapshot_backup", zap.Error(err))
		return models.NewSnapshot(), nil
	}

	snap.Normalize()
	return &snap, nil
}

// Save replaces the snapshot row inside one transaction.
func (s *SQLiteStore) Save(snap *models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO snapshot (id, doc, saved_at) VALUES (1, ?, ?)",
		string(doc), time.Now(),
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to write snapshot row: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

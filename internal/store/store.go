// Package store owns the durable representation of all domain state.
//
// Every backend implements the same contract: Load returns the current
// snapshot (with defaults filled in for missing substructures) and Save
// replaces the whole snapshot atomically with respect to process crash.
// There is no row-level locking; callers load their own snapshot, mutate
// it in memory and save it back. Two callers loading before either saves
// is a last-writer-wins race accepted at snapshot granularity — the
// conversation layer serializes logical operations per principal, and
// each backend serializes the physical write with an internal mutex.
package store

import "foxfamily/internal/models"

// Store is the persistence contract shared by all backends.
type Store interface {
	// Load returns the current durable state. It never mutates the
	// underlying storage except to preserve an unreadable document as a
	// backup before falling back to an empty snapshot.
	Load() (*models.Snapshot, error)

	// Save atomically replaces the durable state with snap.
	Save(snap *models.Snapshot) error

	// Close releases any resources held by the backend.
	Close() error
}

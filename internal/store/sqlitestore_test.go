package store

import (
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"foxfamily/internal/models"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.sqlite")
	s, err := NewSQLiteStore(path, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSQLiteStore() error: %v", err)
	}
	defer s.Close()

	want := testSnapshot()
	if err := s.Save(want); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round-trip mismatch:\ngot  %+v\nwant %+v", got, want)
	}
}

func TestSQLiteStoreEmptyDatabase(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db.sqlite"), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	snap, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(snap.Families) != 0 || len(snap.Users) != 0 {
		t.Error("fresh database should yield empty snapshot")
	}
}

func TestSQLiteStoreReplacesSingleRow(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db.sqlite"), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Save(testSnapshot()); err != nil {
		t.Fatal(err)
	}
	second := models.NewSnapshot()
	second.Users[42] = &models.UserRecord{Email: "a@example.com"}
	if err := s.Save(second); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Families) != 0 {
		t.Error("old snapshot content survived replace")
	}
	if got.Users[42] == nil || got.Users[42].Email != "a@example.com" {
		t.Error("latest snapshot content missing")
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM snapshot").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("snapshot table has %d rows, want 1", count)
	}
}

func TestSQLiteStoreCorruptDocPreserved(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db.sqlite"), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := s.db.Exec(
		"INSERT INTO snapshot (id, doc, saved_at) VALUES (1, ?, CURRENT_TIMESTAMP)",
		"{ not json",
	); err != nil {
		t.Fatal(err)
	}

	snap, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(snap.Families) != 0 {
		t.Error("corrupt doc should yield empty snapshot")
	}

	var backups int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM snapshot_backup").Scan(&backups); err != nil {
		t.Fatal(err)
	}
	if backups != 1 {
		t.Errorf("snapshot_backup has %d rows, want 1", backups)
	}
}

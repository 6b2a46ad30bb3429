package store

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"foxfamily/internal/models"
)

func testSnapshot() *models.Snapshot {
	deadline := time.Date(2026, 6, 1, 18, 30, 0, 0, time.UTC)
	snap := models.NewSnapshot()
	snap.Families["fam-1"] = &models.Family{
		ID:        "fam-1",
		Name:      "Smiths",
		CreatorID: 100,
		CreatedAt: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC),
		Members: map[int64]*models.Member{
			100: {Nick: "Creator", JoinedAt: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)},
			200: {Nick: "Bob", JoinedAt: time.Date(2026, 1, 16, 10, 0, 0, 0, time.UTC)},
		},
		ActiveKey: &models.InviteKey{
			Value:     "k-value",
			CreatedAt: time.Date(2026, 1, 16, 9, 55, 0, 0, time.UTC),
			ExpiresAt: time.Date(2026, 1, 16, 10, 5, 0, 0, time.UTC),
		},
		Tasks: map[string]*models.Task{
			"task-1": {
				ID:          "task-1",
				CreatorID:   100,
				Description: "weekly groceries",
				Type:        models.TaskShopping,
				Deadline:    &deadline,
				ReminderSec: 3600,
				Items: []models.ChecklistItem{
					{Label: "milk", Quantity: "2"},
					{Label: "bread", Checked: true},
				},
				CreatedAt: time.Date(2026, 5, 30, 8, 0, 0, 0, time.UTC),
			},
		},
		CompletedTasks: map[string]*models.Task{},
	}
	snap.Users[100] = &models.UserRecord{Families: []string{"fam-1"}, CurrentFamily: "fam-1"}
	snap.Users[200] = &models.UserRecord{Families: []string{"fam-1"}, CurrentFamily: "fam-1", Email: "bob@example.com"}
	return snap
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	s := NewFileStore(path, zap.NewNop())

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

func TestFileStoreLoadMissingFile(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "absent.json"), zap.NewNop())

	snap, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if snap.Families == nil || snap.Users == nil {
		t.Error("empty snapshot missing substructures")
	}
	if len(snap.Families) != 0 {
		t.Errorf("expected empty snapshot, got %d families", len(snap.Families))
	}
}

func TestFileStoreFillsMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	// Older snapshot with only a families key; users and the family's
	// task maps are absent.
	legacy := `{"families":{"f1":{"id":"f1","name":"Old","creator_id":1}}}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	snap, err := NewFileStore(path, zap.NewNop()).Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if snap.Users == nil {
		t.Error("users index not defaulted")
	}
	fam := snap.Families["f1"]
	if fam == nil {
		t.Fatal("family lost on load")
	}
	if fam.Members == nil || fam.Tasks == nil || fam.CompletedTasks == nil {
		t.Error("family substructures not defaulted")
	}
}

func TestFileStoreCorruptFilePreserved(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.json")
	garbage := "{ this is not json"
	if err := os.WriteFile(path, []byte(garbage), 0o644); err != nil {
		t.Fatal(err)
	}

	snap, err := NewFileStore(path, zap.NewNop()).Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(snap.Families) != 0 {
		t.Error("corrupt file should yield empty snapshot")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var backup string
	for _, e := range entries {
		if strings.Contains(e.Name(), ".corrupt.") {
			backup = filepath.Join(dir, e.Name())
		}
	}
	if backup == "" {
		t.Fatal("no corrupt backup created")
	}
	data, err := os.ReadFile(backup)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != garbage {
		t.Error("backup does not preserve original bytes")
	}
}

func TestFileStoreCrashBeforeRenameKeepsOldSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	s := NewFileStore(path, zap.NewNop())

	want := testSnapshot()
	if err := s.Save(want); err != nil {
		t.Fatal(err)
	}

	// Simulate a crash between temp-write and rename: a half-written temp
	// file sits next to the canonical path.
	if err := os.WriteFile(path+".tmp", []byte(`{"families":{"truncated`), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Error("stale temp file affected the canonical snapshot")
	}
}

func TestFileStoreSaveReplacesWholeSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	s := NewFileStore(path, zap.NewNop())

	first := testSnapshot()
	if err := s.Save(first); err != nil {
		t.Fatal(err)
	}

	second := models.NewSnapshot()
	second.Users[300] = &models.UserRecord{}
	if err := s.Save(second); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Families) != 0 {
		t.Error("old families survived a full replace")
	}
	if _, ok := got.Users[300]; !ok {
		t.Error("new user record missing after replace")
	}
}

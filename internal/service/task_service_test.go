package service

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"foxfamily/internal/models"
	"foxfamily/internal/store"
)

func newTaskFixture(t *testing.T) (*TaskService, *FamilyService, store.Store, *models.Family) {
	t.Helper()
	st := newTestStore(t)
	fams := NewFamilyService(st, zap.NewNop())
	fam, _, err := fams.CreateFamily(100)
	if err != nil {
		t.Fatal(err)
	}
	return NewTaskService(st, zap.NewNop()), fams, st, fam
}

func TestCreateTaskValidation(t *testing.T) {
	tasks, _, _, _ := newTaskFixture(t)

	past := time.Now().Add(-2 * models.DeadlineGrace)

	cases := []struct {
		name  string
		draft TaskDraft
	}{
		{"unknown type", TaskDraft{Type: "laundry", Description: "wash"}},
		{"empty description", TaskDraft{Type: models.TaskPlain, Description: ""}},
		{"past deadline", TaskDraft{Type: models.TaskPlain, Description: "late", Deadline: &past}},
		{"shopping without items", TaskDraft{Type: models.TaskShopping, Description: "groceries"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tasks.CreateTask(100, tc.draft); err == nil {
				t.Errorf("CreateTask(%+v) succeeded, want error", tc.draft)
			}
		})
	}
}

func TestCreateTaskNoCurrentFamily(t *testing.T) {
	st := newTestStore(t)
	tasks := NewTaskService(st, zap.NewNop())

	_, err := tasks.CreateTask(999, TaskDraft{Type: models.TaskPlain, Description: "orphan"})
	if !errors.Is(err, ErrNoCurrentFamily) {
		t.Errorf("err = %v, want ErrNoCurrentFamily", err)
	}
}

func TestCreateTaskPersists(t *testing.T) {
	tasks, _, st, fam := newTaskFixture(t)

	deadline := time.Now().Add(24 * time.Hour)
	res, err := tasks.CreateTask(100, TaskDraft{
		Type:        models.TaskChore,
		Description: "take out the trash",
		Deadline:    &deadline,
		ReminderSec: 3600,
	})
	if err != nil {
		t.Fatalf("CreateTask() error: %v", err)
	}
	if res.Task.ID == "" {
		t.Error("task has no id")
	}
	if res.Task.ReminderSec != 3600 {
		t.Errorf("reminder = %d, want 3600", res.Task.ReminderSec)
	}

	snap, err := st.Load()
	if err != nil {
		t.Fatal(err)
	}
	stored := snap.Families[fam.ID].Tasks[res.Task.ID]
	if stored == nil {
		t.Fatal("task not persisted in open set")
	}
	if stored.Description != "take out the trash" {
		t.Errorf("description = %q", stored.Description)
	}
}

func TestCreateTaskDeadlineWithinGrace(t *testing.T) {
	tasks, _, _, _ := newTaskFixture(t)

	// A deadline slightly in the past is still accepted inside the grace
	// window so "in five minutes" typed a moment late does not bounce.
	recent := time.Now().Add(-models.DeadlineGrace / 2)
	if _, err := tasks.CreateTask(100, TaskDraft{
		Type:        models.TaskPlain,
		Description: "just missed",
		Deadline:    &recent,
	}); err != nil {
		t.Errorf("deadline inside grace window rejected: %v", err)
	}
}

func TestCreateTaskDropsReminderWithoutDeadline(t *testing.T) {
	tasks, _, _, _ := newTaskFixture(t)

	res, err := tasks.CreateTask(100, TaskDraft{
		Type:        models.TaskPlain,
		Description: "open ended",
		ReminderSec: 3600,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Task.ReminderSec != 0 {
		t.Errorf("reminder = %d without deadline, want 0", res.Task.ReminderSec)
	}
}

func TestUpdateProgress(t *testing.T) {
	tasks, _, st, fam := newTaskFixture(t)
	created, err := tasks.CreateTask(100, TaskDraft{Type: models.TaskPlain, Description: "paint the fence"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := tasks.UpdateProgress(100, created.Task.ID, 101); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("pct 101: err = %v, want ErrOutOfRange", err)
	}
	if _, err := tasks.UpdateProgress(100, created.Task.ID, -1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("pct -1: err = %v, want ErrOutOfRange", err)
	}

	res, err := tasks.UpdateProgress(100, created.Task.ID, 40)
	if err != nil {
		t.Fatalf("UpdateProgress() error: %v", err)
	}
	if res.Closed {
		t.Error("task closed below 100")
	}
	if res.Task.Progress != 40 {
		t.Errorf("progress = %d, want 40", res.Task.Progress)
	}
	if len(res.Task.Updates) != 1 || res.Task.Updates[0].From != 0 || res.Task.Updates[0].To != 40 {
		t.Errorf("update log = %+v, want one 0->40 entry", res.Task.Updates)
	}

	snap, err := st.Load()
	if err != nil {
		t.Fatal(err)
	}
	if snap.Families[fam.ID].Tasks[created.Task.ID].Progress != 40 {
		t.Error("progress not persisted")
	}
}

func TestUpdateProgressHundredClosesOnce(t *testing.T) {
	tasks, _, st, fam := newTaskFixture(t)
	created, err := tasks.CreateTask(100, TaskDraft{Type: models.TaskPlain, Description: "paint the fence"})
	if err != nil {
		t.Fatal(err)
	}

	res, err := tasks.UpdateProgress(100, created.Task.ID, 100)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Closed {
		t.Error("Closed = false at 100")
	}
	if res.Task.CompletedAt == nil || res.Task.CompletedBy != models.CreatorNick {
		t.Errorf("completion not stamped: at=%v by=%q", res.Task.CompletedAt, res.Task.CompletedBy)
	}

	snap, err := st.Load()
	if err != nil {
		t.Fatal(err)
	}
	f := snap.Families[fam.ID]
	if _, open := f.Tasks[created.Task.ID]; open {
		t.Error("closed task still in open set")
	}
	if _, done := f.CompletedTasks[created.Task.ID]; !done {
		t.Error("closed task missing from completed set")
	}

	// The task left the open set, so a second update is a not-found.
	if _, err := tasks.UpdateProgress(100, created.Task.ID, 50); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("update after close: err = %v, want ErrTaskNotFound", err)
	}
}

func TestCheckItem(t *testing.T) {
	tasks, _, st, fam := newTaskFixture(t)
	created, err := tasks.CreateTask(100, TaskDraft{
		Type:        models.TaskShopping,
		Description: "weekly groceries",
		Items: []models.ChecklistItem{
			{Label: "milk", Quantity: "2"},
			{Label: "bread"},
			{Label: "eggs"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	id := created.Task.ID

	plain, err := tasks.CreateTask(100, TaskDraft{Type: models.TaskPlain, Description: "not a list"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tasks.CheckItem(100, plain.Task.ID, 0); !errors.Is(err, ErrNotShoppingTask) {
		t.Errorf("check on plain task: err = %v, want ErrNotShoppingTask", err)
	}
	if _, err := tasks.CheckItem(100, id, 5); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("out-of-bounds index: err = %v, want ErrTaskNotFound", err)
	}

	// Checking all but the last item leaves the task open.
	for i := 0; i < 2; i++ {
		res, err := tasks.CheckItem(100, id, i)
		if err != nil {
			t.Fatalf("CheckItem(%d) error: %v", i, err)
		}
		if res.Closed {
			t.Fatalf("task closed after %d of 3 items", i+1)
		}
	}

	if _, err := tasks.CheckItem(100, id, 0); !errors.Is(err, ErrAlreadyChecked) {
		t.Errorf("double-check: err = %v, want ErrAlreadyChecked", err)
	}

	// The last item closes the task with progress forced to 100.
	res, err := tasks.CheckItem(100, id, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Closed {
		t.Error("task not closed after last item")
	}
	if res.Task.Progress != 100 {
		t.Errorf("progress = %d, want 100", res.Task.Progress)
	}

	snap, err := st.Load()
	if err != nil {
		t.Fatal(err)
	}
	if _, done := snap.Families[fam.ID].CompletedTasks[id]; !done {
		t.Error("completed shopping task missing from completed set")
	}
}

func TestTaskOperationsRequireMembership(t *testing.T) {
	tasks, _, _, _ := newTaskFixture(t)
	created, err := tasks.CreateTask(100, TaskDraft{Type: models.TaskPlain, Description: "shared chore"})
	if err != nil {
		t.Fatal(err)
	}

	// An unknown principal gets a clean membership error, not silent
	// access to someone else's family.
	if _, err := tasks.UpdateProgress(555, created.Task.ID, 10); !errors.Is(err, ErrNoCurrentFamily) {
		t.Errorf("outsider update: err = %v, want ErrNoCurrentFamily", err)
	}
}

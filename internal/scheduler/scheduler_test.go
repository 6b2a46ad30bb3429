package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"foxfamily/internal/models"
	"foxfamily/internal/notify"
	"foxfamily/internal/store"
	"foxfamily/internal/transport"
)

type countingSender struct {
	mu    sync.Mutex
	texts []string
}

func (c *countingSender) Send(_ context.Context, _ int64, text string, _ []transport.Option) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	return nil
}

func (c *countingSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.texts)
}

func fixture(t *testing.T, tasks ...*models.Task) (*Scheduler, *countingSender, store.Store) {
	t.Helper()
	st := store.NewFileStore(filepath.Join(t.TempDir(), "db.json"), zap.NewNop())

	snap := models.NewSnapshot()
	fam := &models.Family{
		ID:   "fam-1",
		Name: "Smiths",
		Members: map[int64]*models.Member{
			1: {Nick: "A", JoinedAt: time.Now()},
			2: {Nick: "B", JoinedAt: time.Now()},
		},
		Tasks:          map[string]*models.Task{},
		CompletedTasks: map[string]*models.Task{},
	}
	for _, task := range tasks {
		fam.Tasks[task.ID] = task
	}
	snap.Families["fam-1"] = fam
	if err := st.Save(snap); err != nil {
		t.Fatal(err)
	}

	sender := &countingSender{}
	notifier := notify.New(st, sender, nil, 0, zap.NewNop())
	return New(st, notifier, time.Minute, zap.NewNop()), sender, st
}

func task(id string, deadline time.Time, reminderSec int64) *models.Task {
	return &models.Task{
		ID:          id,
		Description: "task " + id,
		Type:        models.TaskPlain,
		Deadline:    &deadline,
		ReminderSec: reminderSec,
		CreatedAt:   time.Now(),
	}
}

func TestTickFiresExactlyOnce(t *testing.T) {
	now := time.Now()
	s, sender, st := fixture(t, task("t1", now.Add(500*time.Second), 600))

	s.tick(context.Background(), now)
	if got := sender.count(); got != 2 {
		t.Fatalf("deliveries = %d after first tick, want 2 (both members)", got)
	}

	// The sent flag must be persisted, not just in memory.
	snap, err := st.Load()
	if err != nil {
		t.Fatal(err)
	}
	if !snap.Families["fam-1"].Tasks["t1"].ReminderSent {
		t.Error("reminder_sent not persisted")
	}

	// Later ticks inside the window stay silent.
	s.tick(context.Background(), now.Add(time.Minute))
	if got := sender.count(); got != 2 {
		t.Errorf("deliveries = %d after second tick, want still 2", got)
	}
}

func TestTickSkipsOutsideWindow(t *testing.T) {
	now := time.Now()
	s, sender, _ := fixture(t,
		task("early", now.Add(10000*time.Second), 600), // too far out
		task("late", now.Add(-10*time.Second), 600),    // deadline passed
		task("none", now.Add(500*time.Second), 0),      // no reminder requested
	)

	s.tick(context.Background(), now)
	if got := sender.count(); got != 0 {
		t.Errorf("deliveries = %d, want 0", got)
	}
}

func TestTickSkipsTaskWithoutDeadline(t *testing.T) {
	now := time.Now()
	open := &models.Task{
		ID:          "open",
		Description: "open ended",
		Type:        models.TaskPlain,
		ReminderSec: 600,
		CreatedAt:   now,
	}
	s, sender, _ := fixture(t, open)

	s.tick(context.Background(), now)
	if got := sender.count(); got != 0 {
		t.Errorf("deliveries = %d for deadline-less task, want 0", got)
	}
}

func TestTickEntersWindowLater(t *testing.T) {
	now := time.Now()
	s, sender, _ := fixture(t, task("t1", now.Add(2*time.Hour), 3600))

	// Outside the one-hour lead: nothing.
	s.tick(context.Background(), now)
	if sender.count() != 0 {
		t.Fatal("reminder fired outside its window")
	}

	// A later tick inside the window fires.
	s.tick(context.Background(), now.Add(90*time.Minute))
	if got := sender.count(); got != 2 {
		t.Errorf("deliveries = %d inside window, want 2", got)
	}
}

func TestTickDoesNotRewriteUnchangedSnapshot(t *testing.T) {
	now := time.Now()
	s, _, st := fixture(t, task("t1", now.Add(10000*time.Second), 600))

	before, err := st.Load()
	if err != nil {
		t.Fatal(err)
	}
	s.tick(context.Background(), now)
	after, err := st.Load()
	if err != nil {
		t.Fatal(err)
	}

	if after.Families["fam-1"].Tasks["t1"].ReminderSent != before.Families["fam-1"].Tasks["t1"].ReminderSent {
		t.Error("snapshot changed on a tick with nothing to do")
	}
}

package models

import "time"

// TaskType is a closed set of task variants. Only shopping tasks carry a
// checklist; every other variant completes through progress percent.
type TaskType string

const (
	TaskPlain    TaskType = "plain"
	TaskShopping TaskType = "shopping"
	TaskTrip     TaskType = "trip"
	TaskChore    TaskType = "chore"
	TaskEvent    TaskType = "event"
)

// TaskTypes lists every valid variant in menu order.
var TaskTypes = []TaskType{TaskPlain, TaskShopping, TaskTrip, TaskChore, TaskEvent}

// Valid reports whether t is one of the known variants.
func (t TaskType) Valid() bool {
	for _, known := range TaskTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Label returns the user-facing name of the variant.
func (t TaskType) Label() string {
	switch t {
	case TaskPlain:
		return "Regular"
	case TaskShopping:
		return "Shopping list"
	case TaskTrip:
		return "Trip"
	case TaskChore:
		return "Chore"
	case TaskEvent:
		return "Event"
	}
	return string(t)
}

// Limits for task fields.
const (
	MinDescriptionLen = 1
	MaxDescriptionLen = 200
)

// DeadlineGrace tolerates clock skew and slow wizard input: a deadline
// may be up to this far in the past at creation time.
const DeadlineGrace = time.Hour

// Task is a trackable unit of work with optional deadline, reminder and
// progress.
type Task struct {
	ID           string           `json:"id"`
	CreatorID    int64            `json:"creator_id"`
	Description  string           `json:"desc"`
	Type         TaskType         `json:"type"`
	Deadline     *time.Time       `json:"deadline,omitempty"`
	ReminderSec  int64            `json:"reminder_sec"`
	ReminderSent bool             `json:"reminder_sent,omitempty"`
	Progress     int              `json:"progress"`
	Assignees    []string         `json:"assignees,omitempty"`
	Updates      []ProgressUpdate `json:"updates,omitempty"`
	Items        []ChecklistItem  `json:"items,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	CompletedBy  string           `json:"completed_by,omitempty"`
}

// ChecklistItem is one line of a shopping-list task.
type ChecklistItem struct {
	Label    string `json:"label"`
	Quantity string `json:"quantity,omitempty"`
	Checked  bool   `json:"checked"`
}

// ProgressUpdate is one entry of a task's append-only update log.
type ProgressUpdate struct {
	Nick string    `json:"nick"`
	From int       `json:"from"`
	To   int       `json:"to"`
	At   time.Time `json:"at"`
}

// AllItemsChecked reports whether every checklist item is checked. A task
// with no items never reports true.
func (t *Task) AllItemsChecked() bool {
	if len(t.Items) == 0 {
		return false
	}
	for _, item := range t.Items {
		if !item.Checked {
			return false
		}
	}
	return true
}

package service

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"foxfamily/internal/models"
	"foxfamily/internal/store"
	"foxfamily/internal/utils"
)

var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrOutOfRange      = errors.New("progress must be between 0 and 100")
	ErrPastDeadline    = errors.New("deadline is already in the past")
	ErrNotShoppingTask = errors.New("task has no checklist")
	ErrAlreadyChecked  = errors.New("item is already checked")
	ErrNoItems         = errors.New("shopping list needs at least one item")
)

// TaskDraft carries the fields collected by the create-task wizard.
type TaskDraft struct {
	Type        models.TaskType
	Description string
	Items       []models.ChecklistItem
	Deadline    *time.Time
	ReminderSec int64
}

// TaskResult reports a task mutation together with the context the caller
// needs to build a notification.
type TaskResult struct {
	Task   *models.Task
	Family *models.Family
	Nick   string
	Closed bool
}

// TaskService handles task business logic inside the user's current family.
type TaskService struct {
	store store.Store
	log   *zap.Logger
}

// NewTaskService creates a new task service
func NewTaskService(st store.Store, logger *zap.Logger) *TaskService {
	return &TaskService{store: st, log: logger}
}

// CreateTask adds a new open task to the user's current family. A deadline,
// if present, must not lie further in the past than the grace window; the
// reminder lead-time is only retained when a deadline exists; shopping
// tasks must carry at least one item.
func (s *TaskService) CreateTask(userID int64, draft TaskDraft) (*TaskResult, error) {
	if !draft.Type.Valid() {
		return nil, fmt.Errorf("unknown task type %q", draft.Type)
	}
	if err := utils.ValidateDescription(draft.Description); err != nil {
		return nil, err
	}

	now := time.Now()
	if draft.Deadline != nil && draft.Deadline.Before(now.Add(-models.DeadlineGrace)) {
		return nil, ErrPastDeadline
	}

	reminder := draft.ReminderSec
	if draft.Deadline == nil {
		reminder = 0
	}

	var items []models.ChecklistItem
	if draft.Type == models.TaskShopping {
		if len(draft.Items) == 0 {
			return nil, ErrNoItems
		}
		items = draft.Items
	}

	snap, fam, err := s.currentFamily(userID)
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		ID:          uuid.New().String(),
		CreatorID:   userID,
		Description: draft.Description,
		Type:        draft.Type,
		Deadline:    draft.Deadline,
		ReminderSec: reminder,
		Items:       items,
		CreatedAt:   now,
	}
	fam.Tasks[task.ID] = task

	if err := s.store.Save(snap); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	s.log.Info("task created",
		zap.String("family", fam.ID),
		zap.String("task", task.ID),
		zap.String("type", string(task.Type)))
	return &TaskResult{Task: task, Family: fam, Nick: fam.MemberNick(userID)}, nil
}

// UpdateProgress records a progress update in the task's append-only log.
// Reaching 100 closes the task: it moves from the open set to the
// completed set exactly once.
func (s *TaskService) UpdateProgress(userID int64, taskID string, pct int) (*TaskResult, error) {
	if pct < 0 || pct > 100 {
		return nil, ErrOutOfRange
	}

	snap, fam, err := s.currentFamily(userID)
	if err != nil {
		return nil, err
	}
	task, ok := fam.Tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}

	nick := fam.MemberNick(userID)
	now := time.Now()
	task.Updates = append(task.Updates, models.ProgressUpdate{
		Nick: nick,
		From: task.Progress,
		To:   pct,
		At:   now,
	})
	task.Progress = pct

	res := &TaskResult{Task: task, Family: fam, Nick: nick}
	if pct == 100 {
		fam.CloseTask(taskID, nick, now)
		res.Closed = true
	}

	if err := s.store.Save(snap); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}
	return res, nil
}

// CheckItem marks one line of a shopping-list task as done. When the last
// item gets checked the task closes with progress forced to 100.
func (s *TaskService) CheckItem(userID int64, taskID string, index int) (*TaskResult, error) {
	snap, fam, err := s.currentFamily(userID)
	if err != nil {
		return nil, err
	}
	task, ok := fam.Tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if task.Type != models.TaskShopping {
		return nil, ErrNotShoppingTask
	}
	if index < 0 || index >= len(task.Items) {
		return nil, ErrTaskNotFound
	}
	if task.Items[index].Checked {
		return nil, ErrAlreadyChecked
	}

	task.Items[index].Checked = true

	nick := fam.MemberNick(userID)
	res := &TaskResult{Task: task, Family: fam, Nick: nick}
	if task.AllItemsChecked() {
		fam.CloseTask(taskID, nick, time.Now())
		res.Closed = true
	}

	if err := s.store.Save(snap); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}
	return res, nil
}

// ListTasks returns the open tasks of the user's current family sorted by
// creation time, oldest first.
func (s *TaskService) ListTasks(userID int64) ([]*models.Task, *models.Family, error) {
	_, fam, err := s.currentFamily(userID)
	if err != nil {
		return nil, nil, err
	}
	return sortedTasks(fam.Tasks), fam, nil
}

// ListCompleted returns the completed tasks of the user's current family,
// oldest first.
func (s *TaskService) ListCompleted(userID int64) ([]*models.Task, *models.Family, error) {
	_, fam, err := s.currentFamily(userID)
	if err != nil {
		return nil, nil, err
	}
	return sortedTasks(fam.CompletedTasks), fam, nil
}

func sortedTasks(m map[string]*models.Task) []*models.Task {
	tasks := make([]*models.Task, 0, len(m))
	for _, t := range m {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks
}

// currentFamily resolves the user's current family, mirroring the
// FamilyService helper.
func (s *TaskService) currentFamily(userID int64) (*models.Snapshot, *models.Family, error) {
	snap, err := s.store.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	user, ok := snap.Users[userID]
	if !ok || user.CurrentFamily == "" {
		return nil, nil, ErrNoCurrentFamily
	}
	fam, ok := snap.Families[user.CurrentFamily]
	if !ok {
		return nil, nil, ErrNoCurrentFamily
	}
	if _, member := fam.Members[userID]; !member {
		return nil, nil, ErrNotMember
	}
	return snap, fam, nil
}

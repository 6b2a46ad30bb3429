package conversation

import (
	"sync"
	"time"

	"foxfamily/internal/models"
)

// step identifies where a principal currently is inside a wizard. The zero
// value means no wizard is active and input is interpreted as menu
// commands.
type step int

const (
	stepNone step = iota
	stepJoinKey
	stepJoinNick
	stepNotifyEmail
	stepFamilyName
	stepTaskType
	stepTaskCategory
	stepTaskItems
	stepTaskDesc
	stepTaskDate
	stepTaskTime
	stepTaskConfirm
	stepTaskReminder
	stepTaskProgress
	stepLeaveConfirm
	stepDeleteConfirm
)

// scratch holds the fields a wizard has collected so far. It is discarded
// whole on cancel and on wizard completion; "back" keeps it so earlier
// validated answers survive.
type scratch struct {
	// join wizard
	joinFamilyID   string
	joinFamilyName string
	joinNearCap    bool

	// task wizard
	taskType    models.TaskType
	category    string
	items       []models.ChecklistItem
	description string
	date        *time.Time // midnight of the chosen day
	deadline    *time.Time
	reminderSec int64

	// progress wizard
	taskID string
}

// session is the per-principal conversation state. The mutex serializes
// event handling for one principal; different principals proceed
// independently.
type session struct {
	mu      sync.Mutex
	step    step
	scratch scratch
}

func (s *session) reset() {
	s.step = stepNone
	s.scratch = scratch{}
}

// sessions hands out the session for a principal, creating it on first
// contact.
type sessions struct {
	mu sync.Mutex
	m  map[int64]*session
}

func newSessions() *sessions {
	return &sessions{m: make(map[int64]*session)}
}

func (s *sessions) get(principal int64) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.m[principal]
	if !ok {
		sess = &session{}
		s.m[principal] = sess
	}
	return sess
}

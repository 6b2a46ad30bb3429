package models

import "time"

// Limits enforced at mutation time.
const (
	MaxFreeMembers       = 25
	WarnMembersThreshold = 20
	MaxFamilyNameLen     = 50
	MaxNicknameLen       = 32
)

// DefaultFamilyName is assigned to newly created families until renamed.
const DefaultFamilyName = "My Fox Family"

// CreatorNick is the placeholder nickname given to a family's creator.
const CreatorNick = "Creator"

// Family is a named group of members sharing a task list.
type Family struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	CreatorID      int64             `json:"creator_id"`
	CreatedAt      time.Time         `json:"created_at"`
	Members        map[int64]*Member `json:"members"`
	ActiveKey      *InviteKey        `json:"active_key,omitempty"`
	Subscription   bool              `json:"subscription,omitempty"`
	Tasks          map[string]*Task  `json:"tasks"`
	CompletedTasks map[string]*Task  `json:"completed_tasks"`
}

// Member is one principal's membership inside a family.
type Member struct {
	Nick     string    `json:"nick"`
	JoinedAt time.Time `json:"joined"`
}

// InviteKey is a short-lived shared secret granting join access.
type InviteKey struct {
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created"`
	ExpiresAt time.Time `json:"expires"`
}

// IsExpired reports whether the key's TTL has elapsed at the given time.
func (k *InviteKey) IsExpired(now time.Time) bool {
	return now.After(k.ExpiresAt)
}

// HasNick reports whether any current member already uses nick.
// Uniqueness is checked only at join/rename time, not continuously.
func (f *Family) HasNick(nick string) bool {
	for _, m := range f.Members {
		if m.Nick == nick {
			return true
		}
	}
	return false
}

// MemberNick returns the nickname for a member, or empty when absent.
func (f *Family) MemberNick(userID int64) string {
	if m, ok := f.Members[userID]; ok {
		return m.Nick
	}
	return ""
}

// CloseTask moves an open task into CompletedTasks exactly once, stamping
// completion time and the completer's nickname. Returns false when the
// task is not open (already closed or unknown).
func (f *Family) CloseTask(taskID, completedBy string, now time.Time) bool {
	task, ok := f.Tasks[taskID]
	if !ok {
		return false
	}
	delete(f.Tasks, taskID)
	task.Progress = 100
	task.CompletedAt = &now
	task.CompletedBy = completedBy
	f.CompletedTasks[taskID] = task
	return true
}

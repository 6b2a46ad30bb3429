package models

// Snapshot is the full in-memory representation of persisted state at one
// point in time. It is always loaded, mutated and saved as a whole; there
// are no partial updates.
type Snapshot struct {
	Families map[string]*Family    `json:"families"`
	Users    map[int64]*UserRecord `json:"users"`
}

// UserRecord is the per-principal membership index.
type UserRecord struct {
	Families      []string `json:"families"`
	CurrentFamily string   `json:"current_family"`
	Email         string   `json:"email,omitempty"`
}

// NewSnapshot creates an empty snapshot with all substructures allocated.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Families: make(map[string]*Family),
		Users:    make(map[int64]*UserRecord),
	}
}

// Normalize fills in missing substructures after a load so older snapshot
// files keep working when fields are added.
func (s *Snapshot) Normalize() {
	if s.Families == nil {
		s.Families = make(map[string]*Family)
	}
	if s.Users == nil {
		s.Users = make(map[int64]*UserRecord)
	}
	for _, fam := range s.Families {
		if fam.Members == nil {
			fam.Members = make(map[int64]*Member)
		}
		if fam.Tasks == nil {
			fam.Tasks = make(map[string]*Task)
		}
		if fam.CompletedTasks == nil {
			fam.CompletedTasks = make(map[string]*Task)
		}
	}
}

// EnsureUser returns the record for a principal, creating it if absent.
func (s *Snapshot) EnsureUser(userID int64) *UserRecord {
	u, ok := s.Users[userID]
	if !ok {
		u = &UserRecord{}
		s.Users[userID] = u
	}
	return u
}

// InFamily reports whether the user's membership index contains familyID.
func (u *UserRecord) InFamily(familyID string) bool {
	for _, id := range u.Families {
		if id == familyID {
			return true
		}
	}
	return false
}

// RemoveFamily drops familyID from the user's membership index and clears
// the current-family pointer when it referenced the removed family.
func (u *UserRecord) RemoveFamily(familyID string) {
	kept := u.Families[:0]
	for _, id := range u.Families {
		if id != familyID {
			kept = append(kept, id)
		}
	}
	u.Families = kept
	if u.CurrentFamily == familyID {
		u.CurrentFamily = ""
	}
}

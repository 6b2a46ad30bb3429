package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"foxfamily/internal/invite"
	"foxfamily/internal/models"
	"foxfamily/internal/store"
	"foxfamily/internal/utils"
)

var (
	ErrFamilyNotFound  = errors.New("family not found")
	ErrNotMember       = errors.New("user is not a member of this family")
	ErrNotCreator      = errors.New("only the family creator may do this")
	ErrInvalidKey      = errors.New("invalid or expired invite key")
	ErrNicknameTaken   = errors.New("nickname already taken in this family")
	ErrFamilyFull      = errors.New("family is at the free member limit")
	ErrAlreadyMember   = errors.New("user is already a member of this family")
	ErrNoCurrentFamily = errors.New("no current family selected")
)

// FamilyService handles family membership and invite-key business logic.
// Every operation loads a fresh snapshot, mutates it in memory and saves
// it back whole; persistence failures propagate so callers never confirm
// state that was not actually saved.
type FamilyService struct {
	store store.Store
	log   *zap.Logger
}

// NewFamilyService creates a new family service
func NewFamilyService(st store.Store, logger *zap.Logger) *FamilyService {
	return &FamilyService{store: st, log: logger}
}

// CreateFamily creates a new family with the user as sole member under a
// placeholder nickname and returns the family plus its first invite key.
func (s *FamilyService) CreateFamily(userID int64) (*models.Family, *models.InviteKey, error) {
	snap, err := s.store.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	now := time.Now()
	key, err := invite.NewKey(now)
	if err != nil {
		return nil, nil, err
	}

	fam := &models.Family{
		ID:        uuid.New().String(),
		Name:      models.DefaultFamilyName,
		CreatorID: userID,
		CreatedAt: now,
		Members: map[int64]*models.Member{
			userID: {Nick: models.CreatorNick, JoinedAt: now},
		},
		ActiveKey:      key,
		Tasks:          map[string]*models.Task{},
		CompletedTasks: map[string]*models.Task{},
	}
	snap.Families[fam.ID] = fam

	user := snap.EnsureUser(userID)
	user.Families = append(user.Families, fam.ID)
	user.CurrentFamily = fam.ID

	if err := s.store.Save(snap); err != nil {
		return nil, nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	s.log.Info("family created",
		zap.String("family", fam.ID),
		zap.Int64("creator", userID))
	return fam, key, nil
}

// JoinCandidate is the outcome of the key-validation phase of a join.
type JoinCandidate struct {
	FamilyID   string
	FamilyName string
	// NearCap is set when the member count has crossed the warning
	// threshold; the join is still allowed.
	NearCap     bool
	MemberCount int
}

// FindFamilyByKey resolves an invite key to a family and enforces the
// membership cap. Expired keys encountered during the scan are cleared
// and the clearing is persisted even when no family matches.
func (s *FamilyService) FindFamilyByKey(userID int64, keyInput string) (*JoinCandidate, error) {
	snap, err := s.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	now := time.Now()
	var match *models.Family
	cleared := false
	for _, fam := range snap.Families {
		hadKey := fam.ActiveKey != nil
		if invite.Validate(keyInput, fam, now) {
			match = fam
			break
		}
		if hadKey && fam.ActiveKey == nil {
			cleared = true
		}
	}

	if cleared {
		if err := s.store.Save(snap); err != nil {
			return nil, fmt.Errorf("failed to save snapshot: %w", err)
		}
	}

	if match == nil {
		return nil, ErrInvalidKey
	}
	if _, member := match.Members[userID]; member {
		return nil, ErrAlreadyMember
	}
	if len(match.Members) >= models.MaxFreeMembers && !match.Subscription {
		return nil, ErrFamilyFull
	}

	return &JoinCandidate{
		FamilyID:    match.ID,
		FamilyName:  match.Name,
		NearCap:     len(match.Members) >= models.WarnMembersThreshold,
		MemberCount: len(match.Members),
	}, nil
}

// CompleteJoin adds the user to the family under the chosen nickname and
// rotates the invite key: a key is spent by its first successful use, so
// the next joiner needs a freshly generated one.
func (s *FamilyService) CompleteJoin(familyID string, userID int64, nick string) (*models.Family, error) {
	if err := utils.ValidateNickname(nick); err != nil {
		return nil, err
	}

	snap, err := s.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	fam, ok := snap.Families[familyID]
	if !ok {
		return nil, ErrFamilyNotFound
	}
	if _, member := fam.Members[userID]; member {
		return nil, ErrAlreadyMember
	}
	if fam.HasNick(nick) {
		return nil, ErrNicknameTaken
	}
	if len(fam.Members) >= models.MaxFreeMembers && !fam.Subscription {
		return nil, ErrFamilyFull
	}

	fam.Members[userID] = &models.Member{Nick: nick, JoinedAt: time.Now()}
	fam.ActiveKey = nil

	user := snap.EnsureUser(userID)
	if !user.InFamily(familyID) {
		user.Families = append(user.Families, familyID)
	}
	user.CurrentFamily = familyID

	if err := s.store.Save(snap); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	s.log.Info("member joined",
		zap.String("family", familyID),
		zap.Int64("user", userID),
		zap.Int("members", len(fam.Members)))
	return fam, nil
}

// RenameFamily changes the display name of the user's current family.
// Creator-only.
func (s *FamilyService) RenameFamily(userID int64, name string) (*models.Family, error) {
	if err := utils.ValidateFamilyName(name); err != nil {
		return nil, err
	}

	snap, fam, err := s.currentFamily(userID)
	if err != nil {
		return nil, err
	}
	if fam.CreatorID != userID {
		return nil, ErrNotCreator
	}

	fam.Name = name
	if err := s.store.Save(snap); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}
	return fam, nil
}

// RegenerateKey replaces the family's active invite key. Creator-only;
// any previous key stops working immediately.
func (s *FamilyService) RegenerateKey(userID int64) (*models.Family, *models.InviteKey, error) {
	snap, fam, err := s.currentFamily(userID)
	if err != nil {
		return nil, nil, err
	}
	if fam.CreatorID != userID {
		return nil, nil, ErrNotCreator
	}

	key, err := invite.NewKey(time.Now())
	if err != nil {
		return nil, nil, err
	}
	fam.ActiveKey = key

	if err := s.store.Save(snap); err != nil {
		return nil, nil, fmt.Errorf("failed to save snapshot: %w", err)
	}
	return fam, key, nil
}

// SwitchFamily changes the user's current family to one they belong to.
func (s *FamilyService) SwitchFamily(userID int64, familyID string) (*models.Family, error) {
	snap, err := s.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	fam, ok := snap.Families[familyID]
	if !ok {
		return nil, ErrFamilyNotFound
	}
	if _, member := fam.Members[userID]; !member {
		return nil, ErrNotMember
	}

	snap.EnsureUser(userID).CurrentFamily = familyID
	if err := s.store.Save(snap); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}
	return fam, nil
}

// LeaveResult describes the outcome of leaving a family.
type LeaveResult struct {
	FamilyID      string
	FamilyName    string
	Nick          string
	FamilyDeleted bool
}

// LeaveFamily removes the user from their current family. When the last
// member leaves, the family itself is deleted so no orphan group object
// persists.
func (s *FamilyService) LeaveFamily(userID int64) (*LeaveResult, error) {
	snap, fam, err := s.currentFamily(userID)
	if err != nil {
		return nil, err
	}

	res := &LeaveResult{
		FamilyID:   fam.ID,
		FamilyName: fam.Name,
		Nick:       fam.MemberNick(userID),
	}

	delete(fam.Members, userID)
	snap.EnsureUser(userID).RemoveFamily(fam.ID)

	if len(fam.Members) == 0 {
		delete(snap.Families, fam.ID)
		for _, rec := range snap.Users {
			rec.RemoveFamily(fam.ID)
		}
		res.FamilyDeleted = true
	}

	if err := s.store.Save(snap); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	s.log.Info("member left",
		zap.String("family", res.FamilyID),
		zap.Int64("user", userID),
		zap.Bool("family_deleted", res.FamilyDeleted))
	return res, nil
}

// DeleteResult describes a deleted family for follow-up notification.
type DeleteResult struct {
	FamilyID   string
	FamilyName string
	MemberIDs  []int64
}

// DeleteFamily removes the user's current family entirely. Creator-only;
// the family id is cascaded out of every member's membership index
// system-wide.
func (s *FamilyService) DeleteFamily(userID int64) (*DeleteResult, error) {
	snap, fam, err := s.currentFamily(userID)
	if err != nil {
		return nil, err
	}
	if fam.CreatorID != userID {
		return nil, ErrNotCreator
	}

	res := &DeleteResult{FamilyID: fam.ID, FamilyName: fam.Name}
	for memberID := range fam.Members {
		res.MemberIDs = append(res.MemberIDs, memberID)
	}

	delete(snap.Families, fam.ID)
	for _, rec := range snap.Users {
		rec.RemoveFamily(fam.ID)
	}

	if err := s.store.Save(snap); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	s.log.Info("family deleted",
		zap.String("family", res.FamilyID),
		zap.Int64("creator", userID),
		zap.Int("members", len(res.MemberIDs)))
	return res, nil
}

// SetEmail stores the user's notification mirror address.
func (s *FamilyService) SetEmail(userID int64, email string) error {
	if err := utils.ValidateEmail(email); err != nil {
		return err
	}
	snap, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	snap.EnsureUser(userID).Email = email
	if err := s.store.Save(snap); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// CurrentFamily returns the user's current family.
func (s *FamilyService) CurrentFamily(userID int64) (*models.Family, error) {
	_, fam, err := s.currentFamily(userID)
	return fam, err
}

// UserFamilies returns every family the user belongs to plus the current
// family id.
func (s *FamilyService) UserFamilies(userID int64) ([]*models.Family, string, error) {
	snap, err := s.store.Load()
	if err != nil {
		return nil, "", fmt.Errorf("failed to load snapshot: %w", err)
	}
	user, ok := snap.Users[userID]
	if !ok {
		return nil, "", nil
	}
	var fams []*models.Family
	for _, id := range user.Families {
		if fam, ok := snap.Families[id]; ok {
			fams = append(fams, fam)
		}
	}
	return fams, user.CurrentFamily, nil
}

// currentFamily loads a snapshot and resolves the user's current family,
// verifying membership.
func (s *FamilyService) currentFamily(userID int64) (*models.Snapshot, *models.Family, error) {
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
		// Stale pointer to a family deleted elsewhere.
		user.CurrentFamily = ""
		return nil, nil, ErrNoCurrentFamily
	}
	if _, member := fam.Members[userID]; !member {
		return nil, nil, ErrNotMember
	}
	return snap, fam, nil
}

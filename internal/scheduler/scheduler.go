// Package scheduler fires deadline reminders. Each task reminds at most
// once: the sent flag is persisted in the snapshot, so restarts do not
// repeat reminders.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"foxfamily/internal/notify"
	"foxfamily/internal/store"
)

// Scheduler scans open tasks on a fixed interval and notifies families
// whose task deadlines have entered the reminder window.
type Scheduler struct {
	store    store.Store
	notifier *notify.Notifier
	interval time.Duration
	log      *zap.Logger
}

// New creates a scheduler ticking at interval.
func New(st store.Store, notifier *notify.Notifier, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		store:    st,
		notifier: notifier,
		interval: interval,
		log:      logger,
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("reminder scheduler started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("reminder scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx, time.Now())
		}
	}
}

// tick performs one scan. The snapshot is loaded once, mutated in memory
// and saved once, and only when at least one reminder actually fired. A
// failed fan-out leaves the task unmarked so the next tick retries it.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	snap, err := s.store.Load()
	if err != nil {
		s.log.Error("reminder scan failed to load snapshot", zap.Error(err))
		return
	}

	changed := false
	for famID, fam := range snap.Families {
		for taskID, task := range fam.Tasks {
			if task.ReminderSent || task.Deadline == nil || task.ReminderSec <= 0 {
				continue
			}
			until := task.Deadline.Sub(now)
			lead := time.Duration(task.ReminderSec) * time.Second
			if until <= 0 || until > lead {
				continue
			}

			text := fmt.Sprintf("⏰ Reminder: \"%s\" is due %s",
				task.Description, task.Deadline.Format("02.01.2006 15:04"))
			if err := s.notifier.NotifyFamily(ctx, famID, text); err != nil {
				s.log.Warn("reminder delivery failed",
					zap.String("family", famID),
					zap.String("task", taskID),
					zap.Error(err))
				continue
			}

			task.ReminderSent = true
			changed = true
			s.log.Info("reminder sent",
				zap.String("family", famID),
				zap.String("task", taskID))
		}
	}

	if !changed {
		return
	}
	if err := s.store.Save(snap); err != nil {
		s.log.Error("failed to persist reminder flags", zap.Error(err))
	}
}

// Package notify delivers one logical message to every member of a family
// individually ("fan-out"), with a fixed delay between sends to respect
// the transport's outbound rate limits.
package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"foxfamily/internal/store"
	"foxfamily/internal/transport"
)

// Notifier fans a message out to family members. Membership is re-read
// from the store at call time, never from a pre-computed list, so members
// who joined or left since the caller loaded its snapshot are handled
// correctly.
type Notifier struct {
	store  store.Store
	sender transport.Sender
	email  *EmailSender
	delay  time.Duration
	log    *zap.Logger
}

// New creates a notifier. email may be nil when no mirror is configured.
func New(st store.Store, sender transport.Sender, email *EmailSender, delay time.Duration, logger *zap.Logger) *Notifier {
	return &Notifier{
		store:  st,
		sender: sender,
		email:  email,
		delay:  delay,
		log:    logger,
	}
}

// NotifyFamily delivers text to every current member of the family except
// those listed in exclude. A failed delivery to one recipient is logged
// and skipped; it never aborts delivery to the rest.
func (n *Notifier) NotifyFamily(ctx context.Context, familyID, text string, exclude ...int64) error {
	snap, err := n.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load snapshot for notification: %w", err)
	}
	fam, ok := snap.Families[familyID]
	if !ok {
		return fmt.Errorf("family %s not found", familyID)
	}

	skip := make(map[int64]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}

	first := true
	for memberID := range fam.Members {
		if skip[memberID] {
			continue
		}
		if !first {
			select {
			case <-time.After(n.delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		first = false

		if err := n.sender.Send(ctx, memberID, text, nil); err != nil {
			n.log.Warn("notification delivery failed",
				zap.Int64("member", memberID),
				zap.String("family", familyID),
				zap.Error(err))
			continue
		}

		if n.email != nil && n.email.IsEnabled() {
			if rec, ok := snap.Users[memberID]; ok && rec.Email != "" {
				if err := n.email.Send(ctx, rec.Email, fam.Name, text); err != nil {
					n.log.Warn("email mirror failed",
						zap.Int64("member", memberID),
						zap.Error(err))
				}
			}
		}
	}
	return nil
}

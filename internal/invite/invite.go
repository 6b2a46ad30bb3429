// Package invite generates and validates the time-limited secrets that
// grant join access to a family. A key is an opaque URL-safe random
// string; callers never parse it, only compare it.
package invite

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"foxfamily/internal/models"
)

const (
	// KeyLengthBytes of random material per key (384 bits of entropy).
	KeyLengthBytes = 48

	// TTL is the fixed lifetime of a key.
	TTL = 10 * time.Minute
)

// NewKey produces a fresh random invite key valid for TTL from now.
// Assigning it to a family replaces any previous key; at most one key is
// active per family at a time.
func NewKey(now time.Time) (*models.InviteKey, error) {
	raw := make([]byte, KeyLengthBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate invite key: %w", err)
	}
	return &models.InviteKey{
		Value:     base64.RawURLEncoding.EncodeToString(raw),
		CreatedAt: now,
		ExpiresAt: now.Add(TTL),
	}, nil
}

// Validate reports whether input matches the family's active key at the
// given time. An expired key is cleared from the family on detection (the
// caller is responsible for persisting that mutation) and treated exactly
// like an absent one. The comparison is constant-time.
func Validate(input string, fam *models.Family, now time.Time) bool {
	key := fam.ActiveKey
	if key == nil {
		return false
	}
	if key.IsExpired(now) {
		fam.ActiveKey = nil
		return false
	}
	trimmed := strings.TrimSpace(input)
	return subtle.ConstantTimeCompare([]byte(trimmed), []byte(key.Value)) == 1
}

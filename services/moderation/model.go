// Package moderation implements the ban lifecycle and audit trail.
package moderation

import (
	"time"

	"guardian-core/internal/player"
)

// ActionKind is the kind of moderation action recorded in history.
type ActionKind string

const (
	ActionBan     ActionKind = "BAN"
	ActionTempBan ActionKind = "TEMP_BAN"
	ActionUnban   ActionKind = "UNBAN"
)

// Ban is one ban record. Whether it is in effect is always computed
// from Active and ExpiresAt, never stored separately.
type Ban struct {
	ID        int64      `json:"id"`
	Player    player.Ref `json:"player"`
	Actor     string     `json:"actor"`
	Reason    string     `json:"reason"`
	BannedAt  time.Time  `json:"banned_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Active    bool       `json:"active"`
}

// Permanent reports whether the ban has no expiry.
func (b *Ban) Permanent() bool {
	return b.ExpiresAt == nil
}

// Expired reports whether the ban's expiry has passed.
func (b *Ban) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && now.After(*b.ExpiresAt)
}

// InEffect reports whether the ban currently applies.
func (b *Ban) InEffect(now time.Time) bool {
	return b.Active && !b.Expired(now)
}

// HistoryEntry is one immutable audit record. BanID is a weak
// back-reference for lookups only: history outlives the ban records it
// mentions.
type HistoryEntry struct {
	ID          int64      `json:"id"`
	Player      player.Ref `json:"player"`
	Action      ActionKind `json:"action"`
	Actor       string     `json:"actor"`
	Reason      string     `json:"reason,omitempty"`
	PerformedAt time.Time  `json:"performed_at"`
	BanID       *int64     `json:"ban_id,omitempty"`
}

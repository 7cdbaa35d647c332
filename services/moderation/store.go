package moderation

import (
	"context"

	"github.com/google/uuid"
)

// Store persists ban records and their audit history.
//
// Implementations assign IDs on create and must persist a ban together
// with its history entry as one unit: a reader must never observe a
// ban whose issuing history entry is missing. Callers serialize
// writes per player, so implementations only need to be safe for
// concurrent use across different players.
type Store interface {
	// ActiveBan returns the stored active-flagged ban for the player,
	// or (nil, nil) when there is none. Expiry is not evaluated here;
	// the service reconciles expired records on read.
	ActiveBan(ctx context.Context, playerID uuid.UUID) (*Ban, error)

	// CreateBan assigns IDs to ban and entry and persists both.
	CreateBan(ctx context.Context, ban *Ban, entry *HistoryEntry) error

	// UpdateBan rewrites an existing ban record. When entry is non-nil
	// it is assigned an ID and appended alongside; a nil entry is a
	// silent reconcile (lapsed expiry) that leaves history untouched.
	UpdateBan(ctx context.Context, ban *Ban, entry *HistoryEntry) error

	// History returns the player's audit trail, most recent first.
	// Entries with equal timestamps order by descending ID.
	History(ctx context.Context, playerID uuid.UUID) ([]HistoryEntry, error)

	// ActiveBans returns every stored active-flagged ban, for the
	// expiry sweep.
	ActiveBans(ctx context.Context) ([]Ban, error)
}

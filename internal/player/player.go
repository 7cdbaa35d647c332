// Package player provides the shared player identity types.
package player

import (
	"fmt"

	"github.com/google/uuid"
)

// Ref identifies a player on the network. ID is the stable 128-bit
// identifier; Name is a denormalized display name captured at the time
// the referencing record was written and may go stale.
type Ref struct {
	ID   uuid.UUID `json:"player_id"`
	Name string    `json:"player_name"`
}

// NewRef builds a Ref from an id string and display name.
func NewRef(id, name string) (Ref, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Ref{}, fmt.Errorf("invalid player id %q: %w", id, err)
	}
	return Ref{ID: parsed, Name: name}, nil
}

func (r Ref) String() string {
	if r.Name == "" {
		return r.ID.String()
	}
	return fmt.Sprintf("%s (%s)", r.Name, r.ID)
}

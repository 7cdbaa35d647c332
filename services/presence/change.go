// Package presence tracks live per-player session state for the
// network and feeds observers through the broadcaster.
package presence

import (
	"time"

	"guardian-core/internal/player"
)

// Stamp records when something happened and which client reported it.
type Stamp struct {
	At     time.Time `json:"at"`
	Client string    `json:"client"`
}

// Change is one observed session transition, produced by the
// session-lifecycle collaborator. It is consumed immediately and never
// retained beyond the broadcast it triggers.
type Change struct {
	Player     player.Ref `json:"player"`
	Online     bool       `json:"online"`
	Server     *string    `json:"server,omitempty"`
	Client     *string    `json:"client,omitempty"`
	LastActive time.Time  `json:"last_active"`
	Clients    []string   `json:"clients,omitempty"`
	LastJoin   *Stamp     `json:"last_join,omitempty"`
	LastLeave  *Stamp     `json:"last_leave,omitempty"`
}

// Entry is the authoritative presence record kept per player.
type Entry struct {
	Player     player.Ref `json:"player"`
	Online     bool       `json:"online"`
	Server     *string    `json:"server,omitempty"`
	Client     *string    `json:"client,omitempty"`
	LastActive time.Time  `json:"last_active"`
	Clients    []string   `json:"clients,omitempty"`
	LastJoin   *Stamp     `json:"last_join,omitempty"`
	LastLeave  *Stamp     `json:"last_leave,omitempty"`
}

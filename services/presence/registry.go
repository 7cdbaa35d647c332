package presence

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Registry holds the in-memory authoritative presence of every known
// player. It is deliberately not persisted: the upstream session
// stream can rebuild it after a restart, provided observers are told
// to refresh.
type Registry struct {
	mu      sync.RWMutex
	players map[uuid.UUID]*Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		players: make(map[uuid.UUID]*Entry),
	}
}

// ApplyChange folds one session transition into the registry and
// reports whether stored state actually changed. Identical timestamps
// are idempotent. A change older than the stored record still updates
// informational fields (display name, server, client) but leaves the
// session-derived state alone so late events cannot regress it.
func (r *Registry) ApplyChange(change Change) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.players[change.Player.ID]
	if !ok {
		entry := entryFromChange(change)
		r.players[change.Player.ID] = entry
		return true
	}

	if change.LastActive.Equal(current.LastActive) {
		return false
	}

	if change.LastActive.Before(current.LastActive) {
		changed := false
		if change.Player.Name != "" && change.Player.Name != current.Player.Name {
			current.Player.Name = change.Player.Name
			changed = true
		}
		if change.Server != nil && (current.Server == nil || *current.Server != *change.Server) {
			current.Server = change.Server
			changed = true
		}
		if change.Client != nil && (current.Client == nil || *current.Client != *change.Client) {
			current.Client = change.Client
			changed = true
		}
		return changed
	}

	*current = *entryFromChange(change)
	return true
}

func entryFromChange(change Change) *Entry {
	clients := make([]string, len(change.Clients))
	copy(clients, change.Clients)
	return &Entry{
		Player:     change.Player,
		Online:     change.Online,
		Server:     change.Server,
		Client:     change.Client,
		LastActive: change.LastActive,
		Clients:    clients,
		LastJoin:   change.LastJoin,
		LastLeave:  change.LastLeave,
	}
}

// Get returns a copy of one player's presence, or false when unknown.
func (r *Registry) Get(id uuid.UUID) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.players[id]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Snapshot returns a copy of every presence entry, ordered by player
// id for stable output. This is the authoritative state a refreshing
// dashboard re-fetches.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	entries := make([]Entry, 0, len(r.players))
	for _, entry := range r.players {
		entries = append(entries, *entry)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Player.ID.String() < entries[j].Player.ID.String()
	})
	return entries
}

// Online counts players currently marked online.
func (r *Registry) Online() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, entry := range r.players {
		if entry.Online {
			n++
		}
	}
	return n
}

package moderation

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used in tests and single-node
// deployments without object storage.
type MemoryStore struct {
	mutex         sync.RWMutex
	bans          map[int64]Ban
	activeByID    map[uuid.UUID]int64
	history       []HistoryEntry
	nextBanID     int64
	nextHistoryID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bans:          make(map[int64]Ban),
		activeByID:    make(map[uuid.UUID]int64),
		nextBanID:     1,
		nextHistoryID: 1,
	}
}

func (s *MemoryStore) ActiveBan(_ context.Context, playerID uuid.UUID) (*Ban, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	banID, ok := s.activeByID[playerID]
	if !ok {
		return nil, nil
	}
	ban := s.bans[banID]
	return &ban, nil
}

func (s *MemoryStore) CreateBan(_ context.Context, ban *Ban, entry *HistoryEntry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	ban.ID = s.nextBanID
	s.nextBanID++
	s.bans[ban.ID] = *ban
	if ban.Active {
		s.activeByID[ban.Player.ID] = ban.ID
	}

	entry.ID = s.nextHistoryID
	s.nextHistoryID++
	s.history = append(s.history, *entry)
	return nil
}

func (s *MemoryStore) UpdateBan(_ context.Context, ban *Ban, entry *HistoryEntry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.bans[ban.ID] = *ban
	if ban.Active {
		s.activeByID[ban.Player.ID] = ban.ID
	} else if s.activeByID[ban.Player.ID] == ban.ID {
		delete(s.activeByID, ban.Player.ID)
	}

	if entry != nil {
		entry.ID = s.nextHistoryID
		s.nextHistoryID++
		s.history = append(s.history, *entry)
	}
	return nil
}

func (s *MemoryStore) History(_ context.Context, playerID uuid.UUID) ([]HistoryEntry, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var entries []HistoryEntry
	for _, entry := range s.history {
		if entry.Player.ID == playerID {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].PerformedAt.Equal(entries[j].PerformedAt) {
			return entries[i].PerformedAt.After(entries[j].PerformedAt)
		}
		return entries[i].ID > entries[j].ID
	})
	return entries, nil
}

func (s *MemoryStore) ActiveBans(_ context.Context) ([]Ban, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	bans := make([]Ban, 0, len(s.activeByID))
	for _, banID := range s.activeByID {
		bans = append(bans, s.bans[banID])
	}
	sort.Slice(bans, func(i, j int) bool { return bans[i].ID < bans[j].ID })
	return bans, nil
}

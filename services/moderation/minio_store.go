package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"guardian-core/internal/minio"
)

// MinioStore persists bans as one JSON object per record.
//
// Layout inside the bucket:
//
//	bans/<player_id>/<ban_id>.json    permanent ban records
//	active/<player_id>.json           copy of the ban currently flagged active
//	history/<player_id>/<entry_id>.json
//	meta/counters.json                ID counters
//
// Writes are ordered so a crash can never leave a visible active ban
// without its audit entry: the history entry lands first, then the ban
// record, and the active pointer last.
type MinioStore struct {
	client minio.ClientInterface
	bucket string

	countersMutex sync.Mutex
	counters      *counters
}

type counters struct {
	NextBanID     int64 `json:"next_ban_id"`
	NextHistoryID int64 `json:"next_history_id"`
}

const countersKey = "meta/counters.json"

func NewMinioStore(client minio.ClientInterface, bucket string) *MinioStore {
	if bucket == "" {
		bucket = "guardian-moderation"
	}
	return &MinioStore{client: client, bucket: bucket}
}

func banKey(playerID uuid.UUID, banID int64) string {
	return fmt.Sprintf("bans/%s/%012d.json", playerID, banID)
}

func activeKey(playerID uuid.UUID) string {
	return fmt.Sprintf("active/%s.json", playerID)
}

func historyKey(playerID uuid.UUID, entryID int64) string {
	return fmt.Sprintf("history/%s/%012d.json", playerID, entryID)
}

func (s *MinioStore) putJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data))); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

func (s *MinioStore) getJSON(ctx context.Context, key string, v interface{}) error {
	data, err := s.client.GetObject(ctx, s.bucket, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

// allocateIDs reserves a ban ID and/or history ID. Counters are
// persisted before use so a crash skips IDs instead of reusing them.
func (s *MinioStore) allocateIDs(ctx context.Context, wantBan, wantHistory bool) (banID, historyID int64, err error) {
	s.countersMutex.Lock()
	defer s.countersMutex.Unlock()

	if s.counters == nil {
		loaded := &counters{NextBanID: 1, NextHistoryID: 1}
		if err := s.getJSON(ctx, countersKey, loaded); err != nil && !minio.IsNotExist(err) {
			return 0, 0, fmt.Errorf("failed to load counters: %w", err)
		}
		s.counters = loaded
	}

	if wantBan {
		banID = s.counters.NextBanID
		s.counters.NextBanID++
	}
	if wantHistory {
		historyID = s.counters.NextHistoryID
		s.counters.NextHistoryID++
	}
	if err := s.putJSON(ctx, countersKey, s.counters); err != nil {
		return 0, 0, err
	}
	return banID, historyID, nil
}

func (s *MinioStore) ActiveBan(ctx context.Context, playerID uuid.UUID) (*Ban, error) {
	var ban Ban
	if err := s.getJSON(ctx, activeKey(playerID), &ban); err != nil {
		if minio.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load active ban for %s: %w", playerID, err)
	}
	return &ban, nil
}

func (s *MinioStore) CreateBan(ctx context.Context, ban *Ban, entry *HistoryEntry) error {
	banID, historyID, err := s.allocateIDs(ctx, true, true)
	if err != nil {
		return err
	}
	ban.ID = banID
	entry.ID = historyID
	if entry.BanID != nil {
		entry.BanID = &ban.ID
	}

	if err := s.putJSON(ctx, historyKey(entry.Player.ID, entry.ID), entry); err != nil {
		return err
	}
	if err := s.putJSON(ctx, banKey(ban.Player.ID, ban.ID), ban); err != nil {
		return err
	}
	if ban.Active {
		return s.putJSON(ctx, activeKey(ban.Player.ID), ban)
	}
	return nil
}

func (s *MinioStore) UpdateBan(ctx context.Context, ban *Ban, entry *HistoryEntry) error {
	if entry != nil {
		_, historyID, err := s.allocateIDs(ctx, false, true)
		if err != nil {
			return err
		}
		entry.ID = historyID
		if err := s.putJSON(ctx, historyKey(entry.Player.ID, entry.ID), entry); err != nil {
			return err
		}
	}

	if err := s.putJSON(ctx, banKey(ban.Player.ID, ban.ID), ban); err != nil {
		return err
	}
	if ban.Active {
		return s.putJSON(ctx, activeKey(ban.Player.ID), ban)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, activeKey(ban.Player.ID)); err != nil && !minio.IsNotExist(err) {
		return fmt.Errorf("failed to clear active ban for %s: %w", ban.Player.ID, err)
	}
	return nil
}

func (s *MinioStore) History(ctx context.Context, playerID uuid.UUID) ([]HistoryEntry, error) {
	prefix := fmt.Sprintf("history/%s/", playerID)
	objects, err := s.client.ListObjects(ctx, s.bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list history for %s: %w", playerID, err)
	}

	var entries []HistoryEntry
	for _, object := range objects {
		var entry HistoryEntry
		if err := s.getJSON(ctx, object.Key, &entry); err != nil {
			return nil, fmt.Errorf("failed to load history entry %s: %w", object.Key, err)
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].PerformedAt.Equal(entries[j].PerformedAt) {
			return entries[i].PerformedAt.After(entries[j].PerformedAt)
		}
		return entries[i].ID > entries[j].ID
	})
	return entries, nil
}

func (s *MinioStore) ActiveBans(ctx context.Context) ([]Ban, error) {
	objects, err := s.client.ListObjects(ctx, s.bucket, "active/")
	if err != nil {
		return nil, fmt.Errorf("failed to list active bans: %w", err)
	}

	var bans []Ban
	for _, object := range objects {
		var ban Ban
		if err := s.getJSON(ctx, object.Key, &ban); err != nil {
			if minio.IsNotExist(err) {
				continue // revoked between list and read
			}
			return nil, fmt.Errorf("failed to load active ban %s: %w", object.Key, err)
		}
		bans = append(bans, ban)
	}
	sort.Slice(bans, func(i, j int) bool { return bans[i].ID < bans[j].ID })
	return bans, nil
}

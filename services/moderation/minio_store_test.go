package moderation

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardian-core/internal/minio"
	"guardian-core/internal/player"
)

// fakeObjectStore is an in-memory stand-in for the MinIO client.
type fakeObjectStore struct {
	mutex   sync.Mutex
	objects map[string][]byte
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) key(bucket, object string) string {
	return bucket + "/" + object
}

func (f *fakeObjectStore) PutObject(_ context.Context, bucket, object string, data io.Reader, _ int64) error {
	content, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.objects[f.key(bucket, object)] = content
	return nil
}

func (f *fakeObjectStore) GetObject(_ context.Context, bucket, object string) ([]byte, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	content, ok := f.objects[f.key(bucket, object)]
	if !ok {
		return nil, miniogo.ErrorResponse{Code: "NoSuchKey", Key: object}
	}
	return bytes.Clone(content), nil
}

func (f *fakeObjectStore) ListObjects(_ context.Context, bucket, prefix string) ([]minio.ObjectInfo, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	var objects []minio.ObjectInfo
	for key, content := range f.objects {
		if strings.HasPrefix(key, f.key(bucket, prefix)) {
			objects = append(objects, minio.ObjectInfo{
				Key:  strings.TrimPrefix(key, bucket+"/"),
				Size: int64(len(content)),
			})
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (f *fakeObjectStore) RemoveObject(_ context.Context, bucket, object string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	delete(f.objects, f.key(bucket, object))
	return nil
}

func TestMinioStoreBanLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMinioStore(newFakeObjectStore(), "test-moderation")
	subject := player.Ref{ID: uuid.New(), Name: "alex"}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// No ban yet.
	ban, err := store.ActiveBan(ctx, subject.ID)
	require.NoError(t, err)
	assert.Nil(t, ban)

	created := &Ban{Player: subject, Actor: "admin", Reason: "spam", BannedAt: now, Active: true}
	entry := &HistoryEntry{Player: subject, Action: ActionBan, Actor: "admin", Reason: "spam", PerformedAt: now}
	entry.BanID = &created.ID
	require.NoError(t, store.CreateBan(ctx, created, entry))
	assert.NotZero(t, created.ID)
	assert.NotZero(t, entry.ID)

	ban, err = store.ActiveBan(ctx, subject.ID)
	require.NoError(t, err)
	require.NotNil(t, ban)
	assert.Equal(t, created.ID, ban.ID)
	assert.Equal(t, "spam", ban.Reason)

	listed, err := store.ActiveBans(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)

	// Deactivate with an UNBAN entry.
	created.Active = false
	unban := &HistoryEntry{Player: subject, Action: ActionUnban, Actor: "admin2", PerformedAt: now.Add(time.Hour), BanID: &created.ID}
	require.NoError(t, store.UpdateBan(ctx, created, unban))

	ban, err = store.ActiveBan(ctx, subject.ID)
	require.NoError(t, err)
	assert.Nil(t, ban)

	listed, err = store.ActiveBans(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)

	entries, err := store.History(ctx, subject.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ActionUnban, entries[0].Action)
	assert.Equal(t, ActionBan, entries[1].Action)
}

func TestMinioStoreIDsSurviveReload(t *testing.T) {
	ctx := context.Background()
	backing := newFakeObjectStore()
	subject := player.Ref{ID: uuid.New(), Name: "alex"}
	now := time.Now().UTC()

	first := NewMinioStore(backing, "test-moderation")
	ban := &Ban{Player: subject, Actor: "admin", Reason: "spam", BannedAt: now, Active: true}
	require.NoError(t, first.CreateBan(ctx, ban, &HistoryEntry{Player: subject, Action: ActionBan, Actor: "admin", PerformedAt: now}))

	// A fresh store over the same bucket continues the sequence.
	second := NewMinioStore(backing, "test-moderation")
	other := player.Ref{ID: uuid.New(), Name: "kim"}
	next := &Ban{Player: other, Actor: "admin", Reason: "spam", BannedAt: now, Active: true}
	require.NoError(t, second.CreateBan(ctx, next, &HistoryEntry{Player: other, Action: ActionBan, Actor: "admin", PerformedAt: now}))

	assert.Greater(t, next.ID, ban.ID)
}

func TestMinioStoreHistoryOrdersByTimeThenID(t *testing.T) {
	ctx := context.Background()
	store := NewMinioStore(newFakeObjectStore(), "test-moderation")
	subject := player.Ref{ID: uuid.New(), Name: "alex"}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ban := &Ban{Player: subject, Actor: "a", BannedAt: now, Active: true}
	require.NoError(t, store.CreateBan(ctx, ban, &HistoryEntry{Player: subject, Action: ActionBan, Actor: "a", PerformedAt: now}))

	// Same timestamp: higher ID first.
	ban.Active = false
	require.NoError(t, store.UpdateBan(ctx, ban, &HistoryEntry{Player: subject, Action: ActionUnban, Actor: "b", PerformedAt: now}))

	entries, err := store.History(ctx, subject.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ActionUnban, entries[0].Action)
	assert.Greater(t, entries[0].ID, entries[1].ID)
}

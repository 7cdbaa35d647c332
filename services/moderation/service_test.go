package moderation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardian-core/internal/eventbus"
	"guardian-core/internal/player"
)

type capturingPublisher struct {
	mutex  sync.Mutex
	events []eventbus.Event
}

func (p *capturingPublisher) PublishModerationEvent(_ context.Context, event eventbus.Event) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) types() []string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	var types []string
	for _, event := range p.events {
		types = append(types, event.EventType)
	}
	return types
}

func testPlayer() player.Ref {
	return player.Ref{ID: uuid.New(), Name: "steve"}
}

func newTestService(bus EventPublisher) *Service {
	return NewService(NewMemoryStore(), bus)
}

func TestIssueBanRecordsHistory(t *testing.T) {
	ctx := context.Background()
	bus := &capturingPublisher{}
	service := newTestService(bus)
	subject := testPlayer()

	ban, err := service.IssueBan(ctx, subject, "admin", "griefing", nil)
	require.NoError(t, err)
	assert.True(t, ban.Active)
	assert.True(t, ban.Permanent())
	assert.NotZero(t, ban.ID)

	entries, err := service.History(ctx, subject.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ActionBan, entries[0].Action)
	assert.Equal(t, "admin", entries[0].Actor)
	assert.Equal(t, "griefing", entries[0].Reason)
	require.NotNil(t, entries[0].BanID)
	assert.Equal(t, ban.ID, *entries[0].BanID)

	assert.Equal(t, []string{eventbus.EventBanIssued}, bus.types())
}

func TestIssueBanConflictsWithActiveBan(t *testing.T) {
	ctx := context.Background()
	service := newTestService(nil)
	subject := testPlayer()

	_, err := service.IssueBan(ctx, subject, "admin1", "cheating", nil)
	require.NoError(t, err)

	_, err = service.IssueBan(ctx, subject, "admin2", "spam", nil)
	assert.ErrorIs(t, err, ErrAlreadyBanned)

	// Rejected attempt leaves no trace in history.
	entries, err := service.History(ctx, subject.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestConcurrentIssueOneWins(t *testing.T) {
	ctx := context.Background()
	service := newTestService(nil)
	subject := testPlayer()

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.IssueBan(ctx, subject, "admin", "race", nil)
		}(i)
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorIs(t, err, ErrAlreadyBanned):
			conflicted++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, conflicted)

	entries, err := service.History(ctx, subject.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRevokeBanAppendsUnban(t *testing.T) {
	ctx := context.Background()
	bus := &capturingPublisher{}
	service := newTestService(bus)
	subject := testPlayer()

	ban, err := service.IssueBan(ctx, subject, "admin1", "cheating", nil)
	require.NoError(t, err)

	require.NoError(t, service.RevokeBan(ctx, subject.ID, "admin2", "appeal granted"))

	active, err := service.ActiveBan(ctx, subject.ID)
	require.NoError(t, err)
	assert.Nil(t, active)

	entries, err := service.History(ctx, subject.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ActionUnban, entries[0].Action)
	assert.Equal(t, "admin2", entries[0].Actor)
	assert.Equal(t, "appeal granted", entries[0].Reason)
	require.NotNil(t, entries[0].BanID)
	assert.Equal(t, ban.ID, *entries[0].BanID)
	assert.Equal(t, ActionBan, entries[1].Action)

	assert.Equal(t, []string{eventbus.EventBanIssued, eventbus.EventBanRevoked}, bus.types())
}

func TestRevokeWithoutActiveBan(t *testing.T) {
	ctx := context.Background()
	service := newTestService(nil)
	subject := testPlayer()

	err := service.RevokeBan(ctx, subject.ID, "admin", "")
	assert.ErrorIs(t, err, ErrNoActiveBan)

	// A second revoke after a successful one fails the same way.
	_, err = service.IssueBan(ctx, subject, "admin", "spam", nil)
	require.NoError(t, err)
	require.NoError(t, service.RevokeBan(ctx, subject.ID, "admin", ""))
	err = service.RevokeBan(ctx, subject.ID, "admin", "")
	assert.ErrorIs(t, err, ErrNoActiveBan)
}

func TestTemporaryBanLapsesWithoutHistoryEntry(t *testing.T) {
	ctx := context.Background()
	bus := &capturingPublisher{}
	service := newTestService(bus)
	subject := testPlayer()

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return current }

	expiresAt := current.Add(time.Hour)
	_, err := service.IssueBan(ctx, subject, "admin", "spam", &expiresAt)
	require.NoError(t, err)

	// Still inside the window.
	active, err := service.ActiveBan(ctx, subject.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, ActionTempBan, mustFirstAction(t, service, subject.ID))

	// Past the window: the ban lapses on read, without an UNBAN entry.
	current = current.Add(2 * time.Hour)
	active, err = service.ActiveBan(ctx, subject.ID)
	require.NoError(t, err)
	assert.Nil(t, active)

	entries, err := service.History(ctx, subject.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ActionTempBan, entries[0].Action)

	// Stored record was reconciled, so a new ban is accepted.
	_, err = service.IssueBan(ctx, subject, "admin", "again", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		eventbus.EventBanIssued,
		eventbus.EventBanExpired,
		eventbus.EventBanIssued,
	}, bus.types())
}

func mustFirstAction(t *testing.T, service *Service, playerID uuid.UUID) ActionKind {
	t.Helper()
	entries, err := service.History(context.Background(), playerID)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	return entries[0].Action
}

func TestExpiryMustFollowIssuance(t *testing.T) {
	ctx := context.Background()
	service := newTestService(nil)
	subject := testPlayer()

	past := time.Now().UTC().Add(-time.Minute)
	_, err := service.IssueBan(ctx, subject, "admin", "spam", &past)
	assert.ErrorIs(t, err, ErrInvalidExpiry)

	entries, err := service.History(ctx, subject.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRevokeExpiredBanNotFound(t *testing.T) {
	ctx := context.Background()
	service := newTestService(nil)
	subject := testPlayer()

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return current }

	expiresAt := current.Add(time.Minute)
	_, err := service.IssueBan(ctx, subject, "admin", "spam", &expiresAt)
	require.NoError(t, err)

	current = current.Add(time.Hour)
	err = service.RevokeBan(ctx, subject.ID, "admin", "")
	assert.ErrorIs(t, err, ErrNoActiveBan)
}

func TestSweepReconcilesExpiredBans(t *testing.T) {
	ctx := context.Background()
	bus := &capturingPublisher{}
	store := NewMemoryStore()
	service := NewService(store, bus)

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return current }

	lapsing := testPlayer()
	staying := testPlayer()
	expiresAt := current.Add(time.Minute)
	_, err := service.IssueBan(ctx, lapsing, "admin", "spam", &expiresAt)
	require.NoError(t, err)
	_, err = service.IssueBan(ctx, staying, "admin", "cheating", nil)
	require.NoError(t, err)

	current = current.Add(time.Hour)
	service.sweepOnce(ctx)

	remaining, err := store.ActiveBans(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, staying.ID, remaining[0].Player.ID)

	assert.Contains(t, bus.types(), eventbus.EventBanExpired)
}

func TestHistoryUnknownPlayerEmpty(t *testing.T) {
	service := newTestService(nil)

	entries, err := service.History(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

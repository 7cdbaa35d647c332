package moderation

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"guardian-core/internal/eventbus"
	"guardian-core/internal/player"
)

const (
	sourceName   = "moderation"
	cacheTTL     = 30 * time.Second
	publishWait  = 5 * time.Second
	lockShards   = 64
)

// EventPublisher is the slice of the event bus the service needs.
// Publication is best effort: a broker outage never fails a ban.
type EventPublisher interface {
	PublishModerationEvent(ctx context.Context, event eventbus.Event) error
}

// Service enforces the ban lifecycle: at most one ban in effect per
// player, every state change recorded in history, expiry applied
// lazily on read and by a background sweep.
type Service struct {
	store Store
	bus   EventPublisher
	cache *banCache
	locks [lockShards]sync.Mutex
	now   func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewService creates a moderation service. bus may be nil.
func NewService(store Store, bus EventPublisher) *Service {
	return &Service{
		store:  store,
		bus:    bus,
		cache:  newBanCache(cacheTTL),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

// lockFor returns the shard lock serializing writes for one player.
func (s *Service) lockFor(playerID uuid.UUID) *sync.Mutex {
	h := fnv.New32a()
	h.Write(playerID[:])
	return &s.locks[h.Sum32()%lockShards]
}

// IssueBan bans a player. expiresAt nil means permanent. Returns
// ErrAlreadyBanned when a ban is already in effect, ErrInvalidExpiry
// when expiresAt is not after now.
func (s *Service) IssueBan(ctx context.Context, p player.Ref, actor, reason string, expiresAt *time.Time) (*Ban, error) {
	now := s.now().UTC()
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, ErrInvalidExpiry
	}

	mu := s.lockFor(p.ID)
	mu.Lock()
	defer mu.Unlock()

	current, err := s.activeLocked(ctx, p.ID, now)
	if err != nil {
		return nil, err
	}
	if current != nil {
		return nil, ErrAlreadyBanned
	}

	ban := &Ban{
		Player:    p,
		Actor:     actor,
		Reason:    reason,
		BannedAt:  now,
		ExpiresAt: expiresAt,
		Active:    true,
	}
	action := ActionBan
	if expiresAt != nil {
		action = ActionTempBan
	}
	entry := &HistoryEntry{
		Player:      p,
		Action:      action,
		Actor:       actor,
		Reason:      reason,
		PerformedAt: now,
		BanID:       &ban.ID,
	}
	if err := s.store.CreateBan(ctx, ban, entry); err != nil {
		return nil, fmt.Errorf("failed to create ban for %s: %w", p.ID, err)
	}

	s.cache.Set(p.ID, *ban)
	s.publish(eventbus.EventBanIssued, ban, actor, reason)
	return ban, nil
}

// RevokeBan lifts the player's ban in effect. Returns ErrNoActiveBan
// when there is none, including when the only candidate has already
// lapsed.
func (s *Service) RevokeBan(ctx context.Context, playerID uuid.UUID, actor, reason string) error {
	now := s.now().UTC()

	mu := s.lockFor(playerID)
	mu.Lock()
	defer mu.Unlock()

	ban, err := s.activeLocked(ctx, playerID, now)
	if err != nil {
		return err
	}
	if ban == nil {
		return ErrNoActiveBan
	}

	ban.Active = false
	entry := &HistoryEntry{
		Player:      ban.Player,
		Action:      ActionUnban,
		Actor:       actor,
		Reason:      reason,
		PerformedAt: now,
		BanID:       &ban.ID,
	}
	if err := s.store.UpdateBan(ctx, ban, entry); err != nil {
		return fmt.Errorf("failed to revoke ban for %s: %w", playerID, err)
	}

	s.cache.Delete(playerID)
	s.publish(eventbus.EventBanRevoked, ban, actor, reason)
	return nil
}

// ActiveBan returns the ban in effect for the player, or (nil, nil)
// when there is none. A stored ban whose expiry has lapsed is
// reconciled here and reported as absent.
func (s *Service) ActiveBan(ctx context.Context, playerID uuid.UUID) (*Ban, error) {
	now := s.now().UTC()
	if ban, ok := s.cache.Get(playerID); ok && ban.InEffect(now) {
		return &ban, nil
	}

	mu := s.lockFor(playerID)
	mu.Lock()
	defer mu.Unlock()

	return s.activeLocked(ctx, playerID, now)
}

// activeLocked reads the stored ban and applies lazy expiry. Caller
// holds the player's shard lock.
func (s *Service) activeLocked(ctx context.Context, playerID uuid.UUID, now time.Time) (*Ban, error) {
	ban, err := s.store.ActiveBan(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active ban for %s: %w", playerID, err)
	}
	if ban == nil {
		return nil, nil
	}
	if ban.Expired(now) {
		// Lapsed on its own: clear the flag without a history entry,
		// the original TEMP_BAN record already carries the expiry.
		ban.Active = false
		if err := s.store.UpdateBan(ctx, ban, nil); err != nil {
			return nil, fmt.Errorf("failed to reconcile expired ban for %s: %w", playerID, err)
		}
		s.cache.Delete(playerID)
		s.publish(eventbus.EventBanExpired, ban, "", "")
		return nil, nil
	}
	s.cache.Set(playerID, *ban)
	return ban, nil
}

// History returns the player's full audit trail, most recent first.
// An unknown player yields an empty trail, not an error.
func (s *Service) History(ctx context.Context, playerID uuid.UUID) ([]HistoryEntry, error) {
	entries, err := s.store.History(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", playerID, err)
	}
	return entries, nil
}

// Start launches the background expiry sweep.
func (s *Service) Start(interval time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sweepLoop(interval)
	}()
}

// Stop terminates the background sweep and waits for it.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *Service) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Printf("Expiry sweep running every %v", interval)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			s.sweepOnce(ctx)
			cancel()
		}
	}
}

// sweepOnce reconciles every stored ban whose expiry has lapsed, so
// players nobody asks about do not stay flagged forever.
func (s *Service) sweepOnce(ctx context.Context) {
	bans, err := s.store.ActiveBans(ctx)
	if err != nil {
		log.Printf("Expiry sweep: failed to list active bans: %v", err)
		return
	}

	now := s.now().UTC()
	for _, ban := range bans {
		if !ban.Expired(now) {
			continue
		}
		mu := s.lockFor(ban.Player.ID)
		mu.Lock()
		// Re-read under the lock; the ban may have been revoked since.
		if _, err := s.activeLocked(ctx, ban.Player.ID, now); err != nil {
			log.Printf("Expiry sweep: failed to reconcile ban for %s: %v", ban.Player.ID, err)
		}
		mu.Unlock()
	}
}

// publish emits a moderation event, best effort.
func (s *Service) publish(eventType string, ban *Ban, actor, reason string) {
	if s.bus == nil {
		return
	}
	payload := map[string]interface{}{
		"ban_id":      ban.ID,
		"player_name": ban.Player.Name,
		"reason":      ban.Reason,
	}
	if actor != "" {
		payload["actor"] = actor
	}
	if reason != "" {
		payload["reason"] = reason
	}
	if ban.ExpiresAt != nil {
		payload["expires_at"] = ban.ExpiresAt.UTC().Format(time.RFC3339)
	}

	event := eventbus.NewEvent(eventType, sourceName, ban.Player.ID.String(), payload)
	ctx, cancel := context.WithTimeout(context.Background(), publishWait)
	defer cancel()
	if err := s.bus.PublishModerationEvent(ctx, event); err != nil {
		log.Printf("Warning: Failed to publish %s for %s: %v", eventType, ban.Player.ID, err)
	}
}

// Package config manages delivery profiles stored in MinIO.
package config

import (
	"context"
	"fmt"
	"log"
	"path"
	"sync"
	"time"

	"guardian-core/internal/minio"

	"gopkg.in/yaml.v3"
)

// Profile tunes event delivery for a broadcast channel.
type Profile struct {
	// QueueCapacity bounds the per-subscriber delivery queue.
	QueueCapacity int `yaml:"queue_capacity,omitempty" json:"queue_capacity,omitempty"`
	// RefreshOnSubscribe makes the gateway open every new subscription
	// with a refresh signal.
	RefreshOnSubscribe bool `yaml:"refresh_on_subscribe,omitempty" json:"refresh_on_subscribe,omitempty"`
	// SweepIntervalMs is the ban expiry sweep interval in milliseconds.
	SweepIntervalMs int `yaml:"sweep_interval_ms,omitempty" json:"sweep_interval_ms,omitempty"`
}

// DefaultProfile is used when no profile object exists in storage.
var DefaultProfile = Profile{
	QueueCapacity:      256,
	RefreshOnSubscribe: true,
	SweepIntervalMs:    60000,
}

// Store reads channel delivery profiles from MinIO with caching.
type Store struct {
	minioClient minio.ClientInterface
	cache       map[string]*Profile
	cacheLock   sync.RWMutex
	bucket      string
}

// NewStore creates a profile store backed by the given bucket.
func NewStore(minioClient minio.ClientInterface, bucket string) *Store {
	store := &Store{
		minioClient: minioClient,
		cache:       make(map[string]*Profile),
		bucket:      bucket,
	}
	go store.backgroundRefresh()
	return store
}

// GetProfile returns the delivery profile for a channel: the base
// profile merged with the channel override, cached until the next
// refresh. A missing base falls back to DefaultProfile.
func (s *Store) GetProfile(ctx context.Context, channel string) (*Profile, error) {
	s.cacheLock.RLock()
	if p, ok := s.cache[channel]; ok {
		s.cacheLock.RUnlock()
		return p, nil
	}
	s.cacheLock.RUnlock()

	base, err := s.loadProfile(ctx, path.Join("delivery-profiles", "base.yaml"))
	if err != nil {
		return nil, err
	}
	if base == nil {
		def := DefaultProfile
		base = &def
	}

	override, err := s.loadProfile(ctx, path.Join("delivery-overrides", channel+".yaml"))
	if err != nil {
		return nil, err
	}

	merged := MergeProfiles(base, override)

	s.cacheLock.Lock()
	s.cache[channel] = merged
	s.cacheLock.Unlock()

	return merged, nil
}

// loadProfile reads a YAML profile object; nil, nil when the object is
// absent.
func (s *Store) loadProfile(ctx context.Context, key string) (*Profile, error) {
	data, err := s.minioClient.GetObject(ctx, s.bucket, key)
	if err != nil {
		return nil, nil // no object
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("invalid YAML at %s: %w", key, err)
	}
	return &profile, nil
}

// backgroundRefresh drops the cache periodically so profile edits in
// storage take effect without a restart.
func (s *Store) backgroundRefresh() {
	ticker := time.NewTicker(120 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		s.cacheLock.Lock()
		s.cache = make(map[string]*Profile)
		s.cacheLock.Unlock()
		log.Println("Delivery profile cache refreshed")
	}
}

// MergeProfiles overlays an override on a base profile. Only fields the
// override actually sets replace the base values.
func MergeProfiles(base, override *Profile) *Profile {
	if override == nil {
		copied := *base
		return &copied
	}
	result := *base

	if override.QueueCapacity != 0 {
		result.QueueCapacity = override.QueueCapacity
	}
	if override.SweepIntervalMs != 0 {
		result.SweepIntervalMs = override.SweepIntervalMs
	}
	result.RefreshOnSubscribe = override.RefreshOnSubscribe || result.RefreshOnSubscribe

	return &result
}

// SweepInterval converts SweepIntervalMs to a duration.
func (p *Profile) SweepInterval() time.Duration {
	if p.SweepIntervalMs <= 0 {
		return time.Duration(DefaultProfile.SweepIntervalMs) * time.Millisecond
	}
	return time.Duration(p.SweepIntervalMs) * time.Millisecond
}

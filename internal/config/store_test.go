package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMergeProfilesNilOverride(t *testing.T) {
	base := &Profile{QueueCapacity: 64, RefreshOnSubscribe: true, SweepIntervalMs: 5000}

	merged := MergeProfiles(base, nil)

	assert.Equal(t, base, merged)
	assert.NotSame(t, base, merged)
}

func TestMergeProfilesOverrideWins(t *testing.T) {
	base := &Profile{QueueCapacity: 64, SweepIntervalMs: 5000}
	override := &Profile{QueueCapacity: 8}

	merged := MergeProfiles(base, override)

	assert.Equal(t, 8, merged.QueueCapacity)
	assert.Equal(t, 5000, merged.SweepIntervalMs)
}

func TestMergeProfilesRefreshFlagSticks(t *testing.T) {
	base := &Profile{RefreshOnSubscribe: true}
	merged := MergeProfiles(base, &Profile{})
	assert.True(t, merged.RefreshOnSubscribe)
}

func TestSweepIntervalFallsBackToDefault(t *testing.T) {
	p := &Profile{}
	assert.Equal(t, time.Duration(DefaultProfile.SweepIntervalMs)*time.Millisecond, p.SweepInterval())

	p = &Profile{SweepIntervalMs: 1500}
	assert.Equal(t, 1500*time.Millisecond, p.SweepInterval())
}

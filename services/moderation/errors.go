package moderation

import "errors"

var (
	// ErrAlreadyBanned is returned when a ban is issued for a player
	// that already has one in effect.
	ErrAlreadyBanned = errors.New("player already has an active ban")

	// ErrNoActiveBan is returned when a revoke or lookup targets a
	// player with no ban in effect.
	ErrNoActiveBan = errors.New("player has no active ban")

	// ErrInvalidExpiry is returned when a temporary ban would expire
	// at or before the moment it is issued.
	ErrInvalidExpiry = errors.New("ban expiry must be after issuance")
)

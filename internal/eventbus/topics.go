package eventbus

const (
	TopicSessionEvents    = "session_events"
	TopicModerationEvents = "moderation_events"
	TopicSystemEvents     = "system_events"
)

const (
	TypeSession    = "session."
	TypeModeration = "moderation."
	TypeSystem     = "system."
)

const (
	EventSessionJoin   = "session.join"
	EventSessionLeave  = "session.leave"
	EventSessionSwitch = "session.switch"

	EventBanIssued  = "moderation.ban_issued"
	EventBanRevoked = "moderation.ban_revoked"
	EventBanExpired = "moderation.ban_expired"
)

package eventbus

import (
	"time"

	"github.com/google/uuid"
)

type Event struct {
	EventID   string                 `json:"event_id"`
	EventType string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	PlayerID  string                 `json:"player_id,omitempty"`
	Payload   map[string]interface{} `json:"payload"`
}

func NewEvent(eventType, source, playerID string, payload map[string]interface{}) Event {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	return Event{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Source:    source,
		PlayerID:  playerID,
		Payload:   payload,
	}
}

// partitionKey keeps events for one player on one partition so their
// relative order survives the broker.
func (e Event) partitionKey() []byte {
	if e.PlayerID != "" {
		return []byte(e.PlayerID)
	}
	return []byte(e.Source)
}

package gateway

// sessionEventSchema is the contract for inbound session lifecycle
// events. Events that fail it are logged and dropped; presence state
// must never be built from malformed input.
const sessionEventSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "SessionEvent",
  "type": "object",
  "required": ["event_id", "event_type", "timestamp", "source", "player_id", "payload"],
  "properties": {
    "event_id": {
      "type": "string",
      "format": "event_id"
    },
    "event_type": {
      "type": "string",
      "enum": ["session.join", "session.leave", "session.switch"]
    },
    "timestamp": {
      "type": "string",
      "format": "date-time"
    },
    "source": {
      "type": "string",
      "minLength": 1
    },
    "player_id": {
      "type": "string",
      "format": "player_id"
    },
    "payload": {
      "type": "object",
      "required": ["player_name"],
      "properties": {
        "player_name": {
          "type": "string",
          "minLength": 1
        },
        "server": {
          "type": "string"
        },
        "client": {
          "type": "string"
        },
        "clients": {
          "type": "array",
          "items": {"type": "string"}
        }
      }
    }
  }
}`

// Package schema defines custom JSON Schema formats for guardian events.
package schema

import (
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

// eventIDFormatChecker implements gojsonschema.FormatChecker for event_id.
type eventIDFormatChecker struct{}

// IsFormat validates that the input is a valid UUID.
func (c eventIDFormatChecker) IsFormat(input interface{}) bool {
	if s, ok := input.(string); ok {
		_, err := uuid.Parse(s)
		return err == nil
	}
	return false
}

// playerIDFormatChecker implements gojsonschema.FormatChecker for player_id.
type playerIDFormatChecker struct{}

// IsFormat validates that the input is a valid player UUID.
func (c playerIDFormatChecker) IsFormat(input interface{}) bool {
	if s, ok := input.(string); ok {
		_, err := uuid.Parse(s)
		return err == nil
	}
	return false
}

// RegisterCustomFormats registers the event_id and player_id formats.
func RegisterCustomFormats() {
	gojsonschema.FormatCheckers.Add("event_id", eventIDFormatChecker{})
	gojsonschema.FormatCheckers.Add("player_id", playerIDFormatChecker{})
}

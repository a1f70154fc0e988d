package bridge

import (
	"encoding/json"
	"time"
)

// HapticAlertCommand builds the visitor-alert write command that makes the
// wearable vibrate and display a message.
func HapticAlertCommand(title, message string, context map[string]any, at time.Time) ([]byte, error) {
	if context == nil {
		context = map[string]any{}
	}
	return json.Marshal(map[string]any{
		"type":      "visitor_alert",
		"title":     title,
		"message":   message,
		"context":   context,
		"timestamp": at.UTC().Format(time.RFC3339Nano),
	})
}

// Package stream encodes bus events into the wire frames shared by the SSE,
// WebSocket and long-poll transports. Each frame is a discrete,
// independently parseable JSON object.
package stream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ticketloop/event-stream-service/internal/domain/event"
)

const (
	TypeEvent     = "event"
	TypeHeartbeat = "heartbeat"
)

// Frame is the client-facing message shape.
type Frame struct {
	Type      string         `json:"type"`
	ScopeID   string         `json:"scope_id,omitempty"`
	Channel   string         `json:"channel,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// MarshalEvent encodes one domain event. Timestamps go out as ISO-8601.
func MarshalEvent(ev event.Event) ([]byte, error) {
	data, err := json.Marshal(Frame{
		Type:      TypeEvent,
		ScopeID:   ev.ScopeID,
		Channel:   string(ev.Channel),
		Payload:   ev.Payload,
		Timestamp: ev.Timestamp.Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal stream frame: %w", err)
	}
	return data, nil
}

// MarshalHeartbeat encodes the synthetic keep-alive frame. It carries no
// scope binding and cannot fail.
func MarshalHeartbeat(t time.Time) []byte {
	data, _ := json.Marshal(Frame{
		Type:      TypeHeartbeat,
		Timestamp: t.UTC().Format(time.RFC3339),
	})
	return data
}

package bus

import (
	"encoding/json"
	"time"

	"github.com/ticketloop/event-stream-service/internal/domain/event"
)

// wireEvent is the envelope shared by the relay-backed buses. The timestamp
// keeps nanosecond precision so ordering-sensitive consumers can compare
// events across nodes.
type wireEvent struct {
	ScopeID   string         `json:"scope_id"`
	Channel   string         `json:"channel"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

func encodeWire(ev event.Event) ([]byte, error) {
	return json.Marshal(wireEvent{
		ScopeID:   ev.ScopeID,
		Channel:   string(ev.Channel),
		Payload:   ev.Payload,
		Timestamp: ev.Timestamp,
	})
}

func decodeWire(data []byte) (event.Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return event.Event{}, err
	}
	ch, err := event.ParseChannel(w.Channel)
	if err != nil {
		return event.Event{}, err
	}
	return event.Event{
		ScopeID:   w.ScopeID,
		Channel:   ch,
		Payload:   w.Payload,
		Timestamp: w.Timestamp,
	}, nil
}

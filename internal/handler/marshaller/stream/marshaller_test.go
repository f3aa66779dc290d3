package stream

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketloop/event-stream-service/internal/domain/event"
)

func TestMarshalEvent(t *testing.T) {
	ev := event.Event{
		ScopeID:   "evt-1",
		Channel:   event.ChannelCheckIns,
		Payload:   map[string]any{"ticket_id": "t1"},
		Timestamp: time.Date(2026, 5, 14, 19, 30, 0, 0, time.UTC),
	}

	data, err := MarshalEvent(ev)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "event", got["type"])
	assert.Equal(t, "evt-1", got["scope_id"])
	assert.Equal(t, "check-ins", got["channel"])
	assert.Equal(t, "2026-05-14T19:30:00Z", got["timestamp"])
	assert.Equal(t, map[string]any{"ticket_id": "t1"}, got["payload"])
}

func TestMarshalHeartbeat(t *testing.T) {
	data := MarshalHeartbeat(time.Date(2026, 5, 14, 19, 30, 0, 0, time.UTC))

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "heartbeat", got["type"])
	assert.Equal(t, "2026-05-14T19:30:00Z", got["timestamp"])
	assert.NotContains(t, got, "scope_id")
	assert.NotContains(t, got, "channel")
}

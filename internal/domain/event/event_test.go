package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChannel(t *testing.T) {
	for _, c := range Channels() {
		got, err := ParseChannel(string(c))
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	_, err := ParseChannel("push-notifications")
	assert.Error(t, err)

	_, err = ParseChannel("")
	assert.Error(t, err)
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("")
	require.NoError(t, err)
	assert.Equal(t, FilterAll, f)

	f, err = ParseFilter("all")
	require.NoError(t, err)
	assert.Equal(t, FilterAll, f)

	f, err = ParseFilter("orders")
	require.NoError(t, err)
	assert.Equal(t, FilterChannel(ChannelOrders), f)

	_, err = ParseFilter("bogus")
	assert.Error(t, err)
}

func TestFilterMatches(t *testing.T) {
	assert.True(t, FilterAll.Matches(ChannelAlerts))
	assert.True(t, FilterAll.Matches(ChannelCheckIns))

	orders := FilterChannel(ChannelOrders)
	assert.True(t, orders.Matches(ChannelOrders))
	assert.False(t, orders.Matches(ChannelAlerts))

	// The zero filter matches nothing; callers must go through the
	// constructors.
	var zero Filter
	assert.False(t, zero.Matches(ChannelOrders))
}

func TestNewStampsTimestampOnce(t *testing.T) {
	ev := New("evt-1", ChannelCheckIns, CheckInPayload{TicketID: "t1"}.Map())
	require.False(t, ev.Timestamp.IsZero())
	assert.Equal(t, "evt-1", ev.ScopeID)
	assert.Equal(t, ChannelCheckIns, ev.Channel)
	assert.Equal(t, "t1", ev.Payload["ticket_id"])
}

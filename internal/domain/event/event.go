// Package event defines the domain events flowing through the distribution
// layer: one immutable record per fact, partitioned by scope (one event/show
// per scope) and by channel within a scope.
package event

import (
	"fmt"
	"time"
)

// Channel is a named sub-stream within a scope. The set is closed: new
// channels require a new constant here, never an ad-hoc string.
type Channel string

const (
	ChannelCheckIns Channel = "check-ins"
	ChannelStats    Channel = "stats"
	ChannelOrders   Channel = "orders"
	ChannelAlerts   Channel = "alerts"
)

// Channels lists every known channel, in a stable order.
func Channels() []Channel {
	return []Channel{ChannelCheckIns, ChannelStats, ChannelOrders, ChannelAlerts}
}

// ParseChannel validates a wire-level channel name.
func ParseChannel(s string) (Channel, error) {
	switch c := Channel(s); c {
	case ChannelCheckIns, ChannelStats, ChannelOrders, ChannelAlerts:
		return c, nil
	}
	return "", fmt.Errorf("unknown channel %q", s)
}

// Filter selects which channels of a scope a subscription receives.
// The zero value matches nothing; use FilterAll or FilterChannel.
type Filter struct {
	channel Channel
	all     bool
}

// FilterAll matches every channel of the subscribed scope.
var FilterAll = Filter{all: true}

// FilterChannel matches a single channel.
func FilterChannel(c Channel) Filter {
	return Filter{channel: c}
}

// ParseFilter accepts a channel name, "all", or the empty string (meaning all).
func ParseFilter(s string) (Filter, error) {
	if s == "" || s == "all" {
		return FilterAll, nil
	}
	c, err := ParseChannel(s)
	if err != nil {
		return Filter{}, err
	}
	return FilterChannel(c), nil
}

// Matches reports whether an event on channel c passes the filter.
func (f Filter) Matches(c Channel) bool {
	return f.all || f.channel == c
}

func (f Filter) String() string {
	if f.all {
		return "all"
	}
	return string(f.channel)
}

// Event is one fact to broadcast. It is never mutated after construction;
// every subscriber observes the identical record. The payload map is owned by
// the producer and must be treated as read-only once published.
type Event struct {
	ScopeID   string
	Channel   Channel
	Payload   map[string]any
	Timestamp time.Time
}

// New stamps the event once, at creation. The bus never rewrites it.
func New(scopeID string, channel Channel, payload map[string]any) Event {
	return Event{
		ScopeID:   scopeID,
		Channel:   channel,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

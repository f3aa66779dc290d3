package bus

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ticketloop/event-stream-service/internal/domain/event"
)

// Interface guard
var _ Bus = (*RedisBus)(nil)

// RedisBus relays events through a Redis pub/sub channel so every node sees
// every publication. Local fan-out is delegated to an embedded MemoryBus:
// events only reach subscriptions through the relay loop, which keeps
// delivery order identical on the publishing node and on its peers.
type RedisBus struct {
	local  *MemoryBus
	rc     *redis.Client
	prefix string
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRedisBus starts the relay loop immediately. Close must be called to
// stop it.
func NewRedisBus(rc *redis.Client, logger *slog.Logger, channelPrefix string, opts ...MemoryOption) *RedisBus {
	if channelPrefix == "" {
		channelPrefix = "live-events."
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &RedisBus{
		local:  NewMemoryBus(logger, opts...),
		rc:     rc,
		prefix: channelPrefix,
		logger: logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go b.relay(ctx)
	return b
}

func (b *RedisBus) Publish(ctx context.Context, ev event.Event) {
	data, err := encodeWire(ev)
	if err != nil {
		b.logger.Error("encode event for redis relay", "err", err, "scope_id", ev.ScopeID)
		return
	}
	if err := b.rc.Publish(ctx, b.prefix+ev.ScopeID, data).Err(); err != nil {
		// Publish cannot fail for the caller; log and move on.
		b.logger.Error("redis publish", "err", err, "scope_id", ev.ScopeID)
	}
}

func (b *RedisBus) Subscribe(scopeID string, filter event.Filter) (*Subscription, error) {
	return b.local.Subscribe(scopeID, filter)
}

func (b *RedisBus) Unsubscribe(sub *Subscription) {
	b.local.Unsubscribe(sub)
}

func (b *RedisBus) Stats() BusStats {
	return b.local.Stats()
}

// relay consumes the pattern subscription and feeds the local registry.
// On channel loss it resubscribes after a short pause.
func (b *RedisBus) relay(ctx context.Context) {
	defer close(b.done)
	for {
		sub := b.rc.PSubscribe(ctx, b.prefix+"*")
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				ev, err := decodeWire([]byte(msg.Payload))
				if err != nil {
					b.logger.Error("decode relayed event", "err", err, "redis_channel", msg.Channel)
					continue
				}
				// The redis channel name is authoritative for the scope;
				// guards against a mispublished envelope.
				if got := strings.TrimPrefix(msg.Channel, b.prefix); got != ev.ScopeID {
					b.logger.Warn("scope mismatch in relayed event", "channel_scope", got, "event_scope", ev.ScopeID)
					continue
				}
				b.local.Publish(ctx, ev)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		b.logger.Error("redis pubsub channel closed, resubscribing")
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// Close stops the relay and releases every local subscription.
func (b *RedisBus) Close() {
	b.cancel()
	<-b.done
	b.local.Close()
}

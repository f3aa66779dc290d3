package bus

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/ticketloop/event-stream-service/internal/domain/event"
)

// Interface guard
var _ Bus = (*BrokerBus)(nil)

const (
	// BroadcastTopic is the fan-out topic every node publishes to and
	// consumes from. With the AMQP backend each node gets its own
	// generated queue bound to the shared exchange.
	BroadcastTopic = "live-stream.broadcast.v1"

	metaScopeID = "scope_id"
	metaChannel = "channel"
)

// BrokerBus relays events through a watermill Publisher/Subscriber pair
// (AMQP in production, GoChannel in tests). As with the Redis bus, local
// fan-out happens only via the relay loop through an embedded MemoryBus.
type BrokerBus struct {
	local  *MemoryBus
	pub    message.Publisher
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBrokerBus wires the relay and starts consuming. The subscriber must be
// exclusive to this bus; Close stops the relay but closing the underlying
// transports is the composition root's job.
func NewBrokerBus(pub message.Publisher, sub message.Subscriber, logger *slog.Logger, opts ...MemoryOption) (*BrokerBus, error) {
	ctx, cancel := context.WithCancel(context.Background())
	b := &BrokerBus{
		local:  NewMemoryBus(logger, opts...),
		pub:    pub,
		logger: logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	messages, err := sub.Subscribe(ctx, BroadcastTopic)
	if err != nil {
		cancel()
		return nil, err
	}
	go b.relay(ctx, messages)
	return b, nil
}

func (b *BrokerBus) Publish(ctx context.Context, ev event.Event) {
	data, err := encodeWire(ev)
	if err != nil {
		b.logger.Error("encode event for broker relay", "err", err, "scope_id", ev.ScopeID)
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(metaScopeID, ev.ScopeID)
	msg.Metadata.Set(metaChannel, string(ev.Channel))
	msg.SetContext(ctx)

	if err := b.pub.Publish(BroadcastTopic, msg); err != nil {
		b.logger.Error("broker publish", "err", err, "scope_id", ev.ScopeID)
	}
}

func (b *BrokerBus) Subscribe(scopeID string, filter event.Filter) (*Subscription, error) {
	return b.local.Subscribe(scopeID, filter)
}

func (b *BrokerBus) Unsubscribe(sub *Subscription) {
	b.local.Unsubscribe(sub)
}

func (b *BrokerBus) Stats() BusStats {
	return b.local.Stats()
}

func (b *BrokerBus) relay(ctx context.Context, messages <-chan *message.Message) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			ev, err := decodeWire(msg.Payload)
			if err != nil {
				// Malformed envelopes are terminal; ack so the broker does
				// not redeliver them forever.
				b.logger.Error("decode relayed event", "err", err, "msg_id", msg.UUID)
				msg.Ack()
				continue
			}
			b.local.Publish(ctx, ev)
			msg.Ack()
		}
	}
}

// Close stops the relay and releases every local subscription.
func (b *BrokerBus) Close() {
	b.cancel()
	<-b.done
	b.local.Close()
}

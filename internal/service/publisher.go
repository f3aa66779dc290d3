package service

import (
	"context"

	"github.com/ticketloop/event-stream-service/internal/bus"
	"github.com/ticketloop/event-stream-service/internal/domain/event"
)

// Publisher is the producer-facing facade over the bus: one method per
// channel, each taking the typed payload for that channel. Calls are
// fire-and-forget by contract; nothing here can fail the caller.
type Publisher struct {
	bus bus.Bus
}

func NewPublisher(b bus.Bus) *Publisher {
	return &Publisher{bus: b}
}

func (p *Publisher) CheckIn(ctx context.Context, scopeID string, payload event.CheckInPayload) {
	p.bus.Publish(ctx, event.New(scopeID, event.ChannelCheckIns, payload.Map()))
}

func (p *Publisher) Order(ctx context.Context, scopeID string, payload event.OrderPayload) {
	p.bus.Publish(ctx, event.New(scopeID, event.ChannelOrders, payload.Map()))
}

func (p *Publisher) Stats(ctx context.Context, scopeID string, payload event.StatsPayload) {
	p.bus.Publish(ctx, event.New(scopeID, event.ChannelStats, payload.Map()))
}

func (p *Publisher) Alert(ctx context.Context, scopeID string, payload event.AlertPayload) {
	p.bus.Publish(ctx, event.New(scopeID, event.ChannelAlerts, payload.Map()))
}

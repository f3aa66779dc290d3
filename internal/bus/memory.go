package bus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/ticketloop/event-stream-service/internal/domain/event"
)

// Interface guard
var _ Bus = (*MemoryBus)(nil)

// MemoryBus is the single-process fan-out primitive. Subscriptions are
// grouped into per-scope cells so publishers on one scope never contend with
// subscribers on another. Lookups are lock-free via sync.Map; mutation inside
// a cell uses a fine-grained RWMutex.
type MemoryBus struct {
	logger *slog.Logger
	buffer int

	// cells stores map[string]*scopeCell keyed by scope id.
	cells sync.Map

	mu     sync.Mutex
	closed bool
}

type scopeCell struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]*Subscription
	// dead marks a cell purged from the registry; a Subscribe that lost the
	// race must retry against a fresh cell.
	dead bool
}

// MemoryOption configures a MemoryBus.
type MemoryOption func(*MemoryBus)

// WithBufferSize sets the per-subscription delivery buffer capacity.
// It bounds how far a slow consumer may lag before drop-newest kicks in.
func WithBufferSize(n int) MemoryOption {
	return func(b *MemoryBus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

func NewMemoryBus(logger *slog.Logger, opts ...MemoryOption) *MemoryBus {
	b := &MemoryBus{
		logger: logger,
		buffer: 256,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish delivers to every matching subscription registered at the moment of
// the call. The cell read lock is held only for the non-blocking pushes, so
// publication cost is bounded by the number of local subscribers, never by
// their consumption speed.
func (b *MemoryBus) Publish(_ context.Context, ev event.Event) {
	val, ok := b.cells.Load(ev.ScopeID)
	if !ok {
		return
	}
	cell := val.(*scopeCell)

	cell.mu.RLock()
	defer cell.mu.RUnlock()
	for _, sub := range cell.subs {
		if !sub.filter.Matches(ev.Channel) {
			continue
		}
		if !sub.push(ev) {
			b.logger.Debug("event dropped for saturated subscription",
				"scope_id", ev.ScopeID,
				"channel", ev.Channel,
				"subscription_id", sub.id,
				"dropped_total", sub.Dropped(),
			)
		}
	}
}

func (b *MemoryBus) Subscribe(scopeID string, filter event.Filter) (*Subscription, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	b.mu.Unlock()

	sub := newSubscription(scopeID, filter, b.buffer)
	for {
		val, _ := b.cells.LoadOrStore(scopeID, &scopeCell{subs: make(map[uuid.UUID]*Subscription)})
		cell := val.(*scopeCell)

		cell.mu.Lock()
		if cell.dead {
			// Lost a race with the purge in Unsubscribe; the registry entry
			// is gone, so take another lap.
			cell.mu.Unlock()
			continue
		}
		cell.subs[sub.id] = sub
		cell.mu.Unlock()

		// Close may have swept the registry between the entry check and the
		// insert; re-check so the subscription cannot outlive the bus.
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			b.Unsubscribe(sub)
			return nil, ErrClosed
		}
		b.mu.Unlock()
		return sub, nil
	}
}

func (b *MemoryBus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	sub.close()

	val, ok := b.cells.Load(sub.scopeID)
	if !ok {
		return
	}
	cell := val.(*scopeCell)

	cell.mu.Lock()
	delete(cell.subs, sub.id)
	if len(cell.subs) == 0 && !cell.dead {
		cell.dead = true
		b.cells.Delete(sub.scopeID)
	}
	cell.mu.Unlock()
}

// Stats summarizes the registry for the operations endpoint.
func (b *MemoryBus) Stats() BusStats {
	stats := BusStats{PerScope: map[string]int{}}
	b.cells.Range(func(key, val any) bool {
		cell := val.(*scopeCell)
		cell.mu.RLock()
		n := len(cell.subs)
		for _, sub := range cell.subs {
			stats.DroppedEvents += sub.Dropped()
		}
		cell.mu.RUnlock()
		if n > 0 {
			stats.PerScope[key.(string)] = n
			stats.Subscriptions += n
		}
		return true
	})
	return stats
}

// Close shuts the bus down: all subscriptions are released and further
// Subscribe calls fail with ErrClosed. Publish becomes a no-op as cells
// drain out of the registry.
func (b *MemoryBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.cells.Range(func(key, val any) bool {
		cell := val.(*scopeCell)
		cell.mu.Lock()
		for id, sub := range cell.subs {
			sub.close()
			delete(cell.subs, id)
		}
		cell.dead = true
		cell.mu.Unlock()
		b.cells.Delete(key)
		return true
	})
}

// BusStats is a point-in-time snapshot of the subscriber registry.
type BusStats struct {
	Subscriptions int            `json:"subscriptions"`
	PerScope      map[string]int `json:"per_scope,omitempty"`
	DroppedEvents uint64         `json:"dropped_events"`
}

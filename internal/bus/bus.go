/*
Package bus provides the process-wide publish/subscribe primitive feeding the
live dashboard streams.

Key properties:
  - Fire-and-forget publication: Publish returns as soon as delivery is
    enqueued for every matching subscription; a producer's request flow is
    never delayed by subscriber speed.
  - Isolation: a slow or dead sink only ever loses its own events. When a
    subscription's buffer is full the incoming event is dropped for that
    subscription alone (drop-newest) and counted, so memory stays bounded on a
    stalled client.
  - Per-subscription FIFO: matching events arrive in Publish order. No
    ordering is guaranteed across different subscriptions.

The Bus interface is the seam for multi-process fan-out: the in-memory bus
covers a single node, while the Redis and broker buses relay through an
external medium behind the same contract.
*/
package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ticketloop/event-stream-service/internal/domain/event"
)

// ErrClosed is returned by Subscribe after the bus has shut down.
var ErrClosed = errors.New("bus: closed")

// Bus broadcasts a domain event to every active subscription whose scope and
// channel filter match. Implementations are constructed by the composition
// root and passed in explicitly; there is no ambient global bus.
type Bus interface {
	// Publish enqueues delivery to all subscriptions matching at the moment
	// of the call and returns immediately. It cannot fail from the caller's
	// point of view: sink failures are absorbed and never surface here.
	Publish(ctx context.Context, ev event.Event)

	// Subscribe registers interest. The subscription receives only events
	// published after registration; there is no backlog or replay.
	Subscribe(scopeID string, filter event.Filter) (*Subscription, error)

	// Unsubscribe is idempotent. After it returns the subscription receives
	// nothing further and its buffer is released for collection.
	Unsubscribe(sub *Subscription)
}

// Subscription is a live registration of interest, owned by exactly one
// session for the lifetime of one client connection. No two subscriptions
// share a delivery buffer.
type Subscription struct {
	id      uuid.UUID
	scopeID string
	filter  event.Filter

	events chan event.Event
	done   chan struct{}

	closeOnce sync.Once
	dropped   atomic.Uint64
}

func newSubscription(scopeID string, filter event.Filter, buffer int) *Subscription {
	return &Subscription{
		id:      uuid.New(),
		scopeID: scopeID,
		filter:  filter,
		events:  make(chan event.Event, buffer),
		done:    make(chan struct{}),
	}
}

func (s *Subscription) ID() uuid.UUID        { return s.id }
func (s *Subscription) ScopeID() string      { return s.scopeID }
func (s *Subscription) Filter() event.Filter { return s.filter }

// Events is the delivery buffer. It is never closed; consumers must also
// select on Done.
func (s *Subscription) Events() <-chan event.Event { return s.events }

// Done is closed once the subscription is unsubscribed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Dropped reports how many events were shed because the buffer was full.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// push enqueues without ever blocking the publisher. A saturated buffer sheds
// the incoming event for this subscription only.
func (s *Subscription) push(ev event.Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- ev:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// close is idempotent; the events channel is intentionally left open so a
// concurrent push can never panic. Anything still buffered is garbage.
func (s *Subscription) close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

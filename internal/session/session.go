// Package session owns the lifecycle of long-lived client connections and
// binds each one to exactly one bus subscription.
package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ticketloop/event-stream-service/internal/bus"
	"github.com/ticketloop/event-stream-service/internal/domain/event"
	"github.com/ticketloop/event-stream-service/internal/handler/marshaller/stream"
)

// State tracks a session through its lifecycle. Transitions only ever move
// forward: Opening -> Active -> Closing -> Terminal.
type State int32

const (
	StateOpening State = iota + 1
	StateActive
	StateClosing
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateTerminal:
		return "terminal"
	}
	return "unknown"
}

// Transport carries serialized frames to one external consumer. Send must be
// safe to call from the session goroutine; Close must unblock any Send in
// flight.
type Transport interface {
	Send(frame []byte) error
	Close() error
}

// Session is one client connection bound to one subscription. Sessions are
// isolated: cancelling one never affects another, and sessions on the same
// scope interact only through the shared bus.
type Session struct {
	id      uuid.UUID
	scopeID string
	filter  event.Filter

	b         bus.Bus
	sub       *bus.Subscription
	transport Transport
	logger    *slog.Logger
	heartbeat time.Duration

	state     atomic.Int32
	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	onClose   func(*Session)
}

func (s *Session) ID() uuid.UUID        { return s.id }
func (s *Session) ScopeID() string      { return s.scopeID }
func (s *Session) Filter() event.Filter { return s.filter }
func (s *Session) State() State         { return State(s.state.Load()) }

// Done is closed once the session reaches Terminal; transports typically
// block their request handler on it.
func (s *Session) Done() <-chan struct{} { return s.done }

// Dropped reports events shed on this session's subscription.
func (s *Session) Dropped() uint64 { return s.sub.Dropped() }

// run is the delivery pump: it suspends until a matching event arrives, the
// heartbeat timer fires, or the session is cancelled, whichever comes first.
// Delivery is strictly FIFO because this is the subscription's only reader.
func (s *Session) run(ctx context.Context) {
	defer s.Close()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closing:
			return
		case <-s.sub.Done():
			return
		case ev := <-s.sub.Events():
			frame, err := stream.MarshalEvent(ev)
			if err != nil {
				s.logger.Error("marshal stream frame", "err", err, "session_id", s.id)
				continue
			}
			if err := s.transport.Send(frame); err != nil {
				// Transport failure is an implicit disconnect; it never
				// surfaces to other sessions or to the publisher.
				s.logger.Debug("transport send failed, closing session", "err", err, "session_id", s.id)
				return
			}
		case <-ticker.C:
			if err := s.transport.Send(stream.MarshalHeartbeat(time.Now())); err != nil {
				s.logger.Debug("heartbeat send failed, closing session", "err", err, "session_id", s.id)
				return
			}
		}
	}
}

// Close drives the session to Terminal. It is idempotent and safe to call
// from any goroutine at any point: the bus subscription is always released
// before the transport, so the bus never retains a dangling sink.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosing))
		close(s.closing)

		s.b.Unsubscribe(s.sub)
		if err := s.transport.Close(); err != nil {
			s.logger.Debug("transport close", "err", err, "session_id", s.id)
		}

		s.state.Store(int32(StateTerminal))
		if s.onClose != nil {
			s.onClose(s)
		}
		close(s.done)

		s.logger.Info("stream session closed",
			"session_id", s.id,
			"scope_id", s.scopeID,
			"dropped_events", s.sub.Dropped(),
		)
	})
}

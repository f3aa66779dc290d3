package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ticketloop/event-stream-service/internal/bus"
	"github.com/ticketloop/event-stream-service/internal/domain/event"
	"github.com/ticketloop/event-stream-service/internal/service"
)

var (
	// ErrForbidden rejects a stream open before any subscription exists.
	ErrForbidden = errors.New("session: not permitted for this scope/channel")
	// ErrShuttingDown rejects opens during graceful shutdown.
	ErrShuttingDown = errors.New("session: manager is shutting down")
)

// DefaultHeartbeatInterval keeps intermediary network devices from closing
// an idle connection.
const DefaultHeartbeatInterval = 30 * time.Second

// Manager opens, tracks and tears down stream sessions. The authorization
// gate runs exactly once per session, at open; the domain collaborators are
// trusted to route only permitted events into each scope and channel.
type Manager struct {
	bus       bus.Bus
	auther    service.Auther
	logger    *slog.Logger
	heartbeat time.Duration

	mu        sync.RWMutex
	sessions  map[uuid.UUID]*Session
	startedAt time.Time
	closed    bool
}

// Option configures the Manager.
type Option func(*Manager)

func WithHeartbeatInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.heartbeat = d
		}
	}
}

func NewManager(b bus.Bus, auther service.Auther, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		bus:       b,
		auther:    auther,
		logger:    logger,
		heartbeat: DefaultHeartbeatInterval,
		sessions:  make(map[uuid.UUID]*Session),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open runs the Opening state: authorize the caller for (scope, filter),
// subscribe on success, then hand the delivery pump its own goroutine. The
// returned session is already Active. ctx cancellation (client disconnect)
// closes the session.
func (m *Manager) Open(ctx context.Context, identity *service.Identity, scopeID string, filter event.Filter, transport Transport) (*Session, error) {
	if !m.auther.CanViewStream(identity, scopeID, filter) {
		return nil, ErrForbidden
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrShuttingDown
	}
	m.mu.Unlock()

	sess := &Session{
		id:        uuid.New(),
		scopeID:   scopeID,
		filter:    filter,
		b:         m.bus,
		transport: transport,
		logger:    m.logger,
		heartbeat: m.heartbeat,
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
		onClose:   m.remove,
	}
	sess.state.Store(int32(StateOpening))

	sub, err := m.bus.Subscribe(scopeID, filter)
	if err != nil {
		return nil, fmt.Errorf("session: subscribe: %w", err)
	}
	sess.sub = sub
	sess.state.Store(int32(StateActive))

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.bus.Unsubscribe(sub)
		return nil, ErrShuttingDown
	}
	m.sessions[sess.id] = sess
	m.mu.Unlock()

	m.logger.Info("stream session opened",
		"session_id", sess.id,
		"scope_id", scopeID,
		"channel", filter.String(),
		"subject", identity.Subject,
	)

	go sess.run(ctx)
	return sess, nil
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.id)
	m.mu.Unlock()
}

// Shutdown closes every session (server-initiated Closing) and refuses new
// opens. Safe to call more than once.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	for _, s := range open {
		s.Close()
	}
	m.logger.Info("session manager stopped", "closed_sessions", len(open))
}

// Stats summarizes live sessions for the operations endpoint.
type Stats struct {
	ActiveSessions int            `json:"active_sessions"`
	PerScope       map[string]int `json:"per_scope,omitempty"`
	DroppedEvents  uint64         `json:"dropped_events"`
	UptimeSeconds  int64          `json:"uptime_seconds"`
}

func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		ActiveSessions: len(m.sessions),
		PerScope:       map[string]int{},
		UptimeSeconds:  int64(time.Since(m.startedAt).Seconds()),
	}
	for _, s := range m.sessions {
		stats.PerScope[s.scopeID]++
		stats.DroppedEvents += s.Dropped()
	}
	return stats
}

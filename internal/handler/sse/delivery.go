// Package sse serves the primary dashboard stream: one long-lived
// text/event-stream response per session, each bus event a discrete frame.
package sse

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ticketloop/event-stream-service/internal/domain/event"
	"github.com/ticketloop/event-stream-service/internal/handler/marshaller/stream"
	"github.com/ticketloop/event-stream-service/internal/service"
	"github.com/ticketloop/event-stream-service/internal/session"
)

var errTransportClosed = errors.New("sse: transport closed")

type Handler struct {
	logger  *slog.Logger
	manager *session.Manager
	auther  service.Auther

	// heartbeatInterval drives the dedicated liveness endpoint; session
	// heartbeats are the manager's business.
	heartbeatInterval time.Duration
}

func NewHandler(logger *slog.Logger, manager *session.Manager, auther service.Auther, heartbeatInterval time.Duration) *Handler {
	if heartbeatInterval <= 0 {
		heartbeatInterval = session.DefaultHeartbeatInterval
	}
	return &Handler{
		logger:            logger,
		manager:           manager,
		auther:            auther,
		heartbeatInterval: heartbeatInterval,
	}
}

// Stream handles GET /api/events/{scopeID}/stream?channel=orders.
// EventSource cannot set headers, so the token is also accepted as a query
// parameter.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	identity, err := h.auther.Inspect(r.Context(), token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	scopeID := chi.URLParam(r, "scopeID")
	filter, err := event.ParseFilter(r.URL.Query().Get("channel"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// Capability check before any stream bytes go out, so a denied caller
	// gets a real status code. Open re-runs the gate authoritatively.
	if !h.auther.CanViewStream(identity, scopeID, filter) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	writeStreamHeaders(w)
	flusher.Flush()

	sess, err := h.manager.Open(r.Context(), identity, scopeID, filter, newTransport(w, flusher))
	if err != nil {
		if errors.Is(err, session.ErrForbidden) {
			// Headers are already out; the client sees an immediately
			// terminated stream. Log the reason, it never becomes a frame.
			h.logger.Warn("stream rejected", "scope_id", scopeID, "subject", identity.Subject)
		}
		return
	}

	select {
	case <-sess.Done():
	case <-r.Context().Done():
		sess.Close()
	}
}

// Heartbeat handles GET /heartbeat: an unauthenticated, scope-free stream of
// heartbeat frames for connection-liveness checks.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	writeStreamHeaders(w)

	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	send := func() bool {
		if _, err := fmt.Fprintf(w, "data: %s\n\n", stream.MarshalHeartbeat(time.Now())); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}
	if !send() {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if !send() {
				return
			}
		}
	}
}

func writeStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// transport adapts the response writer to the session's Transport. Frames
// arrive from the session goroutine while Close may come from either side,
// hence the mutex.
type transport struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	closed  bool
}

var _ session.Transport = (*transport)(nil)

func newTransport(w io.Writer, flusher http.Flusher) *transport {
	return &transport{w: w, flusher: flusher}
}

func (t *transport) Send(frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errTransportClosed
	}
	if _, err := fmt.Fprintf(t.w, "data: %s\n\n", frame); err != nil {
		return err
	}
	t.flusher.Flush()
	return nil
}

// Close only marks the transport dead; the HTTP machinery owns the actual
// connection and releases it when the handler returns.
func (t *transport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

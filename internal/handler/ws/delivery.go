// Package ws carries the same stream contract as the SSE endpoint over a
// WebSocket, for dashboard clients behind proxies that buffer event-streams.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ticketloop/event-stream-service/internal/domain/event"
	"github.com/ticketloop/event-stream-service/internal/service"
	"github.com/ticketloop/event-stream-service/internal/session"
)

const writeTimeout = 10 * time.Second

type Handler struct {
	logger   *slog.Logger
	manager  *session.Manager
	auther   service.Auther
	upgrader websocket.Upgrader
}

func NewHandler(logger *slog.Logger, manager *session.Manager, auther service.Auther) *Handler {
	return &Handler{
		logger:  logger,
		manager: manager,
		auther:  auther,
		upgrader: websocket.Upgrader{
			// The platform dashboard is served from another origin; token
			// auth is the actual gate.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Stream handles GET /api/events/{scopeID}/ws?channel=stats.
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

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "err", err)
		return
	}

	// The request context does not notice a dropped socket once the
	// connection is hijacked; the read pump does.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	sess, err := h.manager.Open(ctx, identity, scopeID, filter, newTransport(conn))
	if err != nil {
		code := websocket.ClosePolicyViolation
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, "stream rejected"), time.Now().Add(writeTimeout))
		_ = conn.Close()
		return
	}

	select {
	case <-sess.Done():
	case <-ctx.Done():
		sess.Close()
	}
}

// transport serializes writes onto the single websocket connection.
type transport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

var _ session.Transport = (*transport)(nil)

func newTransport(conn *websocket.Conn) *transport {
	return &transport{conn: conn}
}

func (t *transport) Send(frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, frame)
}

func (t *transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.Close()
}

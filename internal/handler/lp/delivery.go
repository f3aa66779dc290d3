// Package lp serves a long-poll fallback for clients that can hold neither
// an SSE nor a WebSocket connection open. Each request is one short-lived
// subscription; there is no backlog between polls.
package lp

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ticketloop/event-stream-service/internal/bus"
	"github.com/ticketloop/event-stream-service/internal/domain/event"
	"github.com/ticketloop/event-stream-service/internal/handler/marshaller/stream"
	"github.com/ticketloop/event-stream-service/internal/service"
)

const (
	pollTimeout = 30 * time.Second
	// batchLimit caps how many buffered events one poll may drain, to keep
	// response sizes sane.
	batchLimit = 15
)

type Handler struct {
	logger *slog.Logger
	bus    bus.Bus
	auther service.Auther
}

func NewHandler(logger *slog.Logger, b bus.Bus, auther service.Auther) *Handler {
	return &Handler{logger: logger, bus: b, auther: auther}
}

// Poll handles GET /api/events/{scopeID}/poll?channel=orders. It holds the
// request until an event arrives or the timeout passes (204).
func (h *Handler) Poll(w http.ResponseWriter, r *http.Request) {
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
	if !h.auther.CanViewStream(identity, scopeID, filter) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	sub, err := h.bus.Subscribe(scopeID, filter)
	if err != nil {
		http.Error(w, "failed to subscribe", http.StatusInternalServerError)
		return
	}
	defer h.bus.Unsubscribe(sub)

	var events []event.Event
	select {
	case <-r.Context().Done():
		return
	case <-time.After(pollTimeout):
		w.WriteHeader(http.StatusNoContent)
		return
	case ev := <-sub.Events():
		events = append(events, ev)
		// Drain whatever is already buffered for batching.
	drain:
		for i := 0; i < batchLimit; i++ {
			select {
			case next := <-sub.Events():
				events = append(events, next)
			default:
				break drain
			}
		}
	}

	frames := make([]json.RawMessage, 0, len(events))
	for _, ev := range events {
		frame, err := stream.MarshalEvent(ev)
		if err != nil {
			h.logger.Error("marshal poll frame", "err", err)
			continue
		}
		frames = append(frames, frame)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(frames); err != nil {
		h.logger.Debug("write poll response", "err", err)
	}
}

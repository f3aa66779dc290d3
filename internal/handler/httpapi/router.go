// Package httpapi assembles the HTTP surface: stream transports, the
// settings API and the operations endpoints, behind one chi router.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ticketloop/event-stream-service/internal/handler/lp"
	"github.com/ticketloop/event-stream-service/internal/handler/sse"
	"github.com/ticketloop/event-stream-service/internal/handler/ws"
)

func NewRouter(
	logger *slog.Logger,
	sseHandler *sse.Handler,
	wsHandler *ws.Handler,
	lpHandler *lp.Handler,
	settingsHandler *SettingsHandler,
	statsHandler *StatsHandler,
) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/heartbeat", sseHandler.Heartbeat)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/events/{scopeID}", func(r chi.Router) {
			r.Get("/stream", sseHandler.Stream)
			r.Get("/ws", wsHandler.Stream)
			r.Get("/poll", lpHandler.Poll)
		})

		r.Get("/settings", settingsHandler.List)
		r.Put("/settings", settingsHandler.Update)

		r.Get("/stats", statsHandler.Get)
	})

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

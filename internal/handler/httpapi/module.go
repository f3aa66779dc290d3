package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"

	"github.com/ticketloop/event-stream-service/config"
	"github.com/ticketloop/event-stream-service/internal/handler/lp"
	"github.com/ticketloop/event-stream-service/internal/handler/sse"
	"github.com/ticketloop/event-stream-service/internal/handler/ws"
	"github.com/ticketloop/event-stream-service/internal/service"
	"github.com/ticketloop/event-stream-service/internal/session"
)

var Module = fx.Module("httpapi",
	fx.Provide(
		func(logger *slog.Logger, m *session.Manager, a service.Auther, cfg *config.Config) *sse.Handler {
			return sse.NewHandler(logger, m, a, cfg.HeartbeatInterval)
		},
		ws.NewHandler,
		lp.NewHandler,
		NewSettingsHandler,
		NewStatsHandler,
		NewRouter,
	),
	fx.Invoke(runServer),
)

func runServer(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger, router *chi.Mux) {
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
		// No global write timeout: stream responses are unbounded on
		// purpose. Read headers still get a deadline.
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				logger.Info("http server listening", "addr", cfg.ListenAddr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server failed", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

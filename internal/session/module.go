package session

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/ticketloop/event-stream-service/config"
	"github.com/ticketloop/event-stream-service/internal/bus"
	"github.com/ticketloop/event-stream-service/internal/service"
)

var Module = fx.Module("session",
	fx.Provide(
		func(b bus.Bus, auther service.Auther, logger *slog.Logger, cfg *config.Config) *Manager {
			return NewManager(b, auther, logger, WithHeartbeatInterval(cfg.HeartbeatInterval))
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, m *Manager) {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				m.Shutdown()
				return nil
			},
		})
	}),
)

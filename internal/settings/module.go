package settings

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/ticketloop/event-stream-service/config"
)

// Module provides the settings Service backed by Postgres when a database is
// configured, or the in-memory store otherwise.
var Module = fx.Module("settings",
	fx.Provide(
		newStore,
		func(store Store, logger *slog.Logger, cfg *config.Config) *Service {
			return NewService(store, logger, Options{CacheTTL: cfg.SettingsCacheTTL})
		},
	),
)

func newStore(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("no database configured, setting overrides are not persisted")
		return NewMemoryStore(), nil
	}

	store, err := NewPostgresStore(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			store.Close()
			return nil
		},
	})
	return store, nil
}

package cmd

import (
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/fx"

	"github.com/ticketloop/event-stream-service/config"
	"github.com/ticketloop/event-stream-service/internal/bus"
	amqpdi "github.com/ticketloop/event-stream-service/internal/handler/amqp"
	"github.com/ticketloop/event-stream-service/internal/handler/httpapi"
	"github.com/ticketloop/event-stream-service/internal/service"
	"github.com/ticketloop/event-stream-service/internal/session"
	"github.com/ticketloop/event-stream-service/internal/settings"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
		),
		fx.Invoke(func(cfg *config.Config, logger *slog.Logger) {
			cfg.Watch(logger)
		}),
		settings.Module,
		bus.Module,
		service.Module,
		session.Module,
		amqpdi.Module,
		httpapi.Module,
	)
}

func ProvideLogger(cfg *config.Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Level(),
	})).With("service", ServiceName)
	slog.SetDefault(logger)
	return logger
}

func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger)
}

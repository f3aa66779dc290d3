package amqp

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/fx"

	"github.com/ticketloop/event-stream-service/config"
	"github.com/ticketloop/event-stream-service/infra/pubsub"
)

// Module runs the AMQP ingress when a broker is configured. Without one
// (single-node dev setups) the stream endpoints still work; only the
// platform collaborators' events have no way in.
var Module = fx.Module("amqp-ingress",
	fx.Provide(NewIngressHandler),
	fx.Invoke(run),
)

func run(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger, wlog watermill.LoggerAdapter, h *IngressHandler) error {
	if cfg.AMQPURL == "" {
		logger.Warn("amqp ingress disabled, no broker configured")
		return nil
	}

	router, err := NewWatermillRouter(wlog)
	if err != nil {
		return err
	}
	pub, err := pubsub.NewPublisher(cfg.AMQPURL, wlog)
	if err != nil {
		return err
	}
	sub, err := pubsub.NewSubscriber(cfg.AMQPURL, "live-stream-ingress", wlog)
	if err != nil {
		return err
	}
	if err := h.RegisterHandlers(router, sub, pub); err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := router.Run(context.Background()); err != nil {
					logger.Error("ingress router stopped", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			return router.Close()
		},
	})
	return nil
}

package service

import (
	"go.uber.org/fx"

	"github.com/ticketloop/event-stream-service/config"
)

var Module = fx.Module("service",
	fx.Provide(
		NewPublisher,
		func(cfg *config.Config) Auther {
			return NewJWTAuther(cfg.AppSecretKey)
		},
	),
)

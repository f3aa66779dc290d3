package bus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/ticketloop/event-stream-service/config"
	"github.com/ticketloop/event-stream-service/infra/pubsub"
)

// StatsProvider is implemented by every bus variant for the operations
// endpoint.
type StatsProvider interface {
	Stats() BusStats
}

// closer lets the lifecycle hook shut down whichever variant was built.
type closer interface {
	Close()
}

// Module provides the Bus selected by config: an in-process registry, a
// Redis relay or an AMQP relay, all behind the same contract.
var Module = fx.Module("bus",
	fx.Provide(newBus),
	fx.Invoke(func(lc fx.Lifecycle, b Bus) {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				if c, ok := b.(closer); ok {
					c.Close()
				}
				return nil
			},
		})
	}),
)

type busResult struct {
	fx.Out

	Bus   Bus
	Stats StatsProvider
}

func newBus(cfg *config.Config, logger *slog.Logger, wlog watermill.LoggerAdapter) (busResult, error) {
	opts := []MemoryOption{WithBufferSize(cfg.SessionBuffer)}

	switch cfg.BusDriver {
	case "memory":
		b := NewMemoryBus(logger, opts...)
		return busResult{Bus: b, Stats: b}, nil

	case "redis":
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		b := NewRedisBus(rc, logger, "", opts...)
		return busResult{Bus: b, Stats: b}, nil

	case "amqp":
		pub, err := pubsub.NewPublisher(cfg.AMQPURL, wlog)
		if err != nil {
			return busResult{}, err
		}
		sub, err := pubsub.NewSubscriber(cfg.AMQPURL, "node-"+uuid.NewString()[:8], wlog)
		if err != nil {
			return busResult{}, err
		}
		b, err := NewBrokerBus(pub, sub, logger, opts...)
		if err != nil {
			return busResult{}, err
		}
		return busResult{Bus: b, Stats: b}, nil
	}
	return busResult{}, fmt.Errorf("bus: unknown driver %q", cfg.BusDriver)
}

package amqp

import (
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

const traceIDKey = "trace_id"

// TraceIDMiddleware ensures every message carries a trace id end to end.
func TraceIDMiddleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		if msg.Metadata.Get(traceIDKey) == "" {
			msg.Metadata.Set(traceIDKey, watermill.NewUUID())
		}
		return h(msg)
	}
}

// LoggingMiddleware records outcome and latency per consumed message.
func LoggingMiddleware(logger *slog.Logger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			start := time.Now()
			msgs, err := h(msg)
			logger.Debug("ingress message handled",
				"msg_id", msg.UUID,
				"trace_id", msg.Metadata.Get(traceIDKey),
				"duration_ms", time.Since(start).Milliseconds(),
				"success", err == nil,
			)
			return msgs, err
		}
	}
}

func NewRetryMiddleware() middleware.Retry {
	return middleware.Retry{
		MaxRetries:      3,
		InitialInterval: 2 * time.Second,
		MaxInterval:     15 * time.Second,
		Multiplier:      2.0,
	}
}

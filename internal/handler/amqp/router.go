// Package amqp consumes the platform's domain topics and republishes the
// facts onto the live event bus. This is how the out-of-process CRUD
// collaborators (order processing, check-in scanning, stats computation)
// reach connected dashboards.
package amqp

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/ticketloop/event-stream-service/internal/service"
)

const (
	// Platform topics (one durable exchange each).
	TopicOrderCompleted    = "ticketing.order.completed.v1"
	TopicAttendeeCheckedIn = "ticketing.attendee.checked_in.v1"
	TopicStatsSnapshot     = "ticketing.stats.snapshot.v1"
	TopicAlertRaised       = "ticketing.alert.raised.v1"

	// PoisonTopic collects messages that exhausted their retries.
	PoisonTopic = "live-stream.ingress.poison.v1"
)

type IngressHandler struct {
	publisher *service.Publisher
	logger    *slog.Logger
}

func NewIngressHandler(publisher *service.Publisher, logger *slog.Logger) *IngressHandler {
	return &IngressHandler{publisher: publisher, logger: logger}
}

func NewWatermillRouter(wlog watermill.LoggerAdapter) (*message.Router, error) {
	return message.NewRouter(message.RouterConfig{}, wlog)
}

// RegisterHandlers wires every platform topic through the same middleware
// chain. Adding a domain listener means one more row in the table.
func (h *IngressHandler) RegisterHandlers(router *message.Router, sub message.Subscriber, pub message.Publisher) error {
	poison, err := middleware.PoisonQueue(pub, PoisonTopic)
	if err != nil {
		return fmt.Errorf("amqp: poison queue setup: %w", err)
	}

	configs := []struct {
		name    string
		topic   string
		handler message.NoPublishHandlerFunc
	}{
		{"on_order_completed", TopicOrderCompleted, Bind(h, h.OnOrderCompletedV1)},
		{"on_attendee_checked_in", TopicAttendeeCheckedIn, Bind(h, h.OnAttendeeCheckedInV1)},
		{"on_stats_snapshot", TopicStatsSnapshot, Bind(h, h.OnStatsSnapshotV1)},
		{"on_alert_raised", TopicAlertRaised, Bind(h, h.OnAlertRaisedV1)},
	}

	for _, c := range configs {
		router.AddNoPublisherHandler(c.name, c.topic, sub, c.handler).AddMiddleware(
			TraceIDMiddleware,
			LoggingMiddleware(h.logger),
			NewRetryMiddleware().Middleware,
			poison,
			middleware.NewThrottle(100, time.Second).Middleware,
			middleware.Timeout(30*time.Second),
		)
	}

	h.logger.Info("amqp ingress ready", "handlers", len(configs))
	return nil
}

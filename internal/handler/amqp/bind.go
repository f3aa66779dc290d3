package amqp

import (
	"context"
	"encoding/json"
	"runtime/debug"

	"github.com/ThreeDotsLabs/watermill/message"
)

// DomainHandler is the business-logic signature bound behind the bridge.
type DomainHandler[T any] func(ctx context.Context, payload *T) error

// Bind connects watermill to a typed domain listener. Malformed payloads are
// acked (redelivery cannot fix them); listener errors are nacked so the
// retry middleware takes over; panics are recovered to keep the consumer
// alive.
func Bind[T any](h *IngressHandler, fn DomainHandler[T]) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("panic recovered in ingress handler",
					"err", r,
					"stack", string(debug.Stack()),
					"msg_id", msg.UUID,
				)
			}
		}()

		payload := new(T)
		if err := json.Unmarshal(msg.Payload, payload); err != nil {
			h.logger.Error("undecodable ingress payload", "err", err, "msg_id", msg.UUID)
			return nil
		}

		if err := fn(msg.Context(), payload); err != nil {
			return err
		}
		return nil
	}
}

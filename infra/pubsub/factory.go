// Package pubsub builds watermill transports against the platform's AMQP
// broker. Publishers and subscribers share the durable pub/sub topology:
// one fanout-style exchange per topic, a generated queue per consumer.
package pubsub

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
)

// NewPublisher builds a durable AMQP publisher.
func NewPublisher(amqpURL string, logger watermill.LoggerAdapter) (message.Publisher, error) {
	cfg := amqp.NewDurablePubSubConfig(amqpURL, nil)
	pub, err := amqp.NewPublisher(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("pubsub: build publisher: %w", err)
	}
	return pub, nil
}

// NewSubscriber builds a durable AMQP subscriber whose queue name is derived
// from the topic plus the given suffix, so each node consumes its own copy.
func NewSubscriber(amqpURL, queueSuffix string, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	cfg := amqp.NewDurablePubSubConfig(
		amqpURL,
		amqp.GenerateQueueNameTopicNameWithSuffix(queueSuffix),
	)
	sub, err := amqp.NewSubscriber(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("pubsub: build subscriber: %w", err)
	}
	return sub, nil
}

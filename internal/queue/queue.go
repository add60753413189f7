// Package queue implements the broker client: an AMQP publisher and
// consumer over durable topology with manual acknowledgement.
//
// Delivery semantics are at-least-once: deliveries are acknowledged only
// after handling produced a terminal local outcome, and failed handling
// rejects without requeue so a poison message is dropped rather than
// retried indefinitely. Redelivery happens only when the process dies
// before acknowledging.
package queue

import "context"

// Publisher publishes JSON-encoded events to an exchange.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, event any) error
}

// Handler processes one delivery body. A nil return acknowledges the
// delivery; an error rejects it without requeue. Handlers own their
// failure reporting: a pipeline failure recorded as terminal state is a
// handled message, not a handler error.
type Handler func(ctx context.Context, body []byte) error

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/Oxord/SceneFlow/internal/config"
	"github.com/Oxord/SceneFlow/internal/observability"
)

// Client wraps one AMQP connection and hands out publishers and
// consumers with their own channels.
type Client struct {
	conn    *amqp091.Connection
	cfg     *config.QueueConfig
	logger  observability.Logger
	metrics observability.Metrics
}

// Dial connects to the broker.
func Dial(cfg *config.QueueConfig, logger observability.Logger, metrics observability.Metrics) (*Client, error) {
	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}

	logger.Info(context.Background(), "connected to RabbitMQ", nil)

	return &Client{
		conn:    conn,
		cfg:     cfg,
		logger:  logger.WithFields(observability.Fields{"component": "queue.rabbitmq"}),
		metrics: metrics,
	}, nil
}

// Close closes the underlying connection and all channels created from it.
func (c *Client) Close() error {
	return c.conn.Close()
}

// DeclareTopology declares the durable exchanges, quorum queues, and
// bindings for both the upload and processed legs. Declarations are
// idempotent, so whichever side starts first sets the topology up and
// later starters are no-ops.
func (c *Client) DeclareTopology() error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	legs := []struct {
		exchange   string
		queue      string
		routingKey string
	}{
		{c.cfg.UploadExchange, c.cfg.UploadQueue, c.cfg.UploadRoutingKey},
		{c.cfg.ProcessedExchange, c.cfg.ProcessedQueue, c.cfg.ProcessedRoutingKey},
	}

	for _, leg := range legs {
		if err := ch.ExchangeDeclare(
			leg.exchange,
			"direct",
			true,  // durable
			false, // auto-delete
			false, // internal
			false, // no-wait
			nil,
		); err != nil {
			return fmt.Errorf("declare exchange %q: %w", leg.exchange, err)
		}

		if _, err := ch.QueueDeclare(
			leg.queue,
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			amqp091.Table{"x-queue-type": "quorum"},
		); err != nil {
			return fmt.Errorf("declare queue %q: %w", leg.queue, err)
		}

		if err := ch.QueueBind(leg.queue, leg.routingKey, leg.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %q to %q: %w", leg.queue, leg.exchange, err)
		}
	}

	c.logger.Info(context.Background(), "broker topology declared", observability.Fields{
		"upload_queue":    c.cfg.UploadQueue,
		"processed_queue": c.cfg.ProcessedQueue,
	})

	return nil
}

// AMQPPublisher publishes persistent JSON messages on a dedicated channel.
type AMQPPublisher struct {
	ch      *amqp091.Channel
	logger  observability.Logger
	metrics observability.Metrics
}

// NewPublisher opens a channel for publishing.
func (c *Client) NewPublisher() (*AMQPPublisher, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publisher channel: %w", err)
	}
	return &AMQPPublisher{
		ch:      ch,
		logger:  c.logger,
		metrics: c.metrics,
	}, nil
}

// Publish marshals the event to JSON and publishes it with persistent
// delivery mode.
func (p *AMQPPublisher) Publish(ctx context.Context, exchange, routingKey string, event any) error {
	start := time.Now()
	defer func() {
		p.metrics.RecordDuration("queue_publish", time.Since(start).Seconds())
	}()

	body, err := json.Marshal(event)
	if err != nil {
		p.metrics.RecordError("queue_publish", "marshal")
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.ch.PublishWithContext(
		ctx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			DeliveryMode: amqp091.Persistent,
			ContentType:  "application/json",
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		p.metrics.RecordError("queue_publish", "publish")
		p.logger.Error(ctx, "failed to publish message", err, observability.Fields{
			"exchange":    exchange,
			"routing_key": routingKey,
		})
		return fmt.Errorf("publish to %q: %w", exchange, err)
	}

	p.metrics.RecordSuccess("queue_publish")
	p.logger.Debug(ctx, "message published", observability.Fields{
		"exchange":    exchange,
		"routing_key": routingKey,
		"size":        len(body),
	})

	return nil
}

// Close closes the publisher channel.
func (p *AMQPPublisher) Close() error {
	return p.ch.Close()
}

// Consumer consumes one queue on a dedicated channel with bounded
// prefetch and manual acknowledgement.
type Consumer struct {
	ch      *amqp091.Channel
	queue   string
	tag     string
	logger  observability.Logger
	metrics observability.Metrics
}

// NewConsumer opens a channel with the configured prefetch for the given
// queue. Prefetch bounds unacknowledged in-flight deliveries and
// provides natural backpressure.
func (c *Client) NewConsumer(queueName string, prefetch int) (*Consumer, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open consumer channel: %w", err)
	}

	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("set QoS: %w", err)
	}

	return &Consumer{
		ch:      ch,
		queue:   queueName,
		tag:     "sceneflow-" + queueName,
		logger:  c.logger.WithFields(observability.Fields{"queue": queueName}),
		metrics: c.metrics,
	}, nil
}

// Run consumes deliveries until ctx is cancelled, invoking handler for
// each. A handler error rejects the delivery without requeue; otherwise
// the delivery is acknowledged. The loop never terminates because one
// delivery failed.
//
// On cancellation the consumer stops accepting new deliveries and drains
// what the broker already pushed, so an in-flight pipeline finishes (or
// fails) instead of being interrupted mid-write.
func (r *Consumer) Run(ctx context.Context, handler Handler) error {
	deliveries, err := r.ch.Consume(
		r.queue,
		r.tag,
		false, // auto-ack: we ack manually after a terminal outcome
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %q: %w", r.queue, err)
	}

	r.logger.Info(ctx, "consumer started", nil)

	// Handlers run detached from the run context so shutdown does not
	// cancel an in-flight pipeline.
	handleCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			if err := r.ch.Cancel(r.tag, false); err != nil {
				r.logger.Error(handleCtx, "failed to cancel consumer", err, nil)
			}
			// Drain deliveries already pushed by the broker; the
			// library closes the channel after the cancel completes.
			for d := range deliveries {
				r.handle(handleCtx, d, handler)
			}
			r.logger.Info(handleCtx, "consumer stopped", nil)
			return nil

		case d, ok := <-deliveries:
			if !ok {
				r.logger.Warn(handleCtx, "delivery channel closed", nil)
				return nil
			}
			r.handle(handleCtx, d, handler)
		}
	}
}

func (r *Consumer) handle(ctx context.Context, d amqp091.Delivery, handler Handler) {
	start := time.Now()

	err := handler(ctx, d.Body)
	if err != nil {
		// Poison message: drop instead of retrying indefinitely.
		if nackErr := d.Nack(false, false); nackErr != nil {
			r.logger.Error(ctx, "failed to nack delivery", nackErr, observability.Fields{
				"delivery_tag": d.DeliveryTag,
			})
		}
		r.metrics.RecordError("queue_consume", "handler")
		r.logger.Error(ctx, "delivery rejected", err, observability.Fields{
			"delivery_tag": d.DeliveryTag,
			"redelivered":  d.Redelivered,
		})
		return
	}

	if ackErr := d.Ack(false); ackErr != nil {
		r.logger.Error(ctx, "failed to ack delivery", ackErr, observability.Fields{
			"delivery_tag": d.DeliveryTag,
		})
		return
	}

	r.metrics.RecordSuccess("queue_consume")
	r.metrics.RecordDuration("queue_consume", time.Since(start).Seconds())
}

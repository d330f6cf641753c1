package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/streadway/amqp"

	"performance-service/internal/apperr"
	"performance-service/internal/logger"
	"performance-service/internal/models"
	"performance-service/internal/service"
)

// Handler is the service surface the consumer drives.
type Handler interface {
	Submit(ctx context.Context, userID string, sub models.Submission) (*service.SubmitOutcome, error)
	Reconcile(ctx context.Context, userID string) (int, error)
}

type Consumer interface {
	Start(ctx context.Context) error
	Close() error
}

// errMalformed marks messages that can never succeed and must not be requeued.
var errMalformed = errors.New("malformed message")

type EventConsumer struct {
	conn           *amqp.Connection
	channel        *amqp.Channel
	queueName      string
	handler        Handler
	log            *logger.Logger
	prefetch       int
	messageTimeout time.Duration
	started        bool
	done           chan struct{}
}

func NewEventConsumer(amqpURL, exchange, queueName string, handler Handler, log *logger.Logger) (*EventConsumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if err := declareExchange(channel, exchange); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	queue, err := channel.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	for _, key := range []string{QuizResultSubmit, PerformancePending} {
		if err := channel.QueueBind(queue.Name, key, exchange, false, nil); err != nil {
			channel.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to bind queue to %s: %w", key, err)
		}
	}

	c := newConsumer(handler, log)
	c.conn = conn
	c.channel = channel
	c.queueName = queue.Name
	return c, nil
}

func newConsumer(handler Handler, log *logger.Logger) *EventConsumer {
	return &EventConsumer{
		handler:        handler,
		log:            log,
		prefetch:       10,
		messageTimeout: 30 * time.Second,
		done:           make(chan struct{}),
	}
}

// Start begins consuming in the background until ctx is cancelled or the
// channel closes.
func (c *EventConsumer) Start(ctx context.Context) error {
	if err := c.channel.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := c.channel.Consume(
		c.queueName,
		"",
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.started = true
	go func() {
		defer close(c.done)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					c.log.Warn("delivery channel closed, consumer stopping")
					return
				}
				c.deliver(ctx, msg)
			}
		}
	}()

	c.log.Info("event consumer started", "queue", c.queueName)
	return nil
}

func (c *EventConsumer) deliver(ctx context.Context, msg amqp.Delivery) {
	err := c.processMessage(ctx, msg.RoutingKey, msg.Body)
	if err == nil {
		_ = msg.Ack(false)
		return
	}
	requeue := shouldRequeue(err, msg.Redelivered)
	c.log.Warn("failed to process message",
		"routing_key", msg.RoutingKey, "requeue", requeue, "error", err)
	_ = msg.Nack(false, requeue)
}

// shouldRequeue gives transient failures one more delivery. Malformed or
// invalid submissions are dropped.
func shouldRequeue(err error, redelivered bool) bool {
	if errors.Is(err, errMalformed) || apperr.KindOf(err) == apperr.KindValidation {
		return false
	}
	return !redelivered
}

func (c *EventConsumer) processMessage(ctx context.Context, routingKey string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.messageTimeout)
	defer cancel()

	payload := unwrap(body)
	switch routingKey {
	case QuizResultSubmit:
		var ev models.SubmissionEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("%w: submission: %v", errMalformed, err)
		}
		out, err := c.handler.Submit(ctx, ev.UserID, ev.Submission)
		if err != nil {
			return err
		}
		c.log.Info("processed submission event",
			"user_id", ev.UserID, "result_id", out.Result.ID, "status", out.Status)
		return nil

	case PerformancePending:
		var ev PendingEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("%w: pending: %v", errMalformed, err)
		}
		if ev.UserID == "" {
			return fmt.Errorf("%w: pending event without userId", errMalformed)
		}
		applied, err := c.handler.Reconcile(ctx, ev.UserID)
		if err != nil {
			return err
		}
		c.log.Info("reconciled from pending event", "user_id", ev.UserID, "applied", applied)
		return nil

	default:
		c.log.Warn("unknown routing key", "routing_key", routingKey)
		return nil
	}
}

// unwrap returns the Envelope payload, or body itself for producers that send
// the bare event.
func unwrap(body []byte) []byte {
	var env Envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Type != "" && len(env.Payload) > 0 {
		return env.Payload
	}
	return body
}

// Close stops consumption and waits for the in-flight message to finish.
func (c *EventConsumer) Close() error {
	var firstErr error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.started {
		select {
		case <-c.done:
		case <-time.After(5 * time.Second):
		}
	}
	return firstErr
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v3"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/event-seat-booking/internal/logging"
)

// Handler processes one decoded notification.
type Handler func(ctx context.Context, m BookingNotification) error

// WriterHandler appends each notification as a line to w.
func WriterHandler(w io.Writer) Handler {
	return func(_ context.Context, m BookingNotification) error {
		_, err := fmt.Fprintln(w, m.Line())
		return err
	}
}

// Consumer reads notifications from RabbitMQ and hands them to a Handler.
type Consumer struct {
	url      string
	queue    string
	handle   Handler
	prefetch int
}

// NewConsumer returns a consumer for queue on url.
func NewConsumer(url, queue string, h Handler) *Consumer {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Consumer{url: url, queue: queue, handle: h, prefetch: 50}
}

// Run consumes until ctx is done, reconnecting with exponential backoff
// whenever the broker connection drops.
func (c *Consumer) Run(ctx context.Context) error {
	log := logging.FromContext(ctx).WithField("queue", c.queue)
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0

	err := backoff.RetryNotify(func() error {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			return backoff.Permanent(nil)
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		log.WithError(err).WithField("retry_in", wait.String()).Warn("notification consumer disconnected")
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Consumer) consume(ctx context.Context) error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	logging.FromContext(ctx).WithField("queue", c.queue).Info("notification consumer connected")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.deliver(ctx, d.Body); err != nil {
				logging.FromContext(ctx).WithError(err).Error("notification rejected")
				_ = d.Nack(false, false) // poison messages are dropped, not requeued
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) deliver(ctx context.Context, body []byte) error {
	var m BookingNotification
	if err := json.Unmarshal(body, &m); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if m.BookingID == "" || m.Kind == "" {
		return errors.New("notification without booking id or kind")
	}
	return c.handle(ctx, m)
}

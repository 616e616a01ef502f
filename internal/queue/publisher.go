package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/event-seat-booking/internal/logging"
	"github.com/iliyamo/event-seat-booking/internal/model"
)

// Publisher sends notifications to a durable RabbitMQ queue.  The
// connection is opened lazily and re-opened after a failure.
type Publisher struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns a Publisher for url and queue.  No connection is
// made until the first Notify.
func NewPublisher(url, queue string) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Publisher{url: url, queue: queue}
}

// Notify publishes n as a persistent JSON message.
func (p *Publisher) Notify(ctx context.Context, n model.Notification) error {
	msg, err := encode(n)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channel()
	if err != nil {
		return err
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.reset()
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	logging.FromContext(ctx).WithField("queue", p.queue).WithField("kind", n.Kind).Debug("notification published")
	return nil
}

func encode(n model.Notification) (amqp.Publishing, error) {
	body, err := json.Marshal(FromNotification(n))
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode notification: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(n.Kind),
		MessageId:    n.Booking.ID + ":" + string(n.Kind),
		Body:         body,
	}, nil
}

// channel returns an open channel, dialing when needed.  p.mu is held.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

// LogNotifier writes notifications to the application log.  It stands in
// for the broker when RABBITMQ_URL is not configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n model.Notification) error {
	m := FromNotification(n)
	logging.FromContext(ctx).WithField("kind", m.Kind).WithField("to", m.UserEmail).Info(m.Subject())
	return nil
}

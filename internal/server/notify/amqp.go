package notify

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	amqp "github.com/rabbitmq/amqp091-go"
)

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type dialFunc func(url string) (channel, func() error, error)

func dialAMQP(url string) (channel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	return ch, conn.Close, nil
}

// AMQPPublisher sends each event as a persistent JSON message to a durable
// queue named after the event type, through the default exchange. The
// connection is opened lazily and re-dialed after a failed publish.
type AMQPPublisher struct {
	url  string
	dial dialFunc

	mu        sync.Mutex
	ch        channel
	closeConn func() error
	declared  map[string]bool
}

func NewAMQPPublisher(url string) *AMQPPublisher {
	return &AMQPPublisher{url: url, dial: dialAMQP}
}

func (p *AMQPPublisher) connect() error {
	if p.ch != nil {
		return nil
	}
	ch, closeConn, err := p.dial(p.url)
	if err != nil {
		return err
	}
	p.ch, p.closeConn = ch, closeConn
	p.declared = make(map[string]bool)
	return nil
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.closeConn != nil {
		_ = p.closeConn()
	}
	p.ch, p.closeConn, p.declared = nil, nil, nil
}

func (p *AMQPPublisher) Notify(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	if e.ID == "" {
		id, err := ulid.New(ulid.Timestamp(e.OccurredAt), rand.Reader)
		if err != nil {
			return fmt.Errorf("event id: %w", err)
		}
		e.ID = id.String()
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connect(); err != nil {
		return err
	}

	if !p.declared[e.Type] {
		if _, err := p.ch.QueueDeclare(e.Type, true, false, false, false, nil); err != nil {
			p.reset()
			return fmt.Errorf("rabbitmq queue declare: %w", err)
		}
		p.declared[e.Type] = true
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.ID,
		Timestamp:    e.OccurredAt,
		Type:         e.Type,
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, "", e.Type, false, false, msg); err != nil {
		p.reset()
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

// Close releases the broker connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

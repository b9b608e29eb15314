package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/oklog/ulid/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	key string
	msg amqp.Publishing
}

type fakeChannel struct {
	declared   []string
	published  []published
	publishErr error
	closed     bool
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	if !durable {
		return amqp.Queue{}, errors.New("queue must be durable")
	}
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func newTestPublisher(chans ...*fakeChannel) (*AMQPPublisher, *int) {
	dials := 0
	p := NewAMQPPublisher("amqp://test")
	p.dial = func(string) (channel, func() error, error) {
		if dials >= len(chans) {
			return nil, nil, errors.New("broker down")
		}
		ch := chans[dials]
		dials++
		return ch, func() error { return nil }, nil
	}
	return p, &dials
}

func TestAMQPPublisher_PublishesPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	p, dials := newTestPublisher(ch)

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	ev := Event{Type: AccountRegistered, AccountID: "acc", UserName: "alice", Email: "a@x.io", OccurredAt: at}
	require.NoError(t, p.Notify(context.Background(), ev))
	require.NoError(t, p.Notify(context.Background(), ev))

	assert.Equal(t, 1, *dials)
	assert.Equal(t, []string{AccountRegistered}, ch.declared)
	require.Len(t, ch.published, 2)

	got := ch.published[0]
	assert.Equal(t, AccountRegistered, got.key)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)
	assert.Equal(t, "application/json", got.msg.ContentType)

	var decoded Event
	require.NoError(t, json.Unmarshal(got.msg.Body, &decoded))
	assert.Len(t, decoded.ID, 26)
	assert.Equal(t, decoded.ID, got.msg.MessageId)

	id, err := ulid.ParseStrict(decoded.ID)
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(at), id.Time())

	assert.NotEqual(t, decoded.ID, ch.published[1].msg.MessageId, "every publish gets a fresh id")

	decoded.ID = ""
	assert.Equal(t, ev, decoded)
}

func TestAMQPPublisher_RedialsAfterFailure(t *testing.T) {
	bad := &fakeChannel{publishErr: errors.New("channel closed")}
	good := &fakeChannel{}
	p, dials := newTestPublisher(bad, good)

	ev := Event{Type: PasswordResetRequested, AccountID: "acc", Token: "t"}
	assert.Error(t, p.Notify(context.Background(), ev))
	assert.True(t, bad.closed)

	require.NoError(t, p.Notify(context.Background(), ev))
	assert.Equal(t, 2, *dials)
	assert.Len(t, good.published, 1)
}

func TestAMQPPublisher_DialError(t *testing.T) {
	p, _ := newTestPublisher()
	err := p.Notify(context.Background(), Event{Type: AccountRegistered})
	assert.ErrorContains(t, err, "broker down")
}

func TestAMQPPublisher_Close(t *testing.T) {
	ch := &fakeChannel{}
	p, _ := newTestPublisher(ch)
	require.NoError(t, p.Notify(context.Background(), Event{Type: AccountRegistered}))
	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestNoopAndLogging(t *testing.T) {
	assert.NoError(t, Noop{}.Notify(context.Background(), Event{}))
	assert.NoError(t, Logging{Logger: logging.Nop{}}.Notify(context.Background(), Event{Type: AccountRegistered}))
}

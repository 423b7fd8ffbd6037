package amqp_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"orderflow/internal/adapters/out/notify/amqp"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/ports"

	amqp091 "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp091.Publishing
}

// fakeChannel confirms every publish with ack unless told otherwise.
type fakeChannel struct {
	acks      chan amqp091.Confirmation
	sent      []published
	ack       bool
	silent    bool
	failWith  error
	deliveryN uint64
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{acks: make(chan amqp091.Confirmation, 1), ack: true}
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	if c.failWith != nil {
		return c.failWith
	}
	c.sent = append(c.sent, published{exchange: exchange, key: key, msg: msg})
	c.deliveryN++
	if !c.silent {
		c.acks <- amqp091.Confirmation{DeliveryTag: c.deliveryN, Ack: c.ack}
	}
	return nil
}

func dialer(channels ...*fakeChannel) (amqp.Dialer, *int) {
	dials := 0
	return func() (amqp.Session, error) {
		if dials >= len(channels) {
			return amqp.Session{}, errors.New("broker unreachable")
		}
		ch := channels[dials]
		dials++
		return amqp.Session{Channel: ch, Acks: ch.acks}, nil
	}, &dials
}

func TestPublisher_SendMessage(t *testing.T) {
	ch := newFakeChannel()
	dial, _ := dialer(ch)
	p := amqp.NewPublisher(dial)

	err := p.SendMessage(t.Context(), ports.Message{Key: "o1:preparing:2", Recipient: "+15550100", Text: "Order #7 is being prepared"})

	require.NoError(t, err)
	require.Len(t, ch.sent, 1)
	assert.Equal(t, amqp.Exchange, ch.sent[0].exchange)
	assert.Equal(t, amqp.MessageRoutingKey, ch.sent[0].key)
	assert.Equal(t, "o1:preparing:2", ch.sent[0].msg.MessageId)
	assert.Equal(t, amqp091.Persistent, ch.sent[0].msg.DeliveryMode)

	var body map[string]string
	require.NoError(t, json.Unmarshal(ch.sent[0].msg.Body, &body))
	assert.Equal(t, "+15550100", body["recipient"])
}

func TestPublisher_SendPush(t *testing.T) {
	ch := newFakeChannel()
	dial, _ := dialer(ch)
	p := amqp.NewPublisher(dial)
	orderID := kernel.NewUUID()

	err := p.SendPush(t.Context(), ports.Push{Key: "k", Subscription: "riders", Title: "Ready", Body: "Order #7", OrderID: orderID})

	require.NoError(t, err)
	require.Len(t, ch.sent, 1)
	assert.Equal(t, amqp.PushRoutingKey, ch.sent[0].key)
	var body map[string]string
	require.NoError(t, json.Unmarshal(ch.sent[0].msg.Body, &body))
	assert.Equal(t, orderID.String(), body["order_id"])
}

func TestPublisher_Failures(t *testing.T) {
	t.Run("should report a nack", func(t *testing.T) {
		ch := newFakeChannel()
		ch.ack = false
		dial, _ := dialer(ch)

		err := amqp.NewPublisher(dial).SendMessage(t.Context(), ports.Message{Key: "k"})

		require.ErrorIs(t, err, amqp.ErrNack)
	})

	t.Run("should redial after a failed publish", func(t *testing.T) {
		broken := newFakeChannel()
		broken.failWith = amqp091.ErrClosed
		healthy := newFakeChannel()
		dial, dials := dialer(broken, healthy)
		p := amqp.NewPublisher(dial)

		require.ErrorIs(t, p.SendMessage(t.Context(), ports.Message{Key: "k"}), amqp091.ErrClosed)
		require.NoError(t, p.SendMessage(t.Context(), ports.Message{Key: "k"}))

		assert.Equal(t, 2, *dials)
		assert.Len(t, healthy.sent, 1)
	})

	t.Run("should give up waiting for a confirm when the context ends", func(t *testing.T) {
		ch := newFakeChannel()
		ch.silent = true
		dial, _ := dialer(ch)
		ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
		defer cancel()

		err := amqp.NewPublisher(dial).SendMessage(ctx, ports.Message{Key: "k"})

		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("should fail when the broker cannot be reached", func(t *testing.T) {
		dial, _ := dialer()

		err := amqp.NewPublisher(dial).SendMessage(t.Context(), ports.Message{Key: "k"})

		require.Error(t, err)
	})
}

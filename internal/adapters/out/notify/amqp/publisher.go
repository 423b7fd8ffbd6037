// Package amqp delivers customer messages and rider pushes through RabbitMQ. The
// messaging and push gateways consume from the order_notifications topic exchange; this
// package only publishes, with publisher confirms, so a send succeeds once the broker
// has the message.
package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"orderflow/internal/core/ports"

	amqp091 "github.com/rabbitmq/amqp091-go"
)

const (
	Exchange = "order_notifications"

	MessageRoutingKey = "customer.message"
	PushRoutingKey    = "rider.push"
)

// ErrNack is returned when the broker refuses a message.
var ErrNack = errors.New("publish NACK from broker")

// Channel is the part of *amqp091.Channel the publisher uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Session is one open channel in confirm mode.
type Session struct {
	Channel Channel
	Acks    <-chan amqp091.Confirmation
	Closed  func() bool
	Close   func()
}

// Dialer opens a new session. The publisher calls it again after the broker connection drops.
type Dialer func() (Session, error)

// Publisher implements ports.MessageSender and ports.PushSender. Publishes are serialized
// because confirms arrive in publish order on one channel.
type Publisher struct {
	mu       sync.Mutex
	dial     Dialer
	session  *Session
	exchange string
}

func NewPublisher(dial Dialer) *Publisher {
	return &Publisher{dial: dial, exchange: Exchange}
}

// Dial returns a Dialer for url that declares the exchange on every new session.
func Dial(url string) Dialer {
	return func() (Session, error) {
		conn, err := amqp091.Dial(url)
		if err != nil {
			return Session{}, err
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return Session{}, err
		}
		if err = ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
			_ = conn.Close()
			return Session{}, err
		}
		if err = ch.Confirm(false); err != nil {
			_ = conn.Close()
			return Session{}, err
		}
		acks := ch.NotifyPublish(make(chan amqp091.Confirmation, 1))

		return Session{
			Channel: ch,
			Acks:    acks,
			Closed:  conn.IsClosed,
			Close: func() {
				_ = ch.Close()
				_ = conn.Close()
			},
		}, nil
	}
}

type messageBody struct {
	Key       string `json:"key"`
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

type pushBody struct {
	Key          string `json:"key"`
	Subscription string `json:"subscription"`
	Title        string `json:"title"`
	Body         string `json:"body"`
	OrderID      string `json:"order_id"`
}

func (p *Publisher) SendMessage(ctx context.Context, msg ports.Message) error {
	body, err := json.Marshal(messageBody{Key: msg.Key, Recipient: msg.Recipient, Text: msg.Text})
	if err != nil {
		return err
	}
	return p.publish(ctx, MessageRoutingKey, msg.Key, body)
}

func (p *Publisher) SendPush(ctx context.Context, push ports.Push) error {
	body, err := json.Marshal(pushBody{
		Key:          push.Key,
		Subscription: push.Subscription,
		Title:        push.Title,
		Body:         push.Body,
		OrderID:      push.OrderID.String(),
	})
	if err != nil {
		return err
	}
	return p.publish(ctx, PushRoutingKey, push.Key, body)
}

// publish sends one persistent message and waits for the broker's confirm. MessageId
// carries the idempotency key so consumers can drop redeliveries of a retried send.
func (p *Publisher) publish(ctx context.Context, key, messageID string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	session, err := p.current()
	if err != nil {
		return err
	}

	err = session.Channel.PublishWithContext(ctx, p.exchange, key, false, false, amqp091.Publishing{
		DeliveryMode: amqp091.Persistent,
		ContentType:  "application/json",
		MessageId:    messageID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.drop()
		return fmt.Errorf("publish %s: %w", key, err)
	}

	select {
	case conf, ok := <-session.Acks:
		if !ok {
			p.drop()
			return fmt.Errorf("publish %s: %w", key, amqp091.ErrClosed)
		}
		if !conf.Ack {
			return ErrNack
		}
		return nil
	case <-ctx.Done():
		// A late confirm would be read by the next publish; start over on a fresh channel.
		p.drop()
		return ctx.Err()
	}
}

func (p *Publisher) current() (*Session, error) {
	if p.session != nil && (p.session.Closed == nil || !p.session.Closed()) {
		return p.session, nil
	}
	p.drop()

	session, err := p.dial()
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	p.session = &session
	return p.session, nil
}

func (p *Publisher) drop() {
	if p.session != nil && p.session.Close != nil {
		p.session.Close()
	}
	p.session = nil
}

// Close releases the broker connection.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drop()
}

var (
	_ ports.MessageSender = (*Publisher)(nil)
	_ ports.PushSender    = (*Publisher)(nil)
)

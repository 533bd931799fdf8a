package rabbitmq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ziflex/lecho/v3"
)

// bufPool reuses encode buffers between publishes. With sequential callers
// there is a single buffer in the pool; concurrent publishers scale it up.
var bufPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

const contentTypeJSON = "application/json"

// Notification is the envelope published for every user-facing event.
type Notification struct {
	UserID    int64       `json:"user_id"`
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	CreatedAt time.Time   `json:"created_at"`
}

// Notifier publishes fire-and-forget user notifications to a topic
// exchange. Downstream delivery (email, push, in-app) is somebody else's
// job; this side only guarantees a best-effort publish.
type Notifier struct {
	conn           *amqp.Connection
	publishChannel *amqp.Channel
	exchange       string
	logger         *lecho.Logger
}

type NotifierOption = func(notifier *Notifier)

func WithExchange(exchange string) NotifierOption {
	return func(notifier *Notifier) {
		notifier.exchange = exchange
	}
}

func WithLogger(logger *lecho.Logger) NotifierOption {
	return func(notifier *Notifier) {
		notifier.logger = logger
	}
}

// Dial sets up the connection and declares the notification exchange.
func Dial(uri string, options ...NotifierOption) (*Notifier, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, err
	}
	publishChannel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	notifier := &Notifier{
		conn:           conn,
		publishChannel: publishChannel,
		exchange:       "escrowhub_notifications",
	}
	for _, opt := range options {
		opt(notifier)
	}

	err = publishChannel.ExchangeDeclare(
		notifier.exchange,
		// topic exchange so consumers can bind per event type
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return notifier, nil
}

// Publish sends one notification. The routing key is "user.<event type>".
func (notifier *Notifier) Publish(ctx context.Context, userId int64, eventType string, payload interface{}) error {
	buf := bufPool.Get().(*bytes.Buffer)
	defer bufPool.Put(buf)
	buf.Reset()

	notification := Notification{
		UserID:    userId,
		Type:      eventType,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	if err := json.NewEncoder(buf).Encode(&notification); err != nil {
		return err
	}

	routingKey := fmt.Sprintf("user.%s", eventType)
	err := notifier.publishChannel.PublishWithContext(ctx,
		notifier.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType: contentTypeJSON,
			Body:        buf.Bytes(),
		},
	)
	if err != nil && notifier.logger != nil {
		notifier.logger.Errorf("Failed to publish notification routing_key:%s error: %v", routingKey, err)
	}
	return err
}

func (notifier *Notifier) Close() error {
	return notifier.conn.Close()
}

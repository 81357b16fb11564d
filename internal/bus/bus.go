// Package bus is the message-bus boundary of the mirror pipeline. The
// interfaces here are what the Publisher and Drainer program against;
// the Redis Streams implementation lives alongside, and tests use
// in-memory fakes.
package bus

import (
	"context"
	"time"
)

// ContentTypeJSON is the content type stamped on every mirror message.
const ContentTypeJSON = "application/json"

// Message is one bus message. ReceiptID identifies the delivery (not
// the event) and is what Complete/Abandon operate on.
type Message struct {
	Body          []byte
	ContentType   string
	Subject       string
	MessageID     string
	CorrelationID string
	Properties    map[string]string
	ReceiptID     string
}

// Sender publishes messages to a single topic. Not safe for concurrent
// use; the Publisher serializes access.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

// Receiver consumes one subscription with peek-lock semantics: a
// received message stays locked until Complete removes it or the lock
// lapses and the bus redelivers it. Abandon gives the lock up early.
type Receiver interface {
	Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error)
	Complete(ctx context.Context, msg Message) error
	Abandon(ctx context.Context, msg Message) error
	Close() error
}

// Client owns the bus connection. A Client and the Senders/Receivers it
// hands out must not be shared across drainer instances.
type Client interface {
	NewSender(topic string) (Sender, error)
	NewReceiver(topic, subscription, consumer string) (Receiver, error)
	Close() error
}

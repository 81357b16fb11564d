// Package publish moves built change events onto the bus topic with
// bounded retry. Losing a mirror event is a correctness regression for
// the relational replica, so exhausted retries propagate to the caller
// instead of being swallowed.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"docmirror/internal/bus"
	"docmirror/internal/event"
	mirrorerrors "docmirror/pkg/errors"
)

const baseBackoff = 100 * time.Millisecond

// Publisher serializes envelopes onto a topic. It caches one sender for
// the topic it last published to and rolls the sender over when the
// topic changes.
type Publisher struct {
	client  bus.Client
	retries int
	log     *zap.Logger

	mu     sync.Mutex
	topic  string
	sender bus.Sender
	closed bool
}

func New(client bus.Client, retries int, log *zap.Logger) *Publisher {
	if retries < 1 {
		retries = 1
	}
	return &Publisher{client: client, retries: retries, log: log}
}

// Publish sends ev to topic, retrying transient send failures with
// exponential backoff. After the configured attempts the final error is
// returned wrapped in ErrPublishExhausted.
func (p *Publisher) Publish(ctx context.Context, topic string, ev *event.Envelope) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", ev.ID, err)
	}

	sender, err := p.senderFor(topic)
	if err != nil {
		return err
	}

	msg := bus.Message{
		Body:          body,
		ContentType:   bus.ContentTypeJSON,
		Subject:       ev.Type,
		MessageID:     ev.ID,
		CorrelationID: ev.CorrelationID(),
		Properties: map[string]string{
			"source":    ev.Source,
			"operation": string(ev.Data.Operation),
		},
	}

	var sendErr error
	for attempt := 1; attempt <= p.retries; attempt++ {
		sendErr = sender.Send(ctx, msg)
		if sendErr == nil {
			return nil
		}
		if attempt == p.retries {
			break
		}
		backoff := baseBackoff << (attempt - 1)
		p.log.Warn("publish failed, retrying",
			zap.String("event_id", ev.ID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(sendErr))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	p.log.Error("publish failed after all retries",
		zap.String("event_id", ev.ID),
		zap.String("event_type", ev.Type),
		zap.String("source", ev.Source),
		zap.String("operation", string(ev.Data.Operation)),
		zap.Int("attempts", p.retries),
		zap.Error(sendErr))
	return fmt.Errorf("%w: event %s: %w", mirrorerrors.ErrPublishExhausted, ev.ID, sendErr)
}

// senderFor returns the cached sender for topic, opening one on first
// use. A topic change closes the old sender best-effort and opens a new
// one.
func (p *Publisher) senderFor(topic string) (bus.Sender, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, mirrorerrors.ErrClosed
	}
	if p.sender != nil && p.topic == topic {
		return p.sender, nil
	}
	if p.sender != nil {
		if err := p.sender.Close(); err != nil {
			p.log.Warn("closing stale sender",
				zap.String("topic", p.topic), zap.Error(err))
		}
		// The old sender is gone either way; drop it before opening
		// the replacement so a failed open cannot leave a closed
		// sender cached.
		p.sender = nil
		p.topic = ""
	}
	sender, err := p.client.NewSender(topic)
	if err != nil {
		return nil, fmt.Errorf("open sender for topic %s: %w", topic, err)
	}
	p.topic = topic
	p.sender = sender
	return sender, nil
}

// Shutdown closes the cached sender and the bus client. Safe to call
// when nothing was ever published, and safe to call more than once.
func (p *Publisher) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.sender != nil {
		if err := p.sender.Close(); err != nil {
			p.log.Warn("closing sender on shutdown", zap.Error(err))
		}
		p.sender = nil
	}
	return p.client.Close()
}

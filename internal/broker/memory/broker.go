package memory

import (
	"context"
	"sync"

	"github.com/ambrook/skirmishd/internal/broker"
)

// Message is one captured publish
type Message struct {
	Topic   string
	Payload []byte
}

// Broker is an in-memory broker that records published messages. Used in
// tests and in single-process deployments with no external consumers.
type Broker struct {
	mu       sync.Mutex
	messages []Message
}

// New creates a new in-memory broker
func New() *Broker {
	return &Broker{}
}

// Ensure Broker implements the interface
var _ broker.Broker = (*Broker)(nil)

// Publish records the message
func (b *Broker) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, Message{Topic: topic, Payload: payload})
	return nil
}

// Close is a no-op
func (b *Broker) Close() error {
	return nil
}

// Messages returns a copy of everything published so far
func (b *Broker) Messages() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// MessagesOn returns the payloads published to one topic
func (b *Broker) MessagesOn(topic string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out [][]byte
	for _, m := range b.messages {
		if m.Topic == topic {
			out = append(out, m.Payload)
		}
	}
	return out
}

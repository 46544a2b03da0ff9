package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ambrook/skirmishd/internal/broker"
)

// Broker publishes events over Redis pub/sub
type Broker struct {
	client *redis.Client
}

// New creates a Redis broker from a connection URL
func New(url string) (*Broker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Broker{client: client}, nil
}

// NewWithClient creates a Redis broker with an existing client (for testing)
func NewWithClient(client *redis.Client) *Broker {
	return &Broker{client: client}
}

// Ensure Broker implements the interface
var _ broker.Broker = (*Broker)(nil)

// Publish sends the payload to all subscribers of the topic
func (b *Broker) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.client.Publish(ctx, topic, payload).Err()
}

// Close closes the Redis connection
func (b *Broker) Close() error {
	return b.client.Close()
}

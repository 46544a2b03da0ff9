package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ambrook/skirmishd/internal/broker"
)

func TestPublishReachesSubscriber(t *testing.T) {
	mini := miniredis.RunT(t)

	client := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	b := NewWithClient(client)
	defer func() { _ = b.Close() }()

	ctx := context.Background()

	sub := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	defer func() { _ = sub.Close() }()
	pubsub := sub.Subscribe(ctx, broker.TopicEvents)
	defer func() { _ = pubsub.Close() }()

	// Wait for the subscription to be established
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, broker.TopicEvents, []byte(`{"type":"match_found"}`)))

	select {
	case msg := <-pubsub.Channel():
		require.Equal(t, broker.TopicEvents, msg.Channel)
		require.JSONEq(t, `{"type":"match_found"}`, msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

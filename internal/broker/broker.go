package broker

import "context"

// Broker is the outbound message transport for external consumers such as
// host-provisioning infrastructure and analytics. Publishing is
// fire-and-forget from the core's perspective: a failed publish is logged by
// the caller, never propagated to players.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// Topic names for external consumers
const (
	TopicEvents    = "skirmish.events"
	TopicAnalytics = "skirmish.analytics"
)

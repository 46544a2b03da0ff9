package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ambrook/skirmishd/internal/broker"
	"github.com/ambrook/skirmishd/internal/model"
)

// Dispatcher fans events out to the affected players' SSE streams and
// mirrors every event onto the message broker for external consumers.
// Delivery is best-effort; a player with no open stream simply misses
// the event (the API surface exposes current state for reconnects).
type Dispatcher struct {
	hubs   *HubManager
	broker broker.Broker
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher over the given hub manager and broker
func NewDispatcher(hubs *HubManager, b broker.Broker, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		hubs:   hubs,
		broker: b,
		logger: logger.With(slog.String("component", "dispatch")),
	}
}

// Publish delivers an event to every affected player with an open stream
// and publishes it on the broker's event topic. Errors are logged, never
// returned; event delivery must not fail domain operations.
func (d *Dispatcher) Publish(ctx context.Context, event model.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("failed to marshal event",
			slog.String("event_type", string(event.Type)),
			slog.String("error", err.Error()))
		return
	}

	delivered := 0
	for _, playerID := range event.Affected {
		hub := d.hubs.GetHub(playerID)
		if hub == nil {
			continue
		}
		hub.BroadcastEvent(string(event.Type), string(payload))
		delivered++
	}

	if d.broker != nil {
		if err := d.broker.Publish(ctx, broker.TopicEvents, payload); err != nil {
			d.logger.Warn("failed to publish event to broker",
				slog.String("event_type", string(event.Type)),
				slog.String("error", err.Error()))
		}
	}

	d.logger.Debug("event dispatched",
		slog.String("event_type", string(event.Type)),
		slog.Int("affected", len(event.Affected)),
		slog.Int("delivered", delivered))
}

// Subscribe opens (or reuses) the player's hub and returns a client whose
// ServeSSE streams their events
func (d *Dispatcher) Subscribe(playerID model.PlayerID) *Client {
	hub := d.hubs.GetOrCreateHub(playerID)
	return NewClient(hub)
}

// Release drops one of the player's streams and reports whether it was
// their last. On the last stream the hub is torn down with it.
func (d *Dispatcher) Release(playerID model.PlayerID, client *Client) bool {
	hub := d.hubs.GetHub(playerID)
	if hub == nil {
		return true
	}
	if !hub.release(client) {
		return false
	}
	d.hubs.RemoveHub(playerID)
	return true
}

// Disconnect tears down a player's hub and all of its connections
func (d *Dispatcher) Disconnect(playerID model.PlayerID) {
	d.hubs.RemoveHub(playerID)
}

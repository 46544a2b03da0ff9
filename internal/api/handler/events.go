package handler

import (
	"net/http"

	"github.com/ambrook/skirmishd/internal/api/middleware"
	"github.com/ambrook/skirmishd/internal/dispatch"
	"github.com/ambrook/skirmishd/internal/services/registry"
)

// EventsHandler streams matchmaking events to a player over SSE. The open
// stream is the player's liveness signal: connecting marks them connected
// in the registry, and their last stream closing marks them disconnected,
// which evicts queue entries and flags live sessions. A player with several
// streams open stays connected until all of them close.
type EventsHandler struct {
	dispatcher *dispatch.Dispatcher
	registry   *registry.Service
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(dispatcher *dispatch.Dispatcher, reg *registry.Service) *EventsHandler {
	return &EventsHandler{dispatcher: dispatcher, registry: reg}
}

// Stream handles GET /api/v1/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	client := h.dispatcher.Subscribe(player.ID)
	h.registry.MarkConnected(player.ID)
	defer func() {
		if h.dispatcher.Release(player.ID, client) {
			h.registry.MarkDisconnected(player.ID)
		}
	}()

	client.ServeSSE(w, r)
}

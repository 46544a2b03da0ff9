package dispatch

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ambrook/skirmishd/internal/model"
)

// Hub manages the event streams of a single player. A player can hold more
// than one connection (e.g. game client plus a browser tab); all of them
// receive the same events.
type Hub struct {
	playerID model.PlayerID
	clients  map[*Client]bool
	mu       sync.RWMutex
	logger   *slog.Logger

	broadcast chan []byte
	done      chan struct{}
}

// NewHub creates a new Hub for a player
func NewHub(playerID model.PlayerID, logger *slog.Logger) *Hub {
	return &Hub{
		playerID:  playerID,
		clients:   make(map[*Client]bool),
		logger:    logger.With(slog.String("player_id", string(playerID))),
		broadcast: make(chan []byte, 256),
		done:      make(chan struct{}),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for {
		select {
		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.logger.Warn("event dropped - client buffer full")
				}
			}
			h.mu.RUnlock()

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Register adds a client to the hub. Registering against a closed hub
// closes the client's send channel so its stream loop exits.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		close(client.send)
		return
	default:
	}
	h.clients[client] = true
	h.mu.Unlock()
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.release(client)
}

// release removes one client and reports whether the hub is now empty.
// Idempotent; the shutdown path may have dropped the client already.
func (h *Hub) release(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		h.logger.Info("event stream closed",
			slog.Duration("connection_duration", time.Since(client.connectedAt)))
	}
	return len(h.clients) == 0
}

// Broadcast sends a message to all of the player's connections
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("event dropped - hub buffer full")
	}
}

// BroadcastEvent sends an SSE event with a name and data
func (h *Hub) BroadcastEvent(eventName, data string) {
	h.Broadcast(formatSSEMessage(eventName, data))
}

// Close shuts down the hub
func (h *Hub) Close() {
	close(h.done)
}

// formatSSEMessage formats an SSE message with event name and data.
// Multi-line data gets a "data: " prefix on every line as SSE requires.
func formatSSEMessage(eventName, data string) []byte {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(eventName)
	b.WriteString("\n")
	for _, line := range strings.Split(strings.ReplaceAll(data, "\r\n", "\n"), "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return []byte(b.String())
}

// HubManager holds one hub per connected player
type HubManager struct {
	hubs   map[model.PlayerID]*Hub
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewHubManager creates a new HubManager
func NewHubManager(logger *slog.Logger) *HubManager {
	return &HubManager{
		hubs:   make(map[model.PlayerID]*Hub),
		logger: logger.With(slog.String("component", "dispatch")),
	}
}

// GetOrCreateHub returns the player's hub, creating one if needed
func (m *HubManager) GetOrCreateHub(playerID model.PlayerID) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[playerID]; ok {
		return hub
	}

	hub := NewHub(playerID, m.logger)
	m.hubs[playerID] = hub
	go hub.Run()
	return hub
}

// GetHub returns the player's hub, or nil if the player has no stream
func (m *HubManager) GetHub(playerID model.PlayerID) *Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hubs[playerID]
}

// RemoveHub removes and closes a player's hub
func (m *HubManager) RemoveHub(playerID model.PlayerID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[playerID]; ok {
		hub.Close()
		delete(m.hubs, playerID)
	}
}

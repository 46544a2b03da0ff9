package registry

import (
	"log/slog"
	"sync"

	"github.com/ambrook/skirmishd/internal/model"
)

// DisconnectHandler is invoked when a tracked player drops. The registry
// calls queue and session handlers so that a disconnect becomes an explicit
// signal rather than silently stale state.
type DisconnectHandler func(playerID model.PlayerID)

// Service is the liveness oracle: it tracks which players are reachable and
// what each connected player is currently committed to. A player holds at
// most one commitment at a time, either a queue entry or an unresolved
// session; that invariant is enforced here.
type Service struct {
	logger *slog.Logger

	mu        sync.RWMutex
	connected map[model.PlayerID]bool
	queues    map[model.PlayerID]model.QueueID
	sessions  map[model.PlayerID]model.SessionID

	onQueueDisconnect   DisconnectHandler
	onSessionDisconnect DisconnectHandler
}

// New creates a new session registry
func New(logger *slog.Logger) *Service {
	return &Service{
		logger:    logger.With(slog.String("component", "registry")),
		connected: make(map[model.PlayerID]bool),
		queues:    make(map[model.PlayerID]model.QueueID),
		sessions:  make(map[model.PlayerID]model.SessionID),
	}
}

// SetDisconnectHandlers registers the callbacks fired on disconnect. Must be
// called during wiring, before connections are tracked.
func (s *Service) SetDisconnectHandlers(onQueue, onSession DisconnectHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onQueueDisconnect = onQueue
	s.onSessionDisconnect = onSession
}

// MarkConnected records that the player's connection is live
func (s *Service) MarkConnected(playerID model.PlayerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected[playerID] = true
}

// MarkDisconnected records that the player dropped and fires the handler for
// whatever the player was committed to. A queued player's entry is removed;
// a player in a live session is only flagged, never silently cancelled.
func (s *Service) MarkDisconnected(playerID model.PlayerID) {
	s.mu.Lock()
	delete(s.connected, playerID)
	_, inQueue := s.queues[playerID]
	_, inSession := s.sessions[playerID]
	onQueue := s.onQueueDisconnect
	onSession := s.onSessionDisconnect
	s.mu.Unlock()

	s.logger.Info("player disconnected",
		slog.String("player_id", string(playerID)),
		slog.Bool("was_queued", inQueue),
		slog.Bool("in_session", inSession))

	if inQueue && onQueue != nil {
		onQueue(playerID)
	}
	if inSession && onSession != nil {
		onSession(playerID)
	}
}

// IsConnected reports whether the player's connection is live
func (s *Service) IsConnected(playerID model.PlayerID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected[playerID]
}

// QueueOf returns the queue the player is waiting in, if any
func (s *Service) QueueOf(playerID model.PlayerID) (model.QueueID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.queues[playerID]
	return id, ok
}

// SessionOf returns the unresolved session the player is in, if any
func (s *Service) SessionOf(playerID model.PlayerID) (model.SessionID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.sessions[playerID]
	return id, ok
}

// BindQueue commits every party member to the queue. Fails if any member
// already has a commitment: ErrAlreadyQueued when it is the leader,
// ErrPartyMemberQueued otherwise. On failure no member is bound.
func (s *Service) BindQueue(party model.Party, queueID model.QueueID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, member := range party.Members {
		_, inQueue := s.queues[member]
		_, inSession := s.sessions[member]
		if !inQueue && !inSession {
			continue
		}
		if member == party.Leader {
			return model.ErrAlreadyQueued
		}
		return model.ErrPartyMemberQueued
	}
	for _, member := range party.Members {
		s.queues[member] = queueID
	}
	return nil
}

// UnbindQueue releases the players' queue commitment
func (s *Service) UnbindQueue(players ...model.PlayerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range players {
		delete(s.queues, p)
	}
}

// BindSession moves the players from their queue commitment to a session
// commitment. Used at candidate confirmation, where the queue entries are
// already consumed.
func (s *Service) BindSession(players []model.PlayerID, sessionID model.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range players {
		delete(s.queues, p)
		s.sessions[p] = sessionID
	}
}

// UnbindSession releases the players' session commitment, on terminal states
func (s *Service) UnbindSession(players ...model.PlayerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range players {
		delete(s.sessions, p)
	}
}

package memory

import (
	"context"
	"sync"

	"github.com/ambrook/skirmishd/internal/model"
	"github.com/ambrook/skirmishd/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	players           map[model.PlayerID]*model.Player
	registeredPlayers map[model.PlayerID]*model.RegisteredPlayer
	usernameIndex     map[string]model.PlayerID
	ratingRecords     map[ratingKey][]*model.RatingRecord
	archivedSessions  map[model.SessionID]*model.GameSession
}

type ratingKey struct {
	playerID model.PlayerID
	mode     model.GameMode
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		players:           make(map[model.PlayerID]*model.Player),
		registeredPlayers: make(map[model.PlayerID]*model.RegisteredPlayer),
		usernameIndex:     make(map[string]model.PlayerID),
		ratingRecords:     make(map[ratingKey][]*model.RatingRecord),
		archivedSessions:  make(map[model.SessionID]*model.GameSession),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[player.ID] = player
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return player, nil
}

func (s *Storage) DeletePlayer(ctx context.Context, id model.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, id)
	return nil
}

// Registered player operations

func (s *Storage) SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registeredPlayers[rp.PlayerID] = rp
	s.usernameIndex[rp.Username] = rp.PlayerID
	return nil
}

func (s *Storage) GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rp, ok := s.registeredPlayers[playerID]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return rp, nil
}

func (s *Storage) GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	playerID, ok := s.usernameIndex[username]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	rp, ok := s.registeredPlayers[playerID]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return rp, nil
}

// Rating record operations

func (s *Storage) AppendRatingRecord(ctx context.Context, record *model.RatingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ratingKey{playerID: record.PlayerID, mode: record.Mode}
	s.ratingRecords[key] = append(s.ratingRecords[key], record)
	return nil
}

func (s *Storage) GetLatestRating(ctx context.Context, playerID model.PlayerID, mode model.GameMode) (*model.RatingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.ratingRecords[ratingKey{playerID: playerID, mode: mode}]
	if len(records) == 0 {
		return nil, model.ErrPlayerNotFound
	}
	return records[len(records)-1], nil
}

func (s *Storage) GetRatingHistory(ctx context.Context, playerID model.PlayerID, mode model.GameMode) ([]*model.RatingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.ratingRecords[ratingKey{playerID: playerID, mode: mode}]
	out := make([]*model.RatingRecord, len(records))
	copy(out, records)
	return out, nil
}

// Session archive operations

func (s *Storage) ArchiveSession(ctx context.Context, session *model.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archivedSessions[session.ID] = session
	return nil
}

func (s *Storage) GetArchivedSession(ctx context.Context, id model.SessionID) (*model.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.archivedSessions[id]
	if !ok {
		return nil, model.ErrUnknownSession
	}
	return session, nil
}

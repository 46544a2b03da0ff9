package storage

import (
	"context"

	"github.com/ambrook/skirmishd/internal/model"
)

// Storage defines the interface for data persistence. The core reads current
// ratings at startup, appends new rating records, and archives resolved or
// aborted sessions; it never depends on the backend's internal layout.
type Storage interface {
	// Player operations
	SavePlayer(ctx context.Context, player *model.Player) error
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
	DeletePlayer(ctx context.Context, id model.PlayerID) error

	// Registered player operations
	SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error
	GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error)
	GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error)

	// Rating record operations. Records are append-only: AppendRatingRecord
	// never overwrites, and GetLatestRating returns the most recent record
	// for the player and mode, or model.ErrPlayerNotFound when none exists.
	AppendRatingRecord(ctx context.Context, record *model.RatingRecord) error
	GetLatestRating(ctx context.Context, playerID model.PlayerID, mode model.GameMode) (*model.RatingRecord, error)
	GetRatingHistory(ctx context.Context, playerID model.PlayerID, mode model.GameMode) ([]*model.RatingRecord, error)

	// Session archive operations
	ArchiveSession(ctx context.Context, session *model.GameSession) error
	GetArchivedSession(ctx context.Context, id model.SessionID) (*model.GameSession, error)
}

package redis

import (
	"fmt"

	"github.com/ambrook/skirmishd/internal/model"
)

// Key prefix for all matchmaking data
const keyPrefix = "skirmish"

// Key generation functions for each entity type

// playerKey returns the Redis key for a Player
func playerKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, id)
}

// registeredPlayerKey returns the Redis key for a RegisteredPlayer
func registeredPlayerKey(playerID model.PlayerID) string {
	return fmt.Sprintf("%s:registered_player:%s", keyPrefix, playerID)
}

// usernameIndexKey returns the Redis key for the username -> player_id index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

// ratingJournalKey returns the Redis key for the append-only rating list
// for one player in one mode
func ratingJournalKey(playerID model.PlayerID, mode model.GameMode) string {
	return fmt.Sprintf("%s:ratings:%s:%s", keyPrefix, mode, playerID)
}

// sessionArchiveKey returns the Redis key for an archived GameSession
func sessionArchiveKey(id model.SessionID) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, id)
}

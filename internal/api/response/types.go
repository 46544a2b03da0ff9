package response

import (
	"time"

	"github.com/ambrook/skirmishd/internal/model"
	"github.com/ambrook/skirmishd/internal/services/auth"
)

// Player represents a player in API responses
type Player struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsGuest     bool   `json:"is_guest"`
}

// PlayerFromModel converts a model.Player to a response Player
func PlayerFromModel(p *model.Player) Player {
	return Player{
		ID:          string(p.ID),
		DisplayName: p.DisplayName,
		IsGuest:     p.IsGuest,
	}
}

// AuthResponse is the response for authentication endpoints
type AuthResponse struct {
	Player       Player `json:"player"`
	SessionToken string `json:"session_token"`
}

// AuthResponseFromSession creates an AuthResponse from a session
func AuthResponseFromSession(s *auth.Session) AuthResponse {
	return AuthResponse{
		Player:       PlayerFromModel(&s.Player),
		SessionToken: s.Token,
	}
}

// Rating represents a skill estimate in API responses
type Rating struct {
	Mu        float64 `json:"mu"`
	Sigma     float64 `json:"sigma"`
	Displayed float64 `json:"displayed"`
}

// RatingFromModel converts a model.Rating
func RatingFromModel(r model.Rating) Rating {
	return Rating{
		Mu:        r.Mu,
		Sigma:     r.Sigma,
		Displayed: r.Displayed(),
	}
}

// RatingRecord represents one entry of a player's rating history
type RatingRecord struct {
	Rating    Rating    `json:"rating"`
	SessionID string    `json:"session_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RatingRecordFromModel converts a model.RatingRecord
func RatingRecordFromModel(r *model.RatingRecord) RatingRecord {
	return RatingRecord{
		Rating:    RatingFromModel(r.Rating),
		SessionID: string(r.SessionID),
		CreatedAt: r.CreatedAt,
	}
}

// Queue represents a queue's shape and current depth
type Queue struct {
	ID        string `json:"id"`
	Mode      string `json:"mode"`
	TeamSize  int    `json:"team_size"`
	TeamCount int    `json:"team_count"`
	Depth     int    `json:"depth"`
}

// QueueFromConfig converts a queue config plus its live depth
func QueueFromConfig(cfg model.QueueConfig, depth int) Queue {
	return Queue{
		ID:        string(cfg.ID),
		Mode:      string(cfg.Mode),
		TeamSize:  cfg.TeamSize,
		TeamCount: cfg.TeamCount,
		Depth:     depth,
	}
}

// QueueEntry represents a party's standing search in API responses
type QueueEntry struct {
	EntryID      string    `json:"entry_id"`
	QueueID      string    `json:"queue_id"`
	PartyMembers []string  `json:"party_members"`
	Rating       Rating    `json:"rating"`
	JoinedAt     time.Time `json:"joined_at"`
}

// QueueEntryFromModel converts a model.QueueEntry
func QueueEntryFromModel(e model.QueueEntry) QueueEntry {
	members := make([]string, len(e.Party.Members))
	for i, m := range e.Party.Members {
		members[i] = string(m)
	}
	return QueueEntry{
		EntryID:      string(e.ID),
		QueueID:      string(e.QueueID),
		PartyMembers: members,
		Rating:       RatingFromModel(e.Rating),
		JoinedAt:     e.JoinedAt,
	}
}

// Team represents one team's roster in API responses
type Team struct {
	Players []string `json:"players"`
	Rating  Rating   `json:"rating"`
}

// GameSession represents a session and its lifecycle state
type GameSession struct {
	ID           string     `json:"id"`
	QueueID      string     `json:"queue_id"`
	Mode         string     `json:"mode"`
	State        string     `json:"state"`
	Teams        []Team     `json:"teams"`
	Disconnected []string   `json:"disconnected,omitempty"`
	AbortReason  string     `json:"abort_reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

// GameSessionFromModel converts a model.GameSession
func GameSessionFromModel(g *model.GameSession) GameSession {
	teams := make([]Team, len(g.Teams))
	for i, t := range g.Teams {
		players := make([]string, 0, len(t.Players()))
		for _, p := range t.Players() {
			players = append(players, string(p))
		}
		teams[i] = Team{Players: players, Rating: RatingFromModel(t.Rating())}
	}

	disconnected := make([]string, len(g.Disconnected))
	for i, p := range g.Disconnected {
		disconnected[i] = string(p)
	}

	var resolvedAt *time.Time
	if !g.ResolvedAt.IsZero() {
		t := g.ResolvedAt
		resolvedAt = &t
	}

	return GameSession{
		ID:           string(g.ID),
		QueueID:      string(g.QueueID),
		Mode:         string(g.Mode),
		State:        string(g.State),
		Teams:        teams,
		Disconnected: disconnected,
		AbortReason:  g.AbortReason,
		CreatedAt:    g.CreatedAt,
		ResolvedAt:   resolvedAt,
	}
}

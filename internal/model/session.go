package model

import (
	"math"
	"time"
)

// SessionID identifies a confirmed game session
type SessionID string

// LaunchHandle is the host-infrastructure ticket for a launching session
type LaunchHandle string

// Team is an ordered set of queue entries placed together.
// Parties are allocated whole; a team never holds part of a party.
type Team struct {
	Entries []QueueEntry
}

// Players returns the flattened player IDs of all parties on the team
func (t Team) Players() []PlayerID {
	var ids []PlayerID
	for _, e := range t.Entries {
		ids = append(ids, e.Party.Members...)
	}
	return ids
}

// Rating returns the mean of the team members' rating means, weighted by
// party size, and the pooled uncertainty.
func (t Team) Rating() Rating {
	var mu, sigma2 float64
	var n int
	for _, e := range t.Entries {
		size := float64(e.Party.Size())
		mu += e.Rating.Mu * size
		sigma2 += e.Rating.Sigma * e.Rating.Sigma * size
		n += e.Party.Size()
	}
	if n == 0 {
		return Rating{}
	}
	return Rating{Mu: mu / float64(n), Sigma: math.Sqrt(sigma2 / float64(n))}
}

// MatchCandidate is a proposed, unconfirmed partition of queue entries into
// teams. Produced by search, consumed exactly once by the session machine.
type MatchCandidate struct {
	QueueID  QueueID
	Teams    []Team
	Fairness float64 // lower is fairer
	FoundAt  time.Time
}

// Entries returns every queue entry across all teams
func (c MatchCandidate) Entries() []QueueEntry {
	var entries []QueueEntry
	for _, t := range c.Teams {
		entries = append(entries, t.Entries...)
	}
	return entries
}

// Players returns every player across all teams
func (c MatchCandidate) Players() []PlayerID {
	var ids []PlayerID
	for _, t := range c.Teams {
		ids = append(ids, t.Players()...)
	}
	return ids
}

// SessionState is the lifecycle state of a game session.
// Transitions are one-way; no state is ever revisited.
type SessionState string

const (
	SessionForming   SessionState = "forming"
	SessionLaunching SessionState = "launching"
	SessionLive      SessionState = "live"
	SessionResolved  SessionState = "resolved"
	SessionCancelled SessionState = "cancelled"
	SessionAborted   SessionState = "aborted"
)

// Terminal reports whether the state admits no further transitions
func (s SessionState) Terminal() bool {
	return s == SessionResolved || s == SessionCancelled || s == SessionAborted
}

// TeamOutcome is the final standing of one team. Rank 1 is the winner; equal
// ranks are a draw between those teams.
type TeamOutcome struct {
	Team int // index into GameSession.Teams
	Rank int
}

// SessionResult is the outcome reported by the game host, exactly once
type SessionResult struct {
	Outcomes   []TeamOutcome
	ReportedAt time.Time
}

// GameSession is a confirmed match and its lifecycle state
type GameSession struct {
	ID           SessionID
	QueueID      QueueID
	Mode         GameMode
	Teams        []Team
	State        SessionState
	LaunchHandle LaunchHandle
	Disconnected []PlayerID // flagged mid-match, does not end the session
	Result       *SessionResult
	AbortReason  string
	CreatedAt    time.Time
	LaunchedAt   time.Time
	ResolvedAt   time.Time
}

// HasPlayer reports whether the player is on any team in the session
func (g *GameSession) HasPlayer(id PlayerID) bool {
	for _, t := range g.Teams {
		for _, p := range t.Players() {
			if p == id {
				return true
			}
		}
	}
	return false
}

// Players returns every player in the session
func (g *GameSession) Players() []PlayerID {
	var ids []PlayerID
	for _, t := range g.Teams {
		ids = append(ids, t.Players()...)
	}
	return ids
}

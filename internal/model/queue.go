package model

import "time"

// QueueID identifies a matchmaking queue (e.g. "ladder1v1", "tmm2v2")
type QueueID string

// EntryID identifies a party's standing request within a queue
type EntryID string

// Party is a group of players who must end up on the same team together.
// A solo player is a party of one.
type Party struct {
	Members []PlayerID
	Leader  PlayerID
}

// Size returns the number of players in the party
func (p Party) Size() int {
	return len(p.Members)
}

// Contains reports whether the party includes the given player
func (p Party) Contains(id PlayerID) bool {
	for _, m := range p.Members {
		if m == id {
			return true
		}
	}
	return false
}

// QueueConfig holds the configurable shape and tolerance schedule of a queue
type QueueConfig struct {
	ID        QueueID
	Mode      GameMode
	TeamSize  int // players per team
	TeamCount int // teams per match, 2 for standard ladder
	// Tolerance schedule: the acceptable skill gap starts at InitialTolerance
	// and widens linearly, reaching MaxTolerance after MaxWait in queue.
	InitialTolerance float64
	MaxTolerance     float64
	MaxWait          time.Duration
}

// PlayersPerMatch returns the total player count a full match requires
func (c QueueConfig) PlayersPerMatch() int {
	return c.TeamSize * c.TeamCount
}

// Tolerance returns the acceptable skill gap for an entry that has waited
// for the given duration. Monotonically non-decreasing in waited.
func (c QueueConfig) Tolerance(waited time.Duration) float64 {
	if waited <= 0 {
		return c.InitialTolerance
	}
	if waited >= c.MaxWait || c.MaxWait <= 0 {
		return c.MaxTolerance
	}
	frac := float64(waited) / float64(c.MaxWait)
	return c.InitialTolerance + frac*(c.MaxTolerance-c.InitialTolerance)
}

// QueueEntry is a party's standing request to be matched within one queue.
// Destroyed when matched, cancelled, or the owning player disconnects.
type QueueEntry struct {
	ID       EntryID
	QueueID  QueueID
	Party    Party
	Rating   Rating // aggregate party rating at join time
	JoinedAt time.Time
}

// Waited returns how long the entry has been in the queue as of now
func (e *QueueEntry) Waited(now time.Time) time.Duration {
	return now.Sub(e.JoinedAt)
}

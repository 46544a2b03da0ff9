package model

import "time"

// Rating is a player's skill estimate: a Gaussian belief with mean Mu and
// uncertainty Sigma. Sigma shrinks as the system learns the player's skill.
type Rating struct {
	Mu    float64
	Sigma float64
}

// Displayed returns the conservative rating shown to players (mean minus
// three standard deviations, floored at zero).
func (r Rating) Displayed() float64 {
	v := r.Mu - 3*r.Sigma
	if v < 0 {
		return 0
	}
	return v
}

// RatingRecord is an immutable snapshot of a player's rating after a match.
// Records are append-only per player per mode; history is never rewritten.
type RatingRecord struct {
	PlayerID  PlayerID
	Mode      GameMode
	SessionID SessionID // session that produced this rating, empty for the initial record
	Rating    Rating
	CreatedAt time.Time
}

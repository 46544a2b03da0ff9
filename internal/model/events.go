package model

import "time"

// EventType identifies the type of event
type EventType string

const (
	// Queue events
	EventSearchStarted EventType = "search_started"
	EventSearchStopped EventType = "search_stopped"
	EventQueueRemoved  EventType = "queue_removed"
	EventCalibration   EventType = "calibration_notice"

	// Session events
	EventMatchFound     EventType = "match_found"
	EventMatchCancelled EventType = "match_cancelled"
	EventMatchLaunching EventType = "match_launching"
	EventMatchLive      EventType = "match_live"
	EventMatchAborted   EventType = "match_aborted"
	EventMatchResolved  EventType = "match_resolved"
	EventRatingUpdated  EventType = "rating_updated"
)

// Event is the base structure for all broadcast notifications. Players listed
// in Affected receive it on their connection; the broker receives it verbatim.
type Event struct {
	Type      EventType
	Timestamp time.Time
	QueueID   QueueID   // empty for session-only events
	SessionID SessionID // empty for queue-only events
	Affected  []PlayerID
	Payload   any // type-specific data
}

// SearchStartedPayload contains data for search started events
type SearchStartedPayload struct {
	EntryID EntryID
	Party   Party
}

// SearchStoppedPayload contains data for search stopped events
type SearchStoppedPayload struct {
	EntryID EntryID
	Reason  string // "cancelled", "matched", "disconnected"
}

// QueueRemovedPayload explains why an entry was evicted from the pool
type QueueRemovedPayload struct {
	EntryID      EntryID
	Disconnected PlayerID
}

// CalibrationPayload is sent to high-uncertainty newcomers on first join
type CalibrationPayload struct {
	Sigma    float64
	Progress float64 // 0..100, fraction of the calibration phase completed
}

// MatchFoundPayload contains data for match found events
type MatchFoundPayload struct {
	SessionID SessionID
	QueueID   QueueID
	TeamSize  int
}

// MatchCancelledPayload contains data for match cancelled events
type MatchCancelledPayload struct {
	SessionID SessionID
	Requeued  bool // whether the recipient was returned to the queue
}

// MatchAbortedPayload contains data for match aborted events
type MatchAbortedPayload struct {
	SessionID SessionID
	Reason    string
}

// MatchResolvedPayload contains data for match resolved events
type MatchResolvedPayload struct {
	SessionID SessionID
	Outcomes  []TeamOutcome
}

// RatingUpdatedPayload carries a player's revised estimate after resolution
type RatingUpdatedPayload struct {
	PlayerID PlayerID
	Mode     GameMode
	Old      Rating
	New      Rating
}

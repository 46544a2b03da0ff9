package model

import "errors"

// Common errors used across the application
var (
	// Player errors
	ErrPlayerNotFound = errors.New("player not found")
	ErrPlayerOffline  = errors.New("player is not connected")

	// Queue errors
	ErrUnknownQueue      = errors.New("unknown queue")
	ErrAlreadyQueued     = errors.New("player is already queued or in a match")
	ErrNotQueued         = errors.New("player is not in this queue")
	ErrInvalidPartySize  = errors.New("party size outside queue bounds")
	ErrEntryNotFound     = errors.New("queue entry not found")
	ErrPartyMemberQueued = errors.New("a party member is already queued")

	// Session errors
	ErrUnknownSession    = errors.New("unknown session")
	ErrDuplicateResult   = errors.New("result already applied to session")
	ErrInvalidResult     = errors.New("result does not rank every team")
	ErrProvisionFailed   = errors.New("host provisioning failed")
	ErrLaunchTimeout     = errors.New("session timed out waiting for launch")
	ErrInvalidTransition = errors.New("invalid session state transition")
)

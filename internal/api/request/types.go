package request

// CreateGuestRequest is the request body for creating a guest player
type CreateGuestRequest struct {
	DisplayName string `json:"display_name"`
}

// RegisterRequest is the request body for registering a player
type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// JoinQueueRequest is the request body for joining a queue. PartyMembers
// lists the whole party including the requester; empty means queue solo.
type JoinQueueRequest struct {
	PartyMembers []string `json:"party_members,omitempty"`
}

// ReadyRequest is the host's report that a launched game is ready
type ReadyRequest struct {
	Handle string `json:"handle"`
}

// LaunchFailedRequest is the host's report that a launch failed
type LaunchFailedRequest struct {
	Handle string `json:"handle"`
	Reason string `json:"reason"`
}

// TeamOutcome is one team's final standing in a result report
type TeamOutcome struct {
	Team int `json:"team"`
	Rank int `json:"rank"`
}

// ResultRequest is the host's final result report for a session
type ResultRequest struct {
	Outcomes []TeamOutcome `json:"outcomes"`
}

package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ambrook/skirmishd/internal/model"
	"github.com/ambrook/skirmishd/internal/services/auth"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodePlayerNotFound     = "PLAYER_NOT_FOUND"
	CodePlayerOffline      = "PLAYER_OFFLINE"
	CodeUnknownQueue       = "UNKNOWN_QUEUE"
	CodeAlreadyQueued      = "ALREADY_QUEUED"
	CodeNotQueued          = "NOT_QUEUED"
	CodeInvalidPartySize   = "INVALID_PARTY_SIZE"
	CodeEntryNotFound      = "ENTRY_NOT_FOUND"
	CodeUnknownSession     = "UNKNOWN_SESSION"
	CodeDuplicateResult    = "DUPLICATE_RESULT"
	CodeProvisionFailed    = "PROVISION_FAILED"
	CodeLaunchTimeout      = "LAUNCH_TIMEOUT"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeUsernameExists     = "USERNAME_EXISTS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInternalError      = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	// Check for specific error types
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	// Map model errors
	switch {
	case errors.Is(err, model.ErrPlayerNotFound):
		return &httpError{http.StatusNotFound, APIError{CodePlayerNotFound, "Player not found"}}
	case errors.Is(err, model.ErrPlayerOffline):
		return &httpError{http.StatusConflict, APIError{CodePlayerOffline, "Player is not connected"}}
	case errors.Is(err, model.ErrUnknownQueue):
		return &httpError{http.StatusNotFound, APIError{CodeUnknownQueue, "Queue not found"}}
	case errors.Is(err, model.ErrAlreadyQueued):
		return &httpError{http.StatusConflict, APIError{CodeAlreadyQueued, "Already searching or in a match"}}
	case errors.Is(err, model.ErrNotQueued):
		return &httpError{http.StatusNotFound, APIError{CodeNotQueued, "Not searching in this queue"}}
	case errors.Is(err, model.ErrInvalidPartySize):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidPartySize, "Party size not allowed for this queue"}}
	case errors.Is(err, model.ErrPartyMemberQueued):
		return &httpError{http.StatusConflict, APIError{CodeAlreadyQueued, "A party member is already searching or in a match"}}
	case errors.Is(err, model.ErrEntryNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeEntryNotFound, "Queue entry not found"}}
	case errors.Is(err, model.ErrUnknownSession):
		return &httpError{http.StatusNotFound, APIError{CodeUnknownSession, "Session not found"}}
	case errors.Is(err, model.ErrDuplicateResult):
		return &httpError{http.StatusConflict, APIError{CodeDuplicateResult, "Result already reported for this session"}}
	case errors.Is(err, model.ErrInvalidResult):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, "Result must rank every team"}}
	case errors.Is(err, model.ErrProvisionFailed):
		return &httpError{http.StatusBadGateway, APIError{CodeProvisionFailed, "Host provisioning failed"}}
	case errors.Is(err, model.ErrLaunchTimeout):
		return &httpError{http.StatusGatewayTimeout, APIError{CodeLaunchTimeout, "Host did not become ready in time"}}
	case errors.Is(err, model.ErrInvalidTransition):
		return &httpError{http.StatusConflict, APIError{CodeInvalidTransition, "Operation not valid in the session's current state"}}

	// Map auth errors
	case errors.Is(err, auth.ErrInvalidCredentials):
		return &httpError{http.StatusUnauthorized, APIError{CodeInvalidCredentials, "Invalid username or password"}}
	case errors.Is(err, auth.ErrInvalidSession):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Invalid or expired session"}}
	case errors.Is(err, auth.ErrUsernameExists):
		return &httpError{http.StatusConflict, APIError{CodeUsernameExists, "Username already exists"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}

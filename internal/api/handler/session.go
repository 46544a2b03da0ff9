package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ambrook/skirmishd/internal/api/middleware"
	"github.com/ambrook/skirmishd/internal/api/request"
	"github.com/ambrook/skirmishd/internal/api/response"
	"github.com/ambrook/skirmishd/internal/model"
	"github.com/ambrook/skirmishd/internal/services/session"
)

// SessionHandler handles game session endpoints: player-facing state reads
// and the host's lifecycle reports
type SessionHandler struct {
	sessions *session.Service
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *session.Service) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// GetMine handles GET /api/v1/sessions/mine. The re-query path for a
// reconnecting player: missed events are not replayed, current state is.
func (h *SessionHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	gameSession, ok := h.sessions.SessionOf(player.ID)
	if !ok {
		WriteError(w, model.ErrUnknownSession)
		return
	}

	response.JSON(w, http.StatusOK, response.GameSessionFromModel(gameSession))
}

// Get handles GET /api/v1/sessions/{session_id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID := model.SessionID(mux.Vars(r)["session_id"])

	gameSession, err := h.sessions.Get(sessionID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GameSessionFromModel(gameSession))
}

// Ready handles POST /api/v1/hosts/ready
func (h *SessionHandler) Ready(w http.ResponseWriter, r *http.Request) {
	var req request.ReadyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.Handle == "" {
		WriteError(w, NewInvalidRequestError("handle is required"))
		return
	}

	if err := h.sessions.HandleReady(r.Context(), model.LaunchHandle(req.Handle)); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// LaunchFailed handles POST /api/v1/hosts/launch-failed
func (h *SessionHandler) LaunchFailed(w http.ResponseWriter, r *http.Request) {
	var req request.LaunchFailedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if req.Handle == "" {
		WriteError(w, NewInvalidRequestError("handle is required"))
		return
	}

	if err := h.sessions.HandleLaunchFailed(r.Context(), model.LaunchHandle(req.Handle), req.Reason); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// Result handles POST /api/v1/sessions/{session_id}/result
func (h *SessionHandler) Result(w http.ResponseWriter, r *http.Request) {
	sessionID := model.SessionID(mux.Vars(r)["session_id"])

	var req request.ResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if len(req.Outcomes) == 0 {
		WriteError(w, NewInvalidRequestError("outcomes are required"))
		return
	}

	outcomes := make([]model.TeamOutcome, len(req.Outcomes))
	for i, o := range req.Outcomes {
		outcomes[i] = model.TeamOutcome{Team: o.Team, Rank: o.Rank}
	}

	if err := h.sessions.HandleResult(r.Context(), sessionID, outcomes); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// Abandoned handles POST /api/v1/sessions/{session_id}/abandoned
func (h *SessionHandler) Abandoned(w http.ResponseWriter, r *http.Request) {
	sessionID := model.SessionID(mux.Vars(r)["session_id"])

	if err := h.sessions.HandleAbandoned(r.Context(), sessionID); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

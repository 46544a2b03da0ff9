package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ambrook/skirmishd/internal/api/middleware"
	"github.com/ambrook/skirmishd/internal/api/request"
	"github.com/ambrook/skirmishd/internal/api/response"
	"github.com/ambrook/skirmishd/internal/dispatch"
	"github.com/ambrook/skirmishd/internal/model"
	"github.com/ambrook/skirmishd/internal/services/auth"
	"github.com/ambrook/skirmishd/internal/services/rating"
	"github.com/ambrook/skirmishd/internal/storage"
)

// PlayerHandler handles player and rating endpoints
type PlayerHandler struct {
	authService   *auth.Service
	ratingService *rating.Service
	dispatcher    *dispatch.Dispatcher
	storage       storage.Storage
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(authService *auth.Service, ratingService *rating.Service, dispatcher *dispatch.Dispatcher, storage storage.Storage) *PlayerHandler {
	return &PlayerHandler{
		authService:   authService,
		ratingService: ratingService,
		dispatcher:    dispatcher,
		storage:       storage,
	}
}

// CreateGuest handles POST /api/v1/players/guest
func (h *PlayerHandler) CreateGuest(w http.ResponseWriter, r *http.Request) {
	var req request.CreateGuestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.DisplayName == "" {
		WriteError(w, NewInvalidRequestError("display_name is required"))
		return
	}

	session, err := h.authService.CreateGuestPlayer(r.Context(), req.DisplayName)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.AuthResponseFromSession(session))
}

// Register handles POST /api/v1/players/register
func (h *PlayerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.Username == "" {
		WriteError(w, NewInvalidRequestError("username is required"))
		return
	}
	if req.Password == "" {
		WriteError(w, NewInvalidRequestError("password is required"))
		return
	}
	if req.DisplayName == "" {
		WriteError(w, NewInvalidRequestError("display_name is required"))
		return
	}

	session, err := h.authService.RegisterPlayer(r.Context(), req.Username, req.Password, req.DisplayName)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.AuthResponseFromSession(session))
}

// Login handles POST /api/v1/players/login
func (h *PlayerHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.Username == "" {
		WriteError(w, NewInvalidRequestError("username is required"))
		return
	}
	if req.Password == "" {
		WriteError(w, NewInvalidRequestError("password is required"))
		return
	}

	session, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.AuthResponseFromSession(session))
}

// Logout handles POST /api/v1/players/logout. Invalidating the session
// also closes any event streams still authenticated with the dead token.
func (h *PlayerHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if session := middleware.GetSession(r.Context()); session != nil {
		h.authService.InvalidateSession(session.Token)
		h.dispatcher.Disconnect(session.PlayerID)
	}
	response.NoContent(w)
}

// GetMe handles GET /api/v1/players/me
func (h *PlayerHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())
	response.JSON(w, http.StatusOK, response.PlayerFromModel(player))
}

// GetRating handles GET /api/v1/players/me/ratings/{mode}
func (h *PlayerHandler) GetRating(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())
	mode := model.GameMode(mux.Vars(r)["mode"])

	estimate, err := h.ratingService.Estimate(r.Context(), player.ID, mode)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.RatingFromModel(estimate))
}

// GetRatingHistory handles GET /api/v1/players/me/ratings/{mode}/history
func (h *PlayerHandler) GetRatingHistory(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())
	mode := model.GameMode(mux.Vars(r)["mode"])

	records, err := h.storage.GetRatingHistory(r.Context(), player.ID, mode)
	if err != nil {
		WriteError(w, err)
		return
	}

	out := make([]response.RatingRecord, len(records))
	for i, rec := range records {
		out[i] = response.RatingRecordFromModel(rec)
	}
	response.JSON(w, http.StatusOK, out)
}

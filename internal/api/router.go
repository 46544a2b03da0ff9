package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ambrook/skirmishd/internal/api/handler"
	"github.com/ambrook/skirmishd/internal/api/middleware"
	"github.com/ambrook/skirmishd/internal/dispatch"
	"github.com/ambrook/skirmishd/internal/services/auth"
	"github.com/ambrook/skirmishd/internal/services/queue"
	"github.com/ambrook/skirmishd/internal/services/rating"
	"github.com/ambrook/skirmishd/internal/services/registry"
	"github.com/ambrook/skirmishd/internal/services/session"
	"github.com/ambrook/skirmishd/internal/storage"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger          *slog.Logger
	AuthService     *auth.Service
	RatingService   *rating.Service
	QueueController *queue.Controller
	SessionService  *session.Service
	Registry        *registry.Service
	Dispatcher      *dispatch.Dispatcher
	Storage         storage.Storage
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	playerHandler := handler.NewPlayerHandler(cfg.AuthService, cfg.RatingService, cfg.Dispatcher, cfg.Storage)
	queueHandler := handler.NewQueueHandler(cfg.QueueController)
	sessionHandler := handler.NewSessionHandler(cfg.SessionService)
	eventsHandler := handler.NewEventsHandler(cfg.Dispatcher, cfg.Registry)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.AuthService)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Player routes (no auth required for creating players/logging in)
	api.HandleFunc("/players/guest", playerHandler.CreateGuest).Methods(http.MethodPost)
	api.HandleFunc("/players/register", playerHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/players/login", playerHandler.Login).Methods(http.MethodPost)

	// Protected player routes
	playerProtected := api.PathPrefix("/players").Subrouter()
	playerProtected.Use(authMiddleware)
	playerProtected.HandleFunc("/logout", playerHandler.Logout).Methods(http.MethodPost)
	playerProtected.HandleFunc("/me", playerHandler.GetMe).Methods(http.MethodGet)
	playerProtected.HandleFunc("/me/ratings/{mode}", playerHandler.GetRating).Methods(http.MethodGet)
	playerProtected.HandleFunc("/me/ratings/{mode}/history", playerHandler.GetRatingHistory).Methods(http.MethodGet)

	// Queue routes (all require auth)
	queues := api.PathPrefix("/queues").Subrouter()
	queues.Use(authMiddleware)
	queues.HandleFunc("", queueHandler.List).Methods(http.MethodGet)
	queues.HandleFunc("/entry", queueHandler.GetEntry).Methods(http.MethodGet)
	queues.HandleFunc("/{queue_id}/join", queueHandler.Join).Methods(http.MethodPost)
	queues.HandleFunc("/{queue_id}/leave", queueHandler.Leave).Methods(http.MethodPost)

	// Session routes (auth for player reads)
	sessions := api.PathPrefix("/sessions").Subrouter()
	sessions.Use(authMiddleware)
	sessions.HandleFunc("/mine", sessionHandler.GetMine).Methods(http.MethodGet)
	sessions.HandleFunc("/{session_id}", sessionHandler.Get).Methods(http.MethodGet)

	// Host reporting routes. The game host infrastructure sits behind the
	// perimeter, not behind player auth.
	api.HandleFunc("/hosts/ready", sessionHandler.Ready).Methods(http.MethodPost)
	api.HandleFunc("/hosts/launch-failed", sessionHandler.LaunchFailed).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{session_id}/result", sessionHandler.Result).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{session_id}/abandoned", sessionHandler.Abandoned).Methods(http.MethodPost)

	// Event stream (auth; the stream doubles as the liveness signal)
	events := api.PathPrefix("/events").Subrouter()
	events.Use(authMiddleware)
	events.HandleFunc("", eventsHandler.Stream).Methods(http.MethodGet)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

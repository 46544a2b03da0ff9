package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ambrook/skirmishd/internal/dependencies/clock"
	"github.com/ambrook/skirmishd/internal/dependencies/random"
	"github.com/ambrook/skirmishd/internal/dispatch"
	"github.com/ambrook/skirmishd/internal/model"
	"github.com/ambrook/skirmishd/internal/provision"
	"github.com/ambrook/skirmishd/internal/services/queue"
	"github.com/ambrook/skirmishd/internal/services/rating"
	"github.com/ambrook/skirmishd/internal/services/registry"
	"github.com/ambrook/skirmishd/internal/storage"
)

const (
	// SessionIDLength is the length of generated session identifiers
	SessionIDLength = 16
	// SessionIDAlphabet is the characters used in session identifiers
	SessionIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// Config holds the session machine's tuning knobs
type Config struct {
	// LaunchTimeout is how long a Launching session waits for the host's
	// ready signal before aborting
	LaunchTimeout time.Duration
}

// DefaultConfig returns the default session config
func DefaultConfig() Config {
	return Config{LaunchTimeout: 60 * time.Second}
}

// Service owns every live GameSession and drives its one-way lifecycle:
// Forming, Launching, Live, then one of the terminals Resolved, Cancelled or
// Aborted. A terminal session is archived and dropped from the live table,
// which is what makes double rating updates and double releases impossible:
// the second report finds no live session.
type Service struct {
	mu       sync.Mutex
	sessions map[model.SessionID]*model.GameSession
	handles  map[model.LaunchHandle]model.SessionID

	storage     storage.Storage
	rating      *rating.Service
	registry    *registry.Service
	queues      *queue.Controller
	dispatcher  *dispatch.Dispatcher
	provisioner provision.Provisioner
	clock       clock.Clock
	random      random.Random
	cfg         Config
	logger      *slog.Logger
}

// New creates a new session service
func New(
	storage storage.Storage,
	ratingService *rating.Service,
	reg *registry.Service,
	queues *queue.Controller,
	dispatcher *dispatch.Dispatcher,
	provisioner provision.Provisioner,
	clock clock.Clock,
	random random.Random,
	cfg Config,
	logger *slog.Logger,
) *Service {
	return &Service{
		sessions:    make(map[model.SessionID]*model.GameSession),
		handles:     make(map[model.LaunchHandle]model.SessionID),
		storage:     storage,
		rating:      ratingService,
		registry:    reg,
		queues:      queues,
		dispatcher:  dispatcher,
		provisioner: provisioner,
		clock:       clock,
		random:      random,
		cfg:         cfg,
		logger:      logger.With(slog.String("component", "session")),
	}
}

// Get returns a live session by ID
func (s *Service) Get(sessionID model.SessionID) (*model.GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, model.ErrUnknownSession
	}
	copied := *session
	return &copied, nil
}

// SessionOf returns the live session containing the given player, if any
func (s *Service) SessionOf(playerID model.PlayerID) (*model.GameSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if session.HasPlayer(playerID) {
			copied := *session
			return &copied, true
		}
	}
	return nil, false
}

// Confirm consumes a match candidate. Every player must still be connected;
// if one dropped between search and confirmation the match is cancelled and
// the connected parties return to the queue with their original join times.
// Otherwise the session forms, requests a host, and enters Launching. The
// returned session may already be in Cancelled.
func (s *Service) Confirm(ctx context.Context, candidate model.MatchCandidate) (*model.GameSession, error) {
	mode, err := s.queueMode(candidate.QueueID)
	if err != nil {
		return nil, err
	}

	session := &model.GameSession{
		ID:        model.SessionID(s.random.String(SessionIDLength, SessionIDAlphabet)),
		QueueID:   candidate.QueueID,
		Mode:      mode,
		Teams:     candidate.Teams,
		State:     model.SessionForming,
		CreatedAt: s.clock.Now(),
	}
	players := session.Players()

	for _, p := range players {
		if !s.registry.IsConnected(p) {
			s.logger.Info("match cancelled, player dropped before confirmation",
				slog.String("session_id", string(session.ID)),
				slog.String("player_id", string(p)))
			s.cancel(ctx, session, candidate.Entries())
			return session, nil
		}
	}

	s.registry.BindSession(players, session.ID)
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	s.publish(ctx, model.Event{
		Type:      model.EventMatchFound,
		Timestamp: session.CreatedAt,
		QueueID:   session.QueueID,
		SessionID: session.ID,
		Affected:  players,
		Payload: model.MatchFoundPayload{
			SessionID: session.ID,
			QueueID:   session.QueueID,
			TeamSize:  len(session.Teams[0].Players()),
		},
	})

	handle, err := s.provisioner.RequestLaunch(ctx, session)
	if err != nil {
		s.logger.Warn("host provisioning failed",
			slog.String("session_id", string(session.ID)),
			slog.String("error", err.Error()))
		s.mu.Lock()
		delete(s.sessions, session.ID)
		s.mu.Unlock()
		s.registry.UnbindSession(players...)
		s.cancel(ctx, session, candidate.Entries())
		return session, nil
	}

	s.mu.Lock()
	session.State = model.SessionLaunching
	session.LaunchHandle = handle
	session.LaunchedAt = s.clock.Now()
	s.handles[handle] = session.ID
	s.mu.Unlock()

	s.logger.Info("session launching",
		slog.String("session_id", string(session.ID)),
		slog.String("launch_handle", string(handle)))

	s.publish(ctx, model.Event{
		Type:      model.EventMatchLaunching,
		Timestamp: s.clock.Now(),
		SessionID: session.ID,
		Affected:  players,
	})

	copied := *session
	return &copied, nil
}

// HandleReady moves a Launching session to Live on the host's ready signal
func (s *Service) HandleReady(ctx context.Context, handle model.LaunchHandle) error {
	s.mu.Lock()
	sessionID, ok := s.handles[handle]
	if !ok {
		s.mu.Unlock()
		return model.ErrUnknownSession
	}
	session := s.sessions[sessionID]
	if session.State != model.SessionLaunching {
		s.mu.Unlock()
		return model.ErrInvalidTransition
	}
	session.State = model.SessionLive
	players := session.Players()
	s.mu.Unlock()

	s.logger.Info("session live", slog.String("session_id", string(sessionID)))

	s.publish(ctx, model.Event{
		Type:      model.EventMatchLive,
		Timestamp: s.clock.Now(),
		SessionID: sessionID,
		Affected:  players,
	})
	return nil
}

// HandleLaunchFailed aborts a Launching session on the host's failure
// report. No rating update happens; connected members return to the queue.
func (s *Service) HandleLaunchFailed(ctx context.Context, handle model.LaunchHandle, reason string) error {
	s.mu.Lock()
	sessionID, ok := s.handles[handle]
	s.mu.Unlock()
	if !ok {
		return model.ErrUnknownSession
	}
	return s.abort(ctx, sessionID, reason, true)
}

// CheckLaunchTimeouts aborts every Launching session whose host never
// reported ready within the configured timeout. Returns the number aborted.
func (s *Service) CheckLaunchTimeouts(ctx context.Context) int {
	s.mu.Lock()
	var expired []model.SessionID
	for id, session := range s.sessions {
		if session.State == model.SessionLaunching &&
			s.clock.Since(session.LaunchedAt) >= s.cfg.LaunchTimeout {
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()

	for _, id := range expired {
		s.logger.Warn("session launch timed out",
			slog.String("session_id", string(id)),
			slog.String("error", model.ErrLaunchTimeout.Error()))
		if err := s.abort(ctx, id, "launch timeout", true); err != nil {
			s.logger.Error("failed to abort timed out session",
				slog.String("session_id", string(id)),
				slog.String("error", err.Error()))
		}
	}
	return len(expired)
}

// HandleResult resolves a Live session with the host's reported outcome:
// ratings update once, new records append to every player's history, the
// session archives, and the players are free again. A report for an unknown
// or already terminal session is dropped.
func (s *Service) HandleResult(ctx context.Context, sessionID model.SessionID, outcomes []model.TeamOutcome) error {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		// A terminal session has left the live table; an archived one means
		// this is a repeat report, which must not reapply anything
		if _, err := s.storage.GetArchivedSession(ctx, sessionID); err == nil {
			s.logger.Warn("duplicate result dropped",
				slog.String("session_id", string(sessionID)))
			return model.ErrDuplicateResult
		}
		s.logger.Warn("result for unknown session dropped",
			slog.String("session_id", string(sessionID)))
		return model.ErrUnknownSession
	}
	if session.State != model.SessionLive {
		s.mu.Unlock()
		s.logger.Warn("result for non-live session dropped",
			slog.String("session_id", string(sessionID)),
			slog.String("state", string(session.State)))
		return model.ErrInvalidTransition
	}
	ranked := make(map[int]bool, len(outcomes))
	for _, o := range outcomes {
		ranked[o.Team] = true
	}
	for i := range session.Teams {
		if !ranked[i] {
			s.mu.Unlock()
			return model.ErrInvalidResult
		}
	}
	now := s.clock.Now()
	session.State = model.SessionResolved
	session.Result = &model.SessionResult{Outcomes: outcomes, ReportedAt: now}
	session.ResolvedAt = now
	delete(s.sessions, sessionID)
	delete(s.handles, session.LaunchHandle)
	s.mu.Unlock()

	players := session.Players()

	newRatings, err := s.applyRatings(ctx, session, outcomes)
	if err != nil {
		// The session stays resolved; ratings are the casualty, not the
		// state machine
		s.logger.Error("failed to apply rating update",
			slog.String("session_id", string(sessionID)),
			slog.String("error", err.Error()))
	}

	if err := s.storage.ArchiveSession(ctx, session); err != nil {
		s.logger.Error("failed to archive session",
			slog.String("session_id", string(sessionID)),
			slog.String("error", err.Error()))
	}
	s.registry.UnbindSession(players...)

	s.logger.Info("session resolved",
		slog.String("session_id", string(sessionID)),
		slog.Int("teams", len(session.Teams)))

	s.publish(ctx, model.Event{
		Type:      model.EventMatchResolved,
		Timestamp: now,
		SessionID: sessionID,
		Affected:  players,
		Payload:   model.MatchResolvedPayload{SessionID: sessionID, Outcomes: outcomes},
	})
	for playerID, update := range newRatings {
		s.publish(ctx, model.Event{
			Type:      model.EventRatingUpdated,
			Timestamp: now,
			SessionID: sessionID,
			Affected:  []model.PlayerID{playerID},
			Payload: model.RatingUpdatedPayload{
				PlayerID: playerID,
				Mode:     session.Mode,
				Old:      update.before,
				New:      update.after,
			},
		})
	}
	return nil
}

// HandleAbandoned aborts a Live session that all participants walked away
// from. No rating update; the match never produced an outcome.
func (s *Service) HandleAbandoned(ctx context.Context, sessionID model.SessionID) error {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		if _, err := s.storage.GetArchivedSession(ctx, sessionID); err == nil {
			return model.ErrDuplicateResult
		}
		return model.ErrUnknownSession
	}
	if session.State != model.SessionLive {
		s.mu.Unlock()
		return model.ErrInvalidTransition
	}
	s.mu.Unlock()
	// An abandoned live match does not requeue anyone; joining again is the
	// player's call
	return s.abort(ctx, sessionID, "abandoned", false)
}

// NotifyDisconnect handles a player drop for whatever session holds the
// player. A Launching session aborts, requeueing the remaining connected
// members; a Live session only flags the player, the host's final report
// still decides the outcome.
func (s *Service) NotifyDisconnect(ctx context.Context, playerID model.PlayerID) {
	sessionID, ok := s.registry.SessionOf(playerID)
	if !ok {
		return
	}

	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return
	}
	state := session.State
	if state == model.SessionLive {
		session.Disconnected = append(session.Disconnected, playerID)
	}
	s.mu.Unlock()

	switch state {
	case model.SessionForming, model.SessionLaunching:
		s.logger.Info("player dropped before launch, aborting session",
			slog.String("session_id", string(sessionID)),
			slog.String("player_id", string(playerID)))
		if err := s.abort(ctx, sessionID, "player disconnected before launch", true); err != nil {
			s.logger.Error("failed to abort session on disconnect",
				slog.String("session_id", string(sessionID)),
				slog.String("error", err.Error()))
		}
	case model.SessionLive:
		s.logger.Info("player dropped mid-match, session continues",
			slog.String("session_id", string(sessionID)),
			slog.String("player_id", string(playerID)))
	}
}

// cancel terminates a Forming session before it was ever committed:
// connected parties go back to their queues with original join times
func (s *Service) cancel(ctx context.Context, session *model.GameSession, entries []model.QueueEntry) {
	now := s.clock.Now()
	session.State = model.SessionCancelled
	session.ResolvedAt = now

	s.queues.Release(ctx, entries)

	if err := s.storage.ArchiveSession(ctx, session); err != nil {
		s.logger.Error("failed to archive cancelled session",
			slog.String("session_id", string(session.ID)),
			slog.String("error", err.Error()))
	}

	var affected []model.PlayerID
	for _, p := range session.Players() {
		if s.registry.IsConnected(p) {
			affected = append(affected, p)
		}
	}
	s.publish(ctx, model.Event{
		Type:      model.EventMatchCancelled,
		Timestamp: now,
		QueueID:   session.QueueID,
		SessionID: session.ID,
		Affected:  affected,
		Payload:   model.MatchCancelledPayload{SessionID: session.ID, Requeued: true},
	})
}

// abort terminates a session after Forming with no rating update. When
// requeue is set the connected members' entries return to the pool with
// their original join times.
func (s *Service) abort(ctx context.Context, sessionID model.SessionID, reason string, requeue bool) error {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return model.ErrUnknownSession
	}
	if session.State.Terminal() {
		s.mu.Unlock()
		return model.ErrInvalidTransition
	}
	now := s.clock.Now()
	session.State = model.SessionAborted
	session.AbortReason = reason
	session.ResolvedAt = now
	delete(s.sessions, sessionID)
	delete(s.handles, session.LaunchHandle)
	s.mu.Unlock()

	players := session.Players()
	s.registry.UnbindSession(players...)
	if requeue {
		var entries []model.QueueEntry
		for _, t := range session.Teams {
			entries = append(entries, t.Entries...)
		}
		s.queues.Release(ctx, entries)
	}

	if err := s.storage.ArchiveSession(ctx, session); err != nil {
		s.logger.Error("failed to archive aborted session",
			slog.String("session_id", string(sessionID)),
			slog.String("error", err.Error()))
	}

	s.logger.Info("session aborted",
		slog.String("session_id", string(sessionID)),
		slog.String("reason", reason))

	var affected []model.PlayerID
	for _, p := range players {
		if s.registry.IsConnected(p) {
			affected = append(affected, p)
		}
	}
	s.publish(ctx, model.Event{
		Type:      model.EventMatchAborted,
		Timestamp: now,
		SessionID: sessionID,
		Affected:  affected,
		Payload:   model.MatchAbortedPayload{SessionID: sessionID, Reason: reason},
	})
	return nil
}

type ratingChange struct {
	before model.Rating
	after  model.Rating
}

// applyRatings runs the rating update for a resolved session and appends the
// new records to every player's history
func (s *Service) applyRatings(ctx context.Context, session *model.GameSession, outcomes []model.TeamOutcome) (map[model.PlayerID]ratingChange, error) {
	ranks := make(map[int]int, len(outcomes))
	for _, o := range outcomes {
		ranks[o.Team] = o.Rank
	}

	before := make(map[model.PlayerID]model.Rating)
	teams := make([]rating.RankedTeam, len(session.Teams))
	for i, t := range session.Teams {
		rank, ok := ranks[i]
		if !ok {
			return nil, model.ErrInvalidTransition
		}
		var players []rating.RatedPlayer
		for _, p := range t.Players() {
			est, err := s.rating.Estimate(ctx, p, session.Mode)
			if err != nil {
				return nil, err
			}
			before[p] = est
			players = append(players, rating.RatedPlayer{ID: p, Rating: est})
		}
		teams[i] = rating.RankedTeam{Players: players, Rank: rank}
	}

	updated, err := s.rating.Update(teams)
	if err != nil {
		return nil, err
	}

	changes := make(map[model.PlayerID]ratingChange, len(updated))
	for playerID, newRating := range updated {
		record := &model.RatingRecord{
			PlayerID:  playerID,
			Mode:      session.Mode,
			SessionID: session.ID,
			Rating:    newRating,
			CreatedAt: s.clock.Now(),
		}
		if err := s.storage.AppendRatingRecord(ctx, record); err != nil {
			return nil, err
		}
		changes[playerID] = ratingChange{before: before[playerID], after: newRating}
	}
	return changes, nil
}

func (s *Service) queueMode(queueID model.QueueID) (model.GameMode, error) {
	cfg, err := s.queues.Config(queueID)
	if err != nil {
		return "", err
	}
	return cfg.Mode, nil
}

func (s *Service) publish(ctx context.Context, event model.Event) {
	if s.dispatcher != nil {
		s.dispatcher.Publish(ctx, event)
	}
}

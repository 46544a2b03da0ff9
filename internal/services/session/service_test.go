package session

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/ambrook/skirmishd/internal/broker"
	brokermemory "github.com/ambrook/skirmishd/internal/broker/memory"
	"github.com/ambrook/skirmishd/internal/dependencies/mocks"
	"github.com/ambrook/skirmishd/internal/dispatch"
	"github.com/ambrook/skirmishd/internal/model"
	"github.com/ambrook/skirmishd/internal/provision"
	"github.com/ambrook/skirmishd/internal/services/queue"
	"github.com/ambrook/skirmishd/internal/services/rating"
	"github.com/ambrook/skirmishd/internal/services/registry"
	"github.com/ambrook/skirmishd/internal/storage/memory"
)

type SessionTestSuite struct {
	suite.Suite
	ctx         context.Context
	storage     *memory.Storage
	registry    *registry.Service
	rating      *rating.Service
	queues      *queue.Controller
	broker      *brokermemory.Broker
	clock       *mocks.MockClock
	provisioner *provision.MockProvisioner
	service     *Service
}

func (s *SessionTestSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.ctx = context.Background()
	s.storage = memory.New()
	s.registry = registry.New(logger)
	s.rating = rating.New(s.storage, rating.DefaultConfig(), logger)
	s.broker = brokermemory.New()
	dispatcher := dispatch.NewDispatcher(dispatch.NewHubManager(logger), s.broker, logger)
	s.clock = mocks.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s.provisioner = provision.NewMockProvisioner()

	configs := []model.QueueConfig{
		{
			ID: "ladder1v1", Mode: "ladder", TeamSize: 1, TeamCount: 2,
			InitialTolerance: 100, MaxTolerance: 400, MaxWait: 5 * time.Minute,
		},
	}
	s.queues = queue.NewController(
		configs, s.registry, s.rating, dispatcher, s.clock, mocks.NewMockRandom(), logger)
	s.service = New(
		s.storage, s.rating, s.registry, s.queues, dispatcher,
		s.provisioner, s.clock, mocks.NewMockRandom(), DefaultConfig(), logger)
}

// candidate joins alice and bob solo into ladder1v1, reserves their entries
// and returns the 1v1 candidate a search tick would have produced
func (s *SessionTestSuite) candidate() model.MatchCandidate {
	aliceEntry := s.joinSolo("alice")
	bobEntry := s.joinSolo("bob")

	reserved, err := s.queues.Reserve("ladder1v1", []model.EntryID{aliceEntry.ID, bobEntry.ID})
	s.Require().NoError(err)

	return model.MatchCandidate{
		QueueID: "ladder1v1",
		Teams: []model.Team{
			{Entries: reserved[:1]},
			{Entries: reserved[1:]},
		},
		FoundAt: s.clock.Now(),
	}
}

func (s *SessionTestSuite) joinSolo(id model.PlayerID) model.QueueEntry {
	s.registry.MarkConnected(id)
	entry, err := s.queues.Join(s.ctx, "ladder1v1", model.Party{Members: []model.PlayerID{id}, Leader: id})
	s.Require().NoError(err)
	return entry
}

func (s *SessionTestSuite) confirmLaunching() *model.GameSession {
	session, err := s.service.Confirm(s.ctx, s.candidate())
	s.Require().NoError(err)
	s.Require().Equal(model.SessionLaunching, session.State)
	return session
}

func (s *SessionTestSuite) queueSize() int {
	size, err := s.queues.Size("ladder1v1")
	s.Require().NoError(err)
	return size
}

func (s *SessionTestSuite) publishedEvents(eventType model.EventType) []model.Event {
	var out []model.Event
	for _, raw := range s.broker.MessagesOn(broker.TopicEvents) {
		var event model.Event
		s.Require().NoError(json.Unmarshal(raw, &event))
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

func (s *SessionTestSuite) TestConfirmLaunchesSession() {
	session := s.confirmLaunching()

	s.NotEmpty(session.ID)
	s.NotEmpty(session.LaunchHandle)
	s.Equal(model.GameMode("ladder"), session.Mode)

	sessionID, bound := s.registry.SessionOf("alice")
	s.True(bound)
	s.Equal(session.ID, sessionID)
	_, queued := s.registry.QueueOf("alice")
	s.False(queued)

	s.Equal([]model.SessionID{session.ID}, s.provisioner.Requests())
	s.Len(s.publishedEvents(model.EventMatchFound), 1)
	s.Len(s.publishedEvents(model.EventMatchLaunching), 1)
}

func (s *SessionTestSuite) TestConfirmCancelsWhenPlayerDroppedSinceSearch() {
	candidate := s.candidate()
	joinedAt := candidate.Entries()[0].JoinedAt
	s.registry.MarkDisconnected("bob")
	s.clock.Advance(30 * time.Second)

	session, err := s.service.Confirm(s.ctx, candidate)
	s.Require().NoError(err)
	s.Equal(model.SessionCancelled, session.State)

	// Alice returns to the queue with her original join time
	s.Equal(1, s.queueSize())
	snapshot, err := s.queues.Snapshot("ladder1v1")
	s.Require().NoError(err)
	s.Require().Len(snapshot, 1)
	s.True(snapshot[0].Party.Contains("alice"))
	s.Equal(joinedAt, snapshot[0].JoinedAt)

	// Bob is gone entirely
	_, bound := s.registry.QueueOf("bob")
	s.False(bound)

	// No host was ever requested
	s.Empty(s.provisioner.Requests())

	events := s.publishedEvents(model.EventMatchCancelled)
	s.Require().Len(events, 1)
	s.Equal([]model.PlayerID{"alice"}, events[0].Affected)
}

func (s *SessionTestSuite) TestConfirmCancelsOnProvisionFailure() {
	s.provisioner.FailWith(model.ErrProvisionFailed)

	session, err := s.service.Confirm(s.ctx, s.candidate())
	s.Require().NoError(err)
	s.Equal(model.SessionCancelled, session.State)

	// Both players return to the queue, free of session commitments
	s.Equal(2, s.queueSize())
	_, bound := s.registry.SessionOf("alice")
	s.False(bound)
	_, queued := s.registry.QueueOf("alice")
	s.True(queued)
}

func (s *SessionTestSuite) TestHandleReadyMovesToLive() {
	session := s.confirmLaunching()

	s.Require().NoError(s.service.HandleReady(s.ctx, session.LaunchHandle))

	live, err := s.service.Get(session.ID)
	s.Require().NoError(err)
	s.Equal(model.SessionLive, live.State)
	s.Len(s.publishedEvents(model.EventMatchLive), 1)
}

func (s *SessionTestSuite) TestHandleReadyUnknownHandle() {
	err := s.service.HandleReady(s.ctx, "nope")
	s.ErrorIs(err, model.ErrUnknownSession)
}

func (s *SessionTestSuite) TestHandleReadyTwice() {
	session := s.confirmLaunching()
	s.Require().NoError(s.service.HandleReady(s.ctx, session.LaunchHandle))
	err := s.service.HandleReady(s.ctx, session.LaunchHandle)
	s.ErrorIs(err, model.ErrInvalidTransition)
}

func (s *SessionTestSuite) TestLaunchTimeoutAborts() {
	session := s.confirmLaunching()
	joinedAt := session.Teams[0].Entries[0].JoinedAt

	// Under the timeout nothing happens
	s.clock.Advance(30 * time.Second)
	s.Equal(0, s.service.CheckLaunchTimeouts(s.ctx))

	s.clock.Advance(31 * time.Second)
	s.Equal(1, s.service.CheckLaunchTimeouts(s.ctx))

	_, err := s.service.Get(session.ID)
	s.ErrorIs(err, model.ErrUnknownSession)

	// No rating update happened
	_, err = s.storage.GetLatestRating(s.ctx, "alice", "ladder")
	s.ErrorIs(err, model.ErrPlayerNotFound)

	// Connected members return to the queue with preserved join times
	s.Equal(2, s.queueSize())
	snapshot, err := s.queues.Snapshot("ladder1v1")
	s.Require().NoError(err)
	s.Equal(joinedAt, snapshot[0].JoinedAt)

	archived, err := s.storage.GetArchivedSession(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(model.SessionAborted, archived.State)
	s.Equal("launch timeout", archived.AbortReason)

	s.Len(s.publishedEvents(model.EventMatchAborted), 1)
}

func (s *SessionTestSuite) TestHandleLaunchFailedAborts() {
	session := s.confirmLaunching()

	s.Require().NoError(s.service.HandleLaunchFailed(s.ctx, session.LaunchHandle, "no hosts available"))

	archived, err := s.storage.GetArchivedSession(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(model.SessionAborted, archived.State)
	s.Equal("no hosts available", archived.AbortReason)
	s.Equal(2, s.queueSize())
}

func (s *SessionTestSuite) TestHandleResultResolvesAndRates() {
	session := s.confirmLaunching()
	s.Require().NoError(s.service.HandleReady(s.ctx, session.LaunchHandle))

	winner := session.Teams[0].Players()[0]
	loser := session.Teams[1].Players()[0]

	err := s.service.HandleResult(s.ctx, session.ID, []model.TeamOutcome{
		{Team: 0, Rank: 1},
		{Team: 1, Rank: 2},
	})
	s.Require().NoError(err)

	winnerRecord, err := s.storage.GetLatestRating(s.ctx, winner, "ladder")
	s.Require().NoError(err)
	loserRecord, err := s.storage.GetLatestRating(s.ctx, loser, "ladder")
	s.Require().NoError(err)
	s.Greater(winnerRecord.Rating.Mu, 1500.0)
	s.Less(loserRecord.Rating.Mu, 1500.0)
	s.Equal(session.ID, winnerRecord.SessionID)

	archived, err := s.storage.GetArchivedSession(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(model.SessionResolved, archived.State)
	s.Require().NotNil(archived.Result)

	// Players are free again
	_, bound := s.registry.SessionOf(winner)
	s.False(bound)

	s.Len(s.publishedEvents(model.EventMatchResolved), 1)
	s.Len(s.publishedEvents(model.EventRatingUpdated), 2)
}

func (s *SessionTestSuite) TestDuplicateResultIsDroppedNotReapplied() {
	session := s.confirmLaunching()
	s.Require().NoError(s.service.HandleReady(s.ctx, session.LaunchHandle))

	outcomes := []model.TeamOutcome{{Team: 0, Rank: 1}, {Team: 1, Rank: 2}}
	s.Require().NoError(s.service.HandleResult(s.ctx, session.ID, outcomes))

	err := s.service.HandleResult(s.ctx, session.ID, outcomes)
	s.ErrorIs(err, model.ErrDuplicateResult)

	// Ratings were applied exactly once
	history, err := s.storage.GetRatingHistory(s.ctx, "alice", "ladder")
	s.Require().NoError(err)
	s.Len(history, 1)
}

func (s *SessionTestSuite) TestResultForUnknownSession() {
	err := s.service.HandleResult(s.ctx, "nope", []model.TeamOutcome{})
	s.ErrorIs(err, model.ErrUnknownSession)
}

func (s *SessionTestSuite) TestResultMustRankEveryTeam() {
	session := s.confirmLaunching()
	s.Require().NoError(s.service.HandleReady(s.ctx, session.LaunchHandle))

	err := s.service.HandleResult(s.ctx, session.ID, []model.TeamOutcome{
		{Team: 0, Rank: 1},
	})
	s.ErrorIs(err, model.ErrInvalidResult)

	// Session is still live and resolvable
	live, err := s.service.Get(session.ID)
	s.Require().NoError(err)
	s.Equal(model.SessionLive, live.State)
}

func (s *SessionTestSuite) TestResultBeforeLiveIsRejected() {
	session := s.confirmLaunching()
	err := s.service.HandleResult(s.ctx, session.ID, []model.TeamOutcome{
		{Team: 0, Rank: 1},
		{Team: 1, Rank: 2},
	})
	s.ErrorIs(err, model.ErrInvalidTransition)
}

func (s *SessionTestSuite) TestHandleAbandonedAbortsWithoutRequeue() {
	session := s.confirmLaunching()
	s.Require().NoError(s.service.HandleReady(s.ctx, session.LaunchHandle))

	s.Require().NoError(s.service.HandleAbandoned(s.ctx, session.ID))

	// No ratings, no requeue: the match started and was walked away from
	_, err := s.storage.GetLatestRating(s.ctx, "alice", "ladder")
	s.ErrorIs(err, model.ErrPlayerNotFound)
	s.Equal(0, s.queueSize())
	_, bound := s.registry.SessionOf("alice")
	s.False(bound)

	archived, err := s.storage.GetArchivedSession(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal("abandoned", archived.AbortReason)
}

func (s *SessionTestSuite) TestDisconnectDuringLaunchingAborts() {
	session := s.confirmLaunching()

	s.registry.MarkDisconnected("bob")
	s.service.NotifyDisconnect(s.ctx, "bob")

	_, err := s.service.Get(session.ID)
	s.ErrorIs(err, model.ErrUnknownSession)

	// The connected member returns to the queue; the dropped one does not
	s.Equal(1, s.queueSize())
	snapshot, err := s.queues.Snapshot("ladder1v1")
	s.Require().NoError(err)
	s.True(snapshot[0].Party.Contains("alice"))
}

func (s *SessionTestSuite) TestDisconnectDuringLiveOnlyFlags() {
	session := s.confirmLaunching()
	s.Require().NoError(s.service.HandleReady(s.ctx, session.LaunchHandle))

	s.registry.MarkDisconnected("bob")
	s.service.NotifyDisconnect(s.ctx, "bob")

	live, err := s.service.Get(session.ID)
	s.Require().NoError(err)
	s.Equal(model.SessionLive, live.State)
	s.Contains(live.Disconnected, model.PlayerID("bob"))

	// The host's report still resolves the session
	err = s.service.HandleResult(s.ctx, session.ID, []model.TeamOutcome{
		{Team: 0, Rank: 1},
		{Team: 1, Rank: 2},
	})
	s.Require().NoError(err)
}

func (s *SessionTestSuite) TestConfirmUnknownQueue() {
	_, err := s.service.Confirm(s.ctx, model.MatchCandidate{QueueID: "nope"})
	s.ErrorIs(err, model.ErrUnknownQueue)
}

func TestSessionTestSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}

package coordinator

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	brokermemory "github.com/ambrook/skirmishd/internal/broker/memory"
	"github.com/ambrook/skirmishd/internal/dependencies/mocks"
	"github.com/ambrook/skirmishd/internal/dispatch"
	"github.com/ambrook/skirmishd/internal/metrics"
	"github.com/ambrook/skirmishd/internal/model"
	"github.com/ambrook/skirmishd/internal/provision"
	"github.com/ambrook/skirmishd/internal/services/queue"
	"github.com/ambrook/skirmishd/internal/services/rating"
	"github.com/ambrook/skirmishd/internal/services/registry"
	"github.com/ambrook/skirmishd/internal/services/search"
	"github.com/ambrook/skirmishd/internal/services/session"
	"github.com/ambrook/skirmishd/internal/storage/memory"
)

type CoordinatorTestSuite struct {
	suite.Suite
	ctx         context.Context
	registry    *registry.Service
	queues      *queue.Controller
	sessions    *session.Service
	provisioner *provision.MockProvisioner
	recorder    *metrics.TestRecorder
	clock       *mocks.MockClock
	coordinator *Coordinator
}

func (s *CoordinatorTestSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.ctx = context.Background()
	store := memory.New()
	s.registry = registry.New(logger)
	ratingService := rating.New(store, rating.DefaultConfig(), logger)
	dispatcher := dispatch.NewDispatcher(dispatch.NewHubManager(logger), brokermemory.New(), logger)
	s.clock = mocks.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s.provisioner = provision.NewMockProvisioner()
	s.recorder = metrics.NewTestRecorder()

	configs := []model.QueueConfig{
		{
			ID: "ladder1v1", Mode: "ladder", TeamSize: 1, TeamCount: 2,
			InitialTolerance: 100, MaxTolerance: 400, MaxWait: 5 * time.Minute,
		},
	}
	s.queues = queue.NewController(
		configs, s.registry, ratingService, dispatcher, s.clock, mocks.NewMockRandom(), logger)
	searchService := search.New(s.queues, search.DefaultConfig(), s.clock, logger)
	s.sessions = session.New(
		store, ratingService, s.registry, s.queues, dispatcher,
		s.provisioner, s.clock, mocks.NewMockRandom(), session.DefaultConfig(), logger)
	s.coordinator = New(s.queues, searchService, s.sessions, s.recorder, DefaultConfig(), logger)
}

func (s *CoordinatorTestSuite) joinSolo(id model.PlayerID) {
	s.registry.MarkConnected(id)
	_, err := s.queues.Join(s.ctx, "ladder1v1", model.Party{Members: []model.PlayerID{id}, Leader: id})
	s.Require().NoError(err)
}

func (s *CoordinatorTestSuite) TestTickConfirmsFoundMatch() {
	s.joinSolo("alice")
	s.joinSolo("bob")

	s.Require().NoError(s.coordinator.Tick(s.ctx, "ladder1v1"))

	s.Len(s.provisioner.Requests(), 1)
	session, bound := s.sessions.SessionOf("alice")
	s.Require().True(bound)
	s.Equal(model.SessionLaunching, session.State)

	size, err := s.queues.Size("ladder1v1")
	s.Require().NoError(err)
	s.Equal(0, size)

	s.Equal(1, s.recorder.SearchTicks["ladder1v1"])
	s.Equal(0, s.recorder.QueueDepths["ladder1v1"])
}

func (s *CoordinatorTestSuite) TestTickWithEmptyPool() {
	s.Require().NoError(s.coordinator.Tick(s.ctx, "ladder1v1"))
	s.Empty(s.provisioner.Requests())
	s.Equal(1, s.recorder.SearchTicks["ladder1v1"])
}

func (s *CoordinatorTestSuite) TestTickCancelsCandidateWithDroppedPlayer() {
	s.joinSolo("alice")
	s.joinSolo("bob")
	// Bob drops without the disconnect handlers wired, so his entry stays
	// in the pool and the confirmation check has to catch it
	s.registry.MarkDisconnected("bob")

	s.Require().NoError(s.coordinator.Tick(s.ctx, "ladder1v1"))

	_, bound := s.sessions.SessionOf("alice")
	s.False(bound)
	s.Equal([]model.SessionState{model.SessionCancelled}, s.recorder.Outcomes)

	// Alice is back in the pool
	size, err := s.queues.Size("ladder1v1")
	s.Require().NoError(err)
	s.Equal(1, size)
}

func (s *CoordinatorTestSuite) TestTickUnknownQueue() {
	err := s.coordinator.Tick(s.ctx, "nope")
	s.ErrorIs(err, model.ErrUnknownQueue)
}

func (s *CoordinatorTestSuite) TestStartDrivesTicksUntilStopped() {
	s.coordinator.cfg.SearchInterval = 10 * time.Millisecond
	s.coordinator.cfg.TimeoutSweepInterval = 10 * time.Millisecond

	s.joinSolo("alice")
	s.joinSolo("bob")

	s.coordinator.Start(s.ctx)
	defer s.coordinator.Stop()

	s.Eventually(func() bool {
		return len(s.provisioner.Requests()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestCoordinatorTestSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorTestSuite))
}

package factory

import (
	"io"
	"log/slog"
	"time"

	brokermemory "github.com/ambrook/skirmishd/internal/broker/memory"
	"github.com/ambrook/skirmishd/internal/coordinator"
	"github.com/ambrook/skirmishd/internal/dependencies/mocks"
	"github.com/ambrook/skirmishd/internal/model"
	"github.com/ambrook/skirmishd/internal/provision"
	"github.com/ambrook/skirmishd/internal/services/auth"
	"github.com/ambrook/skirmishd/internal/services/session"
	"github.com/ambrook/skirmishd/internal/storage/memory"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock       *mocks.MockClock
	MockRandom      *mocks.MockRandom
	MockProvisioner *provision.MockProvisioner
	MemoryBroker    *brokermemory.Broker
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	store := memory.New()
	b := brokermemory.New()
	mockClock := mocks.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	mockProvisioner := provision.NewMockProvisioner()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	app := newWithDependencies(
		store,
		b,
		TestQueues(),
		mockProvisioner,
		mockClock,
		mockRandom,
		auth.DefaultConfig(),
		session.DefaultConfig(),
		coordinator.DefaultConfig(),
		logger,
	)

	return &TestApp{
		App:             app,
		MockClock:       mockClock,
		MockRandom:      mockRandom,
		MockProvisioner: mockProvisioner,
		MemoryBroker:    b,
	}
}

// TestQueues returns small queues suitable for driving matches in tests
func TestQueues() []model.QueueConfig {
	return []model.QueueConfig{
		{
			ID:               "ladder1v1",
			Mode:             "ladder1v1",
			TeamSize:         1,
			TeamCount:        2,
			InitialTolerance: 100,
			MaxTolerance:     800,
			MaxWait:          10 * time.Minute,
		},
		{
			ID:               "tmm2v2",
			Mode:             "tmm2v2",
			TeamSize:         2,
			TeamCount:        2,
			InitialTolerance: 150,
			MaxTolerance:     1000,
			MaxWait:          10 * time.Minute,
		},
	}
}

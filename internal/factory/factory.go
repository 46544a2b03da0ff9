package factory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/ambrook/skirmishd/internal/broker"
	brokermemory "github.com/ambrook/skirmishd/internal/broker/memory"
	brokerredis "github.com/ambrook/skirmishd/internal/broker/redis"
	"github.com/ambrook/skirmishd/internal/coordinator"
	"github.com/ambrook/skirmishd/internal/dependencies/clock"
	"github.com/ambrook/skirmishd/internal/dependencies/random"
	"github.com/ambrook/skirmishd/internal/dispatch"
	"github.com/ambrook/skirmishd/internal/metrics"
	"github.com/ambrook/skirmishd/internal/model"
	"github.com/ambrook/skirmishd/internal/provision"
	"github.com/ambrook/skirmishd/internal/services/auth"
	"github.com/ambrook/skirmishd/internal/services/queue"
	"github.com/ambrook/skirmishd/internal/services/rating"
	"github.com/ambrook/skirmishd/internal/services/registry"
	"github.com/ambrook/skirmishd/internal/services/search"
	"github.com/ambrook/skirmishd/internal/services/session"
	"github.com/ambrook/skirmishd/internal/storage"
	"github.com/ambrook/skirmishd/internal/storage/memory"
	redisstorage "github.com/ambrook/skirmishd/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// Broker type constants
const (
	BrokerTypeMemory = "memory"
	BrokerTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Event plumbing
	Broker     broker.Broker
	HubManager *dispatch.HubManager
	Dispatcher *dispatch.Dispatcher

	// Services
	Registry        *registry.Service
	RatingService   *rating.Service
	QueueController *queue.Controller
	SearchService   *search.Service
	SessionService  *session.Service
	AuthService     *auth.Service
	Coordinator     *coordinator.Coordinator
	Metrics         metrics.Recorder
}

// Config holds configuration for the application factory
type Config struct {
	// Queues is the set of matchmaking queues to serve. If empty,
	// DefaultQueues() is used.
	Queues []model.QueueConfig
	// Provisioner launches game hosts for confirmed matches (optional)
	// If nil, a mock provisioner is used.
	Provisioner provision.Provisioner
	// AuthConfig holds configuration for the auth service (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// SessionConfig holds game session timings (optional)
	// If zero value, defaults to session.DefaultConfig()
	SessionConfig session.Config
	// CoordinatorConfig holds matchmaking tick timings (optional)
	// If zero value, defaults to coordinator.DefaultConfig()
	CoordinatorConfig coordinator.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// BrokerType selects the pub/sub backend ("memory" or "redis")
	// If empty, defaults to "memory"
	BrokerType string
	// BrokerURL is the Redis URL for the broker (required if BrokerType is "redis")
	BrokerURL string
}

// DefaultQueues returns the standard ladder queues
func DefaultQueues() []model.QueueConfig {
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

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	// Create storage based on type
	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	// Create broker based on type
	var b broker.Broker
	brokerType := cfg.BrokerType
	if brokerType == "" {
		brokerType = BrokerTypeMemory
	}

	switch brokerType {
	case BrokerTypeMemory:
		b = brokermemory.New()
	case BrokerTypeRedis:
		if cfg.BrokerURL == "" {
			return nil, errors.New("BrokerURL required when BrokerType is redis")
		}
		redisBroker, err := brokerredis.New(cfg.BrokerURL)
		if err != nil {
			return nil, err
		}
		b = redisBroker
	default:
		return nil, errors.New("invalid BrokerType: must be 'memory' or 'redis'")
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	// Use defaults where config was left zero
	authCfg := cfg.AuthConfig
	if authCfg.SessionDuration == 0 {
		authCfg = auth.DefaultConfig()
	}
	sessionCfg := cfg.SessionConfig
	if sessionCfg.LaunchTimeout == 0 {
		sessionCfg = session.DefaultConfig()
	}
	coordCfg := cfg.CoordinatorConfig
	if coordCfg.SearchInterval == 0 {
		coordCfg = coordinator.DefaultConfig()
	}

	queues := cfg.Queues
	if len(queues) == 0 {
		queues = DefaultQueues()
	}

	provisioner := cfg.Provisioner
	if provisioner == nil {
		provisioner = provision.NewMockProvisioner()
	}

	return newWithDependencies(store, b, queues, provisioner, clk, rnd, authCfg, sessionCfg, coordCfg, logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	b broker.Broker,
	queueConfigs []model.QueueConfig,
	provisioner provision.Provisioner,
	clk clock.Clock,
	rnd random.Random,
	authCfg auth.Config,
	sessionCfg session.Config,
	coordCfg coordinator.Config,
	logger *slog.Logger,
) *App {
	hubManager := dispatch.NewHubManager(logger)
	dispatcher := dispatch.NewDispatcher(hubManager, b, logger)
	recorder := metrics.NewBrokerRecorder(b, clk, logger)

	reg := registry.New(logger)
	ratingService := rating.New(store, rating.DefaultConfig(), logger)
	queueController := queue.NewController(queueConfigs, reg, ratingService, dispatcher, clk, rnd, logger)
	searchService := search.New(queueController, search.DefaultConfig(), clk, logger)
	sessionService := session.New(store, ratingService, reg, queueController, dispatcher, provisioner, clk, rnd, sessionCfg, logger)
	authService := auth.New(store, clk, authCfg, logger)
	coord := coordinator.New(queueController, searchService, sessionService, recorder, coordCfg, logger)

	// A dropped event stream pulls the player out of their queue, and aborts
	// or flags their session depending on its state.
	reg.SetDisconnectHandlers(
		func(playerID model.PlayerID) {
			queueController.RemoveDisconnected(context.Background(), playerID)
		},
		func(playerID model.PlayerID) {
			sessionService.NotifyDisconnect(context.Background(), playerID)
		},
	)

	return &App{
		Storage:         store,
		Clock:           clk,
		Random:          rnd,
		Broker:          b,
		HubManager:      hubManager,
		Dispatcher:      dispatcher,
		Registry:        reg,
		RatingService:   ratingService,
		QueueController: queueController,
		SearchService:   searchService,
		SessionService:  sessionService,
		AuthService:     authService,
		Coordinator:     coord,
		Metrics:         recorder,
	}
}

package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ambrook/skirmishd/internal/metrics"
	"github.com/ambrook/skirmishd/internal/model"
	"github.com/ambrook/skirmishd/internal/services/queue"
	"github.com/ambrook/skirmishd/internal/services/search"
	"github.com/ambrook/skirmishd/internal/services/session"
)

// Config holds the coordinator's timing knobs
type Config struct {
	// SearchInterval is the fixed tick between matchmaking passes on each
	// queue. Ticking rather than reacting to every join batches arrivals
	// and keeps the search stable.
	SearchInterval time.Duration
	// TimeoutSweepInterval is the tick between launch timeout sweeps
	TimeoutSweepInterval time.Duration
}

// DefaultConfig returns the default coordinator timings
func DefaultConfig() Config {
	return Config{
		SearchInterval:       5 * time.Second,
		TimeoutSweepInterval: 5 * time.Second,
	}
}

// Coordinator drives the periodic work: one matchmaking tick per queue per
// interval, candidates handed straight to the session machine, plus a sweep
// for launch timeouts. Queues tick independently so a deep pool in one never
// delays another.
type Coordinator struct {
	queues   *queue.Controller
	search   *search.Service
	sessions *session.Service
	metrics  metrics.Recorder
	cfg      Config
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new coordinator
func New(
	queues *queue.Controller,
	searchService *search.Service,
	sessions *session.Service,
	recorder metrics.Recorder,
	cfg Config,
	logger *slog.Logger,
) *Coordinator {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Coordinator{
		queues:   queues,
		search:   searchService,
		sessions: sessions,
		metrics:  recorder,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "coordinator")),
	}
}

// Start launches the per-queue tick loops and the timeout sweep. Stops when
// Stop is called or the parent context is cancelled.
func (c *Coordinator) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel

	for _, cfg := range c.queues.Queues() {
		queueID := cfg.ID
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.runQueueLoop(ctx, queueID)
		}()
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runTimeoutSweep(ctx)
	}()

	c.logger.Info("coordinator started",
		slog.Int("queues", len(c.queues.Queues())),
		slog.Duration("search_interval", c.cfg.SearchInterval))
}

// Stop halts all loops and waits for them to finish
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.logger.Info("coordinator stopped")
}

func (c *Coordinator) runQueueLoop(ctx context.Context, queueID model.QueueID) {
	ticker := time.NewTicker(c.cfg.SearchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Tick(ctx, queueID); err != nil {
				c.logger.Error("matchmaking tick failed",
					slog.String("queue_id", string(queueID)),
					slog.String("error", err.Error()))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Coordinator) runTimeoutSweep(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.TimeoutSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if aborted := c.sessions.CheckLaunchTimeouts(ctx); aborted > 0 {
				c.logger.Warn("launch timeout sweep aborted sessions",
					slog.Int("aborted", aborted))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Tick runs one matchmaking pass on the queue: search the pool and confirm
// every candidate found. Exposed so tests and diagnostics can drive a pass
// without the timer.
func (c *Coordinator) Tick(ctx context.Context, queueID model.QueueID) error {
	poolSize, err := c.queues.Size(queueID)
	if err != nil {
		return err
	}

	candidates, err := c.search.Search(ctx, queueID)
	if err != nil {
		return err
	}

	for _, candidate := range candidates {
		session, err := c.sessions.Confirm(ctx, candidate)
		if err != nil {
			c.logger.Error("candidate confirmation failed",
				slog.String("queue_id", string(queueID)),
				slog.String("error", err.Error()))
			continue
		}
		if session.State == model.SessionCancelled {
			c.metrics.RecordSessionOutcome(queueID, session.State, 0)
		}
	}

	c.metrics.RecordSearchTick(queueID, poolSize, len(candidates))
	depth, err := c.queues.Size(queueID)
	if err == nil {
		c.metrics.RecordQueueDepth(queueID, depth)
	}
	return nil
}

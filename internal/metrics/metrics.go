package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/ambrook/skirmishd/internal/broker"
	"github.com/ambrook/skirmishd/internal/dependencies/clock"
	"github.com/ambrook/skirmishd/internal/model"
)

// Recorder receives matchmaking telemetry. Implementations must be
// fire-and-forget: never block, never fail the caller.
type Recorder interface {
	RecordQueueDepth(queueID model.QueueID, depth int)
	RecordSearchTick(queueID model.QueueID, poolSize, candidates int)
	RecordSessionOutcome(queueID model.QueueID, state model.SessionState, duration time.Duration)
}

// NoopRecorder discards all telemetry
type NoopRecorder struct{}

func (NoopRecorder) RecordQueueDepth(model.QueueID, int)                                 {}
func (NoopRecorder) RecordSearchTick(model.QueueID, int, int)                            {}
func (NoopRecorder) RecordSessionOutcome(model.QueueID, model.SessionState, time.Duration) {}

// sample is the JSON shape published on the analytics topic
type sample struct {
	Metric    string    `json:"metric"`
	QueueID   string    `json:"queue_id,omitempty"`
	Value     float64   `json:"value"`
	State     string    `json:"state,omitempty"`
	Extra     float64   `json:"extra,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// BrokerRecorder publishes telemetry samples to the broker's analytics
// topic for external consumers
type BrokerRecorder struct {
	broker broker.Broker
	clock  clock.Clock
	logger *slog.Logger
}

// NewBrokerRecorder creates a recorder publishing to the given broker
func NewBrokerRecorder(b broker.Broker, clk clock.Clock, logger *slog.Logger) *BrokerRecorder {
	return &BrokerRecorder{
		broker: b,
		clock:  clk,
		logger: logger.With(slog.String("component", "metrics")),
	}
}

func (r *BrokerRecorder) RecordQueueDepth(queueID model.QueueID, depth int) {
	r.publish(sample{Metric: "queue_depth", QueueID: string(queueID), Value: float64(depth)})
}

func (r *BrokerRecorder) RecordSearchTick(queueID model.QueueID, poolSize, candidates int) {
	r.publish(sample{Metric: "search_tick", QueueID: string(queueID), Value: float64(candidates), Extra: float64(poolSize)})
}

func (r *BrokerRecorder) RecordSessionOutcome(queueID model.QueueID, state model.SessionState, duration time.Duration) {
	r.publish(sample{Metric: "session_outcome", QueueID: string(queueID), State: string(state), Value: duration.Seconds()})
}

func (r *BrokerRecorder) publish(s sample) {
	s.Timestamp = r.clock.Now()
	payload, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := r.broker.Publish(context.Background(), broker.TopicAnalytics, payload); err != nil {
		r.logger.Debug("failed to publish metric",
			slog.String("metric", s.Metric),
			slog.String("error", err.Error()))
	}
}

// TestRecorder captures telemetry for assertions
type TestRecorder struct {
	mu          sync.Mutex
	QueueDepths map[model.QueueID]int
	SearchTicks map[model.QueueID]int
	Outcomes    []model.SessionState
}

// NewTestRecorder creates an empty TestRecorder
func NewTestRecorder() *TestRecorder {
	return &TestRecorder{
		QueueDepths: make(map[model.QueueID]int),
		SearchTicks: make(map[model.QueueID]int),
	}
}

func (r *TestRecorder) RecordQueueDepth(queueID model.QueueID, depth int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.QueueDepths[queueID] = depth
}

func (r *TestRecorder) RecordSearchTick(queueID model.QueueID, poolSize, candidates int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.SearchTicks[queueID]++
}

func (r *TestRecorder) RecordSessionOutcome(queueID model.QueueID, state model.SessionState, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Outcomes = append(r.Outcomes, state)
}

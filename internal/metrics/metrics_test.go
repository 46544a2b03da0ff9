package metrics

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/ambrook/skirmishd/internal/broker"
	brokermemory "github.com/ambrook/skirmishd/internal/broker/memory"
	"github.com/ambrook/skirmishd/internal/dependencies/mocks"
	"github.com/ambrook/skirmishd/internal/model"
)

type MetricsTestSuite struct {
	suite.Suite
	broker   *brokermemory.Broker
	clock    *mocks.MockClock
	recorder *BrokerRecorder
}

func (s *MetricsTestSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.broker = brokermemory.New()
	s.clock = mocks.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s.recorder = NewBrokerRecorder(s.broker, s.clock, logger)
}

func (s *MetricsTestSuite) samples() []sample {
	var out []sample
	for _, raw := range s.broker.MessagesOn(broker.TopicAnalytics) {
		var smp sample
		s.Require().NoError(json.Unmarshal(raw, &smp))
		out = append(out, smp)
	}
	return out
}

func (s *MetricsTestSuite) TestQueueDepthPublishesSample() {
	s.recorder.RecordQueueDepth("ladder1v1", 7)

	samples := s.samples()
	s.Require().Len(samples, 1)
	s.Equal("queue_depth", samples[0].Metric)
	s.Equal("ladder1v1", samples[0].QueueID)
	s.InDelta(7.0, samples[0].Value, 0.001)
}

func (s *MetricsTestSuite) TestSamplesStampedWithInjectedClock() {
	s.recorder.RecordQueueDepth("ladder1v1", 1)
	s.clock.Advance(time.Minute)
	s.recorder.RecordSessionOutcome("ladder1v1", model.SessionResolved, 20*time.Minute)

	samples := s.samples()
	s.Require().Len(samples, 2)
	s.True(samples[0].Timestamp.Equal(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)))
	s.True(samples[1].Timestamp.Equal(time.Date(2025, 6, 1, 12, 1, 0, 0, time.UTC)))
}

func (s *MetricsTestSuite) TestSessionOutcomeCarriesStateAndDuration() {
	s.recorder.RecordSessionOutcome("tmm2v2", model.SessionAborted, 90*time.Second)

	samples := s.samples()
	s.Require().Len(samples, 1)
	s.Equal("session_outcome", samples[0].Metric)
	s.Equal(string(model.SessionAborted), samples[0].State)
	s.InDelta(90.0, samples[0].Value, 0.001)
}

func TestMetricsTestSuite(t *testing.T) {
	suite.Run(t, new(MetricsTestSuite))
}

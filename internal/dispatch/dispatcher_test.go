package dispatch

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
	"github.com/ambrook/skirmishd/internal/model"
)

type DispatcherTestSuite struct {
	suite.Suite
	hubs       *HubManager
	broker     *brokermemory.Broker
	dispatcher *Dispatcher
}

func (s *DispatcherTestSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.hubs = NewHubManager(logger)
	s.broker = brokermemory.New()
	s.dispatcher = NewDispatcher(s.hubs, s.broker, logger)
}

func (s *DispatcherTestSuite) receive(c *Client) []byte {
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		s.FailNow("timed out waiting for event")
		return nil
	}
}

func (s *DispatcherTestSuite) TestPublishDeliversToAffectedPlayers() {
	alice := s.dispatcher.Subscribe("alice")
	s.hubs.GetHub("alice").Register(alice)
	bob := s.dispatcher.Subscribe("bob")
	s.hubs.GetHub("bob").Register(bob)

	event := model.Event{
		Type:      model.EventSearchStarted,
		Timestamp: time.Now(),
		QueueID:   "ladder1v1",
		Affected:  []model.PlayerID{"alice"},
	}
	s.dispatcher.Publish(context.Background(), event)

	msg := string(s.receive(alice))
	s.Contains(msg, "event: "+string(model.EventSearchStarted))
	s.Contains(msg, `"QueueID":"ladder1v1"`)

	select {
	case <-bob.send:
		s.Fail("unaffected player received event")
	case <-time.After(50 * time.Millisecond):
	}
}

func (s *DispatcherTestSuite) TestPublishReachesAllPlayerConnections() {
	first := s.dispatcher.Subscribe("alice")
	s.hubs.GetHub("alice").Register(first)
	second := s.dispatcher.Subscribe("alice")
	s.hubs.GetHub("alice").Register(second)

	s.dispatcher.Publish(context.Background(), model.Event{
		Type:     model.EventQueueRemoved,
		Affected: []model.PlayerID{"alice"},
	})

	s.Contains(string(s.receive(first)), string(model.EventQueueRemoved))
	s.Contains(string(s.receive(second)), string(model.EventQueueRemoved))
}

func (s *DispatcherTestSuite) TestPublishMirrorsToBroker() {
	event := model.Event{
		Type:      model.EventMatchFound,
		SessionID: "sess1",
		Affected:  []model.PlayerID{"alice", "bob"},
	}
	s.dispatcher.Publish(context.Background(), event)

	messages := s.broker.MessagesOn(broker.TopicEvents)
	s.Require().Len(messages, 1)

	var decoded model.Event
	s.Require().NoError(json.Unmarshal(messages[0], &decoded))
	s.Equal(model.EventMatchFound, decoded.Type)
	s.Equal(model.SessionID("sess1"), decoded.SessionID)
}

func (s *DispatcherTestSuite) TestPublishWithNoOpenStreamIsDropped() {
	s.NotPanics(func() {
		s.dispatcher.Publish(context.Background(), model.Event{
			Type:     model.EventSearchStopped,
			Affected: []model.PlayerID{"nobody"},
		})
	})
	s.Len(s.broker.MessagesOn(broker.TopicEvents), 1)
}

func (s *DispatcherTestSuite) TestDisconnectClosesStreams() {
	client := s.dispatcher.Subscribe("alice")
	s.hubs.GetHub("alice").Register(client)

	s.dispatcher.Disconnect("alice")

	select {
	case _, open := <-client.send:
		s.False(open)
	case <-time.After(time.Second):
		s.FailNow("timed out waiting for stream to close")
	}
	s.Nil(s.hubs.GetHub("alice"))
}

func (s *DispatcherTestSuite) TestReleaseReportsLastStream() {
	first := s.dispatcher.Subscribe("alice")
	s.hubs.GetHub("alice").Register(first)
	second := s.dispatcher.Subscribe("alice")
	s.hubs.GetHub("alice").Register(second)

	// Dropping one of two streams leaves the hub up for the survivor
	s.False(s.dispatcher.Release("alice", first))
	s.NotNil(s.hubs.GetHub("alice"))

	s.dispatcher.Publish(context.Background(), model.Event{
		Type:     model.EventMatchFound,
		Affected: []model.PlayerID{"alice"},
	})
	s.Contains(string(s.receive(second)), string(model.EventMatchFound))

	s.True(s.dispatcher.Release("alice", second))
	s.Nil(s.hubs.GetHub("alice"))
}

func (s *DispatcherTestSuite) TestReleaseWithoutHubIsLast() {
	client := s.dispatcher.Subscribe("alice")
	s.dispatcher.Disconnect("alice")
	s.True(s.dispatcher.Release("alice", client))
}

func (s *DispatcherTestSuite) TestUnregisterAfterDisconnectReturns() {
	first := s.dispatcher.Subscribe("alice")
	s.hubs.GetHub("alice").Register(first)
	second := s.dispatcher.Subscribe("alice")
	hub := s.hubs.GetHub("alice")
	hub.Register(second)

	// First stream closing tears the hub down; the survivor's deferred
	// unregister must not block on the stopped run loop
	s.dispatcher.Disconnect("alice")

	done := make(chan struct{})
	go func() {
		hub.Unregister(second)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		s.FailNow("unregister blocked after hub close")
	}

	select {
	case _, open := <-second.send:
		s.False(open)
	case <-time.After(time.Second):
		s.FailNow("surviving stream was not released")
	}
}

func (s *DispatcherTestSuite) TestRegisterAfterCloseReleasesClient() {
	client := s.dispatcher.Subscribe("alice")
	hub := s.hubs.GetHub("alice")
	s.dispatcher.Disconnect("alice")

	hub.Register(client)

	_, open := <-client.send
	s.False(open)
}

func (s *DispatcherTestSuite) TestFormatSSEMessageSplitsMultilineData() {
	msg := string(formatSSEMessage("test", "line1\nline2"))
	s.Equal("event: test\ndata: line1\ndata: line2\n\n", msg)
}

func TestDispatcherTestSuite(t *testing.T) {
	suite.Run(t, new(DispatcherTestSuite))
}

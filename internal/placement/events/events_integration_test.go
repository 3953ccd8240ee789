//go:build integration

package events_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"qplace/internal/placement/events"
	"qplace/internal/placement/models"
	"qplace/internal/platform/kafka"
	"qplace/pkg/testutil/containers"
)

const testTopic = "qplace.jobs.test"

type recordingHandler struct {
	mu       sync.Mutex
	messages []*kafka.Message
}

func (h *recordingHandler) Handle(_ context.Context, msg *kafka.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg)
	return nil
}

func (h *recordingHandler) snapshot() []*kafka.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*kafka.Message(nil), h.messages...)
}

type EventsSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
	producer *kafka.Producer
}

func TestEventsSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(EventsSuite))
}

func (s *EventsSuite) SetupSuite() {
	s.redpanda = containers.NewRedpandaContainer(s.T())

	ctx := context.Background()
	brokers := []string{s.redpanda.Broker}
	s.Require().NoError(kafka.EnsureTopics(ctx, brokers, testTopic))
	// A second call must tolerate the existing topic.
	s.Require().NoError(kafka.EnsureTopics(ctx, brokers, testTopic))

	producer, err := kafka.NewProducer(brokers, slog.Default())
	s.Require().NoError(err)
	s.Require().NotNil(producer)
	s.producer = producer
	s.T().Cleanup(producer.Close)
}

func (s *EventsSuite) TestPublishRoundTrip() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	handler := &recordingHandler{}
	consumer, err := kafka.NewConsumer(
		[]string{s.redpanda.Broker},
		"qplace-events-test",
		[]string{testTopic},
		handler,
		slog.Default(),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = consumer.Run(runCtx)
	}()

	publisher, err := events.NewPublisher(s.producer, testTopic)
	s.Require().NoError(err)

	sent := models.Event{
		Type:     models.EventJobCompleted,
		JobID:    "3f0c8a4e-test",
		Strategy: "graph_partition",
		Score:    2,
		At:       time.Now().UTC().Truncate(time.Millisecond),
	}
	s.Require().NoError(publisher.Publish(ctx, sent))

	s.Require().Eventually(func() bool {
		return len(handler.snapshot()) >= 1
	}, 20*time.Second, 100*time.Millisecond, "event should arrive at the consumer")

	stop()
	<-done

	messages := handler.snapshot()
	s.Equal(testTopic, messages[0].Topic)
	s.Equal([]byte(sent.JobID), messages[0].Key)

	var got models.Event
	s.Require().NoError(json.Unmarshal(messages[0].Value, &got))
	s.Equal(sent.Type, got.Type)
	s.Equal(sent.JobID, got.JobID)
	s.Equal(sent.Score, got.Score)
}

func (s *EventsSuite) TestNopPublisherDiscards() {
	err := events.Nop{}.Publish(context.Background(), models.Event{Type: models.EventJobAccepted})
	s.NoError(err)
}

func (s *EventsSuite) TestNewPublisherValidation() {
	_, err := events.NewPublisher(nil, testTopic)
	s.Error(err)

	_, err = events.NewPublisher(s.producer, "")
	s.Error(err)
}

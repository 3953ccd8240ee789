// Package events publishes job lifecycle notifications to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"qplace/internal/placement/models"
	"qplace/internal/platform/kafka"
	"qplace/internal/platform/metrics"
)

// Publisher emits placement events to a single topic, keyed by job id so
// one job's events stay ordered within a partition.
type Publisher struct {
	producer *kafka.Producer
	topic    string
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Option configures the publisher.
type Option func(*Publisher)

// WithMetrics records publish outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// WithLogger sets the publisher's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// NewPublisher wraps a producer for the given topic.
func NewPublisher(producer *kafka.Producer, topic string, opts ...Option) (*Publisher, error) {
	if producer == nil {
		return nil, fmt.Errorf("events: producer is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("events: topic is required")
	}
	p := &Publisher{
		producer: producer,
		topic:    topic,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Publish sends one event. Failures are counted and returned; callers
// decide whether a lost event fails the operation.
func (p *Publisher) Publish(ctx context.Context, event models.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.producer.Publish(ctx, p.topic, []byte(event.JobID), value); err != nil {
		if p.metrics != nil {
			p.metrics.EventPublishFails.Inc()
		}
		p.logger.WarnContext(ctx, "event publish failed",
			"type", event.Type,
			"job_id", event.JobID,
			"error", err,
		)
		return err
	}

	if p.metrics != nil {
		p.metrics.EventsPublished.Inc()
	}
	return nil
}

// Nop discards events.
type Nop struct{}

// Publish drops the event.
func (Nop) Publish(context.Context, models.Event) error { return nil }

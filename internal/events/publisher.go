package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Publisher defines the interface for publishing session events
type Publisher interface {
	PublishSessionEvent(ctx context.Context, event *SessionEvent) error
	Close() error
}

// KafkaPublisher implements Publisher using Watermill with Kafka
type KafkaPublisher struct {
	publisher message.Publisher
	logger    *slog.Logger
	topicName string
}

// PublisherConfig holds configuration for the event publisher
type PublisherConfig struct {
	KafkaBrokers []string
	TopicName    string
	Logger       *slog.Logger
}

// NewKafkaPublisher creates a new Kafka-based event publisher using Watermill
func NewKafkaPublisher(config PublisherConfig) (*KafkaPublisher, error) {
	logger := watermill.NewSlogLogger(config.Logger)

	publisherConfig := kafka.PublisherConfig{
		Brokers:   config.KafkaBrokers,
		Marshaler: kafka.DefaultMarshaler{},
	}

	publisher, err := kafka.NewPublisher(publisherConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
	}

	return &KafkaPublisher{
		publisher: publisher,
		logger:    config.Logger,
		topicName: config.TopicName,
	}, nil
}

// PublishSessionEvent publishes a session event to Kafka
func (p *KafkaPublisher) PublishSessionEvent(ctx context.Context, event *SessionEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal session event: %w", err)
	}

	msg := message.NewMessage(event.ID, eventBytes)
	msg.Metadata.Set("event_type", string(event.Type))
	msg.Metadata.Set("source", event.Source)
	msg.Metadata.Set("version", event.Version)
	msg.Metadata.Set("timestamp", event.Timestamp.Format("2006-01-02T15:04:05Z07:00"))

	if err := p.publisher.Publish(p.topicName, msg); err != nil {
		p.logger.Error("Failed to publish session event",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err)
		return fmt.Errorf("failed to publish session event: %w", err)
	}

	p.logger.Debug("Published session event",
		"event_id", event.ID,
		"event_type", event.Type,
		"topic", p.topicName)

	return nil
}

// Close closes the publisher and releases resources
func (p *KafkaPublisher) Close() error {
	return p.publisher.Close()
}

// MockPublisher is an in-memory implementation for testing and for running
// without a broker
type MockPublisher struct {
	mu     sync.Mutex
	events []SessionEvent
	logger *slog.Logger
}

// NewMockPublisher creates a new mock event publisher
func NewMockPublisher(logger *slog.Logger) *MockPublisher {
	return &MockPublisher{
		events: make([]SessionEvent, 0),
		logger: logger,
	}
}

// PublishSessionEvent stores the event in memory
func (m *MockPublisher) PublishSessionEvent(_ context.Context, event *SessionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *event)
	m.logger.Debug("Mock: published session event",
		"event_id", event.ID,
		"event_type", event.Type)
	return nil
}

// Close is a no-op for the mock publisher
func (m *MockPublisher) Close() error {
	return nil
}

// PublishedEvents returns all published events (for testing)
func (m *MockPublisher) PublishedEvents() []SessionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SessionEvent, len(m.events))
	copy(out, m.events)
	return out
}

// EventsOfType filters published events by type (for testing)
func (m *MockPublisher) EventsOfType(t EventType) []SessionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SessionEvent
	for _, e := range m.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// ClearEvents clears all published events (for testing)
func (m *MockPublisher) ClearEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = m.events[:0]
}

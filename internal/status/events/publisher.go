// Package events publishes resolved statuses to Kafka for downstream
// consumers (audit trail, notification service).
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"veristat/internal/platform/kafka/producer"
	"veristat/internal/status/models"
	"veristat/pkg/domain"
	"veristat/pkg/requestcontext"
)

// DefaultTopic is where status resolution events land.
const DefaultTopic = "veristat.status.resolved"

// StatusResolvedEvent is the wire format of one resolution.
type StatusResolvedEvent struct {
	EventID    string                   `json:"event_id"`
	ClientID   string                   `json:"client_id"`
	State      models.VerificationState `json:"state"`
	Verified   int                      `json:"verified_count"`
	Total      int                      `json:"total_count"`
	Method     string                   `json:"method,omitempty"`
	RequestID  string                   `json:"request_id,omitempty"`
	ResolvedAt time.Time                `json:"resolved_at"`
}

// MessageProducer is the slice of the Kafka producer the publisher needs.
type MessageProducer interface {
	ProduceAsync(msg *producer.Message) error
}

// Publisher emits a StatusResolvedEvent for every cached resolution. It is
// plugged into the coordinator as its event sink. Delivery is fire and
// forget: the status pipeline never waits on Kafka.
type Publisher struct {
	producer MessageProducer
	topic    string
	logger   *slog.Logger
}

// NewPublisher constructs a publisher. An empty topic falls back to
// DefaultTopic.
func NewPublisher(producer MessageProducer, topic string, logger *slog.Logger) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{producer: producer, topic: topic, logger: logger}
}

// StatusResolved publishes one resolution. Events are keyed by client ID so
// per-client ordering survives partitioning.
func (p *Publisher) StatusResolved(ctx context.Context, id domain.ClientID, status models.StatusInfo) {
	event := StatusResolvedEvent{
		EventID:    uuid.NewString(),
		ClientID:   id.String(),
		State:      status.State,
		Verified:   status.VerifiedCount,
		Total:      status.TotalCount,
		Method:     status.Method,
		RequestID:  requestcontext.RequestID(ctx),
		ResolvedAt: requestcontext.Now(ctx).UTC(),
	}

	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("marshal status event", "client_id", id, "error", err)
		return
	}

	if err := p.producer.ProduceAsync(&producer.Message{
		Topic: p.topic,
		Key:   []byte(event.ClientID),
		Value: value,
		Headers: map[string]string{
			"event_type": "status.resolved",
		},
	}); err != nil {
		p.logger.Error("publish status event", "client_id", id, "error", err)
	}
}

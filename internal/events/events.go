// Package events fans job lifecycle changes out to a message broker so
// dashboards and audit sinks can follow the dispatch flow without polling the
// API. Publishing is best-effort: a broker failure is logged and never fails
// the operation that produced the event.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Type identifies a job lifecycle event.
type Type string

const (
	TypeJobCreated   Type = "job.created"
	TypeJobAssigned  Type = "job.assigned"
	TypeJobCompleted Type = "job.completed"
	TypeJobFailed    Type = "job.failed"
	TypeJobRequeued  Type = "job.requeued"
)

// Event is the wire shape published to the broker.
type Event struct {
	EventID    string    `json:"event_id"`
	Type       Type      `json:"type"`
	JobID      string    `json:"job_id"`
	StoreID    string    `json:"store_id,omitempty"`
	WorkerID   string    `json:"worker_id,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Broker is the transport the publisher writes to.
type Broker interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// Publisher serializes events and hands them to the broker. A nil *Publisher
// is valid and drops every event, so callers never need a nil check.
type Publisher struct {
	broker Broker
	logger *slog.Logger
}

// NewPublisher creates a publisher over the given broker.
func NewPublisher(broker Broker, logger *slog.Logger) *Publisher {
	return &Publisher{
		broker: broker,
		logger: logger,
	}
}

// Emit publishes one event. Errors are logged, never returned.
func (p *Publisher) Emit(ctx context.Context, eventType Type, jobID, storeID, workerID, detail string, occurredAt time.Time) {
	if p == nil || p.broker == nil {
		return
	}

	event := Event{
		EventID:    uuid.New().String(),
		Type:       eventType,
		JobID:      jobID,
		StoreID:    storeID,
		WorkerID:   workerID,
		Detail:     detail,
		OccurredAt: occurredAt,
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal event",
			slog.String("type", string(eventType)),
			slog.Any("error", err),
		)
		return
	}

	if err := p.broker.Publish(ctx, body, "application/json"); err != nil {
		p.logger.Warn("Failed to publish event",
			slog.String("type", string(eventType)),
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
	}
}

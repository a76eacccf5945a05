package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxCreated    OutboxStatus = "CREATED"
	OutboxProcessing OutboxStatus = "PROCESSING"
	OutboxFailed     OutboxStatus = "FAILED"
	OutboxDone       OutboxStatus = "DONE"
)

// TopicWorkflowEvents carries transition notifications for the external
// dispatcher (push/email/SMS). Delivery guarantees belong to that consumer.
const TopicWorkflowEvents = "workflow_events"

type OutboxTask struct {
	ID          uuid.UUID       `db:"id"`
	Status      OutboxStatus    `db:"status"`
	Payload     json.RawMessage `db:"payload"`
	Topic       string          `db:"topic"`
	Attempts    int             `db:"attempts"`
	LastError   *string         `db:"last_error"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
	CompletedAt *time.Time      `db:"completed_at"`
}

// TransitionEvent is emitted on every accepted status transition.
type TransitionEvent struct {
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	OldStatus  string    `json:"old_status"`
	NewStatus  string    `json:"new_status"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewTransitionTask wraps a transition event into an outbox task for the
// workflow events topic.
func NewTransitionTask(entityType, entityID, oldStatus, newStatus string, ts time.Time) (*OutboxTask, error) {
	payload, err := json.Marshal(TransitionEvent{
		EntityType: entityType,
		EntityID:   entityID,
		OldStatus:  oldStatus,
		NewStatus:  newStatus,
		Timestamp:  ts,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal transition event: %w", err)
	}
	return &OutboxTask{
		ID:      uuid.New(),
		Status:  OutboxCreated,
		Payload: payload,
		Topic:   TopicWorkflowEvents,
	}, nil
}

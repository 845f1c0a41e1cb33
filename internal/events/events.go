// Package events publishes engine domain events after their transaction commits.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sjperalta/fintera-installments/internal/actor"
)

// Type names a domain event
type Type string

const (
	PlanCreated        Type = "plan.created"
	PlanCancelled      Type = "plan.cancelled"
	PlanCompleted      Type = "plan.completed"
	InstallmentSettled Type = "installment.settled"
	CreditApplied      Type = "credit.applied"
	CreditRecorded     Type = "credit.recorded"
)

// Event is the envelope written to the broker
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       Type           `json:"type"`
	PlanID     uint           `json:"plan_id,omitempty"`
	CustomerID uint           `json:"customer_id"`
	Actor      actor.Actor    `json:"actor"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// New stamps an event with an id, time and the actor from ctx
func New(ctx context.Context, t Type, customerID, planID uint, payload map[string]any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		PlanID:     planID,
		CustomerID: customerID,
		Actor:      actor.FromContext(ctx),
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Publisher is the interface used by services to publish events.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

package types

import "time"

// CalculationEventType names a calculation lifecycle change.
type CalculationEventType string

const (
	CalculationCreated CalculationEventType = "calculation.created"
	CalculationUpdated CalculationEventType = "calculation.updated"
	CalculationDeleted CalculationEventType = "calculation.deleted"
)

// CalculationEvent is published to the message broker after a calculation
// change has been committed.
type CalculationEvent struct {
	Type        CalculationEventType `json:"type"`
	Calculation Calculation          `json:"calculation"`

	// ActorID is the user whose request caused the change.
	ActorID    int       `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

package event

import (
	"time"

	"github.com/google/uuid"
)

// Type discriminates event payloads in the settlement log.
type Type int32

const (
	TypeUnknown Type = iota
	TypeDeposited
	TypeWithdrawn
	TypeIntentCreated
	TypeIntentExecuted
	TypeIntentCancelled
)

func (t Type) String() string {
	switch t {
	case TypeDeposited:
		return "Deposited"
	case TypeWithdrawn:
		return "Withdrawn"
	case TypeIntentCreated:
		return "IntentCreated"
	case TypeIntentExecuted:
		return "IntentExecuted"
	case TypeIntentCancelled:
		return "IntentCancelled"
	default:
		return "Unknown"
	}
}

// Envelope wraps every committed state change. The sequence is assigned by
// the settlement engine under its operation lock, so envelope order is the
// commit order.
type Envelope struct {
	// Global monotonic sequence assigned at commit time.
	Sequence int64

	// EventID is a stable identifier for idempotent persistence and
	// downstream dedup.
	EventID uuid.UUID

	// Type discriminates the payload.
	Type Type

	// Timestamp is the commit wall-clock time.
	Timestamp time.Time

	// Payload is the JSON-encoded event-specific data.
	Payload []byte
}

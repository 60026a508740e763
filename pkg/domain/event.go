package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event that has occurred in the system.
// Events are immutable facts about state changes.
type Event struct {
	// OriginatorID is the identifier of the aggregate this event belongs to.
	OriginatorID uuid.UUID

	// OriginatorVersion is the version of the aggregate after applying this
	// event. Versions form a contiguous sequence starting at 1.
	OriginatorVersion int64

	// Timestamp is when the event was created (UTC, microsecond precision).
	Timestamp time.Time

	// Topic is the stable string naming the event class. Decoders dispatch
	// on it via the Registry.
	Topic string

	// State carries the event payload as a value map. Values are limited to
	// the transcoder's primitives plus registered custom types.
	State map[string]any
}

// Now returns the current UTC time truncated to microsecond precision,
// the resolution persisted by the transcoder.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

package domain

import (
	"github.com/google/uuid"
)

// Aggregate defines the interface that all aggregates must implement.
type Aggregate interface {
	// ID returns the unique identifier of the aggregate.
	ID() uuid.UUID

	// Version returns the current version of the aggregate.
	Version() int64

	// Topic returns the stable type name of the aggregate, used to key
	// snapshots in the Registry.
	Topic() string

	// CollectPendingEvents drains and returns events that have been
	// triggered but not yet persisted.
	CollectPendingEvents() []*Event
}

// Snapshotter is implemented by aggregates that can be snapshotted.
type Snapshotter interface {
	// SnapshotState returns the aggregate's state as a value map suitable
	// for the transcoder. The inverse lives in the Registry's aggregate
	// entry (FromSnapshot).
	SnapshotState() map[string]any
}

// Base provides bookkeeping common to all aggregates: identity, version
// tracking and the pending-event buffer. Embed it in aggregate
// implementations.
//
// Base is not safe for concurrent use; confine an aggregate instance to a
// single logical actor between load and save.
type Base struct {
	id      uuid.UUID
	version int64
	pending []*Event
}

// NewBase creates the bookkeeping root for an aggregate with the given ID.
func NewBase(id uuid.UUID) Base {
	return Base{id: id}
}

// RestoreBase creates the bookkeeping root for an aggregate reconstructed
// from a snapshot at the given version.
func RestoreBase(id uuid.UUID, version int64) Base {
	return Base{id: id, version: version}
}

// ID returns the aggregate's unique identifier.
func (b *Base) ID() uuid.UUID {
	return b.id
}

// Version returns the aggregate's current version.
func (b *Base) Version() int64 {
	return b.version
}

// CollectPendingEvents drains the pending-event buffer. The returned slice
// is ordered as triggered and is handed to the event store in a single put.
func (b *Base) CollectPendingEvents() []*Event {
	pending := b.pending
	b.pending = nil
	return pending
}

// Trigger creates a new event against this aggregate, buffers it and
// advances the version. The caller applies the resulting event to its own
// state so that command execution and replay share one code path.
func (b *Base) Trigger(topic string, state map[string]any) *Event {
	ev := &Event{
		OriginatorID:      b.id,
		OriginatorVersion: b.version + 1,
		Timestamp:         Now(),
		Topic:             topic,
		State:             state,
	}
	b.pending = append(b.pending, ev)
	b.version = ev.OriginatorVersion
	return ev
}

// Advance moves the bookkeeping to the given replayed event. Reducers call
// this before applying the event's state change.
func (b *Base) Advance(ev *Event) {
	b.id = ev.OriginatorID
	b.version = ev.OriginatorVersion
}

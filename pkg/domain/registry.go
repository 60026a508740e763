package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Reducer folds one event onto an aggregate and returns the new state.
// For creation events the incoming aggregate is nil. Reducers are pure
// with respect to stored records; the repository never mutates them.
type Reducer func(agg Aggregate, ev *Event) (Aggregate, error)

// EventType describes one registered event class.
type EventType struct {
	// SchemaVersion is the current schema version written for new events
	// of this topic. Zero means 1.
	SchemaVersion int

	// Reduce applies an event of this topic during replay.
	Reduce Reducer
}

// AggregateType describes one registered aggregate class.
type AggregateType struct {
	// FromSnapshot reconstructs an aggregate from a decoded snapshot.
	FromSnapshot func(id uuid.UUID, version int64, state map[string]any) (Aggregate, error)
}

// Registry maps topic strings to event reducers and aggregate
// constructors. It replaces dynamic class resolution: the domain layer
// populates it at startup and it is read-only thereafter, so it may be
// shared across goroutines without synchronization.
type Registry struct {
	events     map[string]EventType
	aggregates map[string]AggregateType
}

// NewRegistry creates an empty topic registry.
func NewRegistry() *Registry {
	return &Registry{
		events:     make(map[string]EventType),
		aggregates: make(map[string]AggregateType),
	}
}

// RegisterEvent binds an event topic to its reducer and schema version.
// Registration is not safe for concurrent use; do it during construction.
func (r *Registry) RegisterEvent(topic string, et EventType) {
	if et.SchemaVersion == 0 {
		et.SchemaVersion = 1
	}
	r.events[topic] = et
}

// RegisterAggregate binds an aggregate topic to its snapshot constructor.
func (r *Registry) RegisterAggregate(topic string, at AggregateType) {
	r.aggregates[topic] = at
}

// HasEvent reports whether an event topic is known.
func (r *Registry) HasEvent(topic string) bool {
	_, ok := r.events[topic]
	return ok
}

// SchemaVersion returns the current schema version for an event topic.
// Unknown topics report 1, the implicit default.
func (r *Registry) SchemaVersion(topic string) int {
	if et, ok := r.events[topic]; ok {
		return et.SchemaVersion
	}
	return 1
}

// Reduce dispatches an event to its registered reducer.
func (r *Registry) Reduce(agg Aggregate, ev *Event) (Aggregate, error) {
	et, ok := r.events[ev.Topic]
	if !ok {
		return nil, &TranscodingError{Tag: ev.Topic, Reason: "no reducer registered"}
	}
	next, err := et.Reduce(agg, ev)
	if err != nil {
		return nil, fmt.Errorf("failed to reduce %s at version %d: %w", ev.Topic, ev.OriginatorVersion, err)
	}
	return next, nil
}

// FromSnapshot reconstructs an aggregate via its registered constructor.
func (r *Registry) FromSnapshot(topic string, id uuid.UUID, version int64, state map[string]any) (Aggregate, error) {
	at, ok := r.aggregates[topic]
	if !ok {
		return nil, &TranscodingError{Tag: topic, Reason: "no aggregate registered"}
	}
	return at.FromSnapshot(id, version, state)
}

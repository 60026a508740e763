// Package eventstore is the public facade over the mapper and recorder.
package eventstore

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/Unholster/eventsourcing/pkg/domain"
	"github.com/Unholster/eventsourcing/pkg/mapper"
	"github.com/Unholster/eventsourcing/pkg/store"
)

// Store persists domain events through the mapper's byte pipeline and
// reads them back, upcasting and decoding lazily.
type Store struct {
	mapper   *mapper.Mapper
	recorder store.Recorder
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates an event store over a mapper and a recorder.
func New(m *mapper.Mapper, recorder store.Recorder, opts ...Option) *Store {
	s := &Store{mapper: m, recorder: recorder, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put maps events to stored records and appends them in one transaction.
// Atomicity extends across all events in the call: a multi-aggregate save
// either commits entirely or fails entirely. Returns the assigned
// notification ids in input order.
func (s *Store) Put(events []*domain.Event) ([]uint64, error) {
	if len(events) == 0 {
		return nil, nil
	}
	records := make([]*store.StoredEvent, len(events))
	for i, ev := range events {
		rec, err := s.mapper.ToStoredEvent(ev)
		if err != nil {
			return nil, err
		}
		records[i] = rec
	}
	ids, err := s.recorder.InsertEvents(records)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("events stored",
		"count", len(ids),
		"first_notification_id", ids[0],
	)
	return ids, nil
}

// Get pulls an originator's records and returns a finite, non-restartable
// iterator that upcasts and decodes one event per advance.
func (s *Store) Get(originatorID uuid.UUID, q store.EventQuery) *Iterator {
	records, err := s.recorder.SelectEvents(originatorID, q)
	return &Iterator{mapper: s.mapper, records: records, err: err}
}

// Recorder exposes the underlying recorder for collaborators that read
// the global stream (the notification log).
func (s *Store) Recorder() store.Recorder {
	return s.recorder
}

// Iterator yields decoded domain events in query order. It is finite and
// not restartable.
type Iterator struct {
	mapper  *mapper.Mapper
	records []*store.StoredEvent
	pos     int
	current *domain.Event
	err     error
}

// Next advances the iterator. It returns false when the sequence is
// exhausted or a decode fails; check Err afterwards.
func (it *Iterator) Next() bool {
	if it.err != nil || it.pos >= len(it.records) {
		return false
	}
	ev, err := it.mapper.ToDomainEvent(it.records[it.pos])
	if err != nil {
		it.err = err
		return false
	}
	it.pos++
	it.current = ev
	return true
}

// Event returns the event produced by the last successful Next.
func (it *Iterator) Event() *domain.Event {
	return it.current
}

// Err reports the first failure encountered while fetching or decoding.
func (it *Iterator) Err() error {
	return it.err
}

// Collect drains the iterator into a slice.
func (it *Iterator) Collect() ([]*domain.Event, error) {
	var out []*domain.Event
	for it.Next() {
		out = append(out, it.Event())
	}
	return out, it.Err()
}

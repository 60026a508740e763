// Package repository reconstructs aggregates by replaying their events,
// starting from the newest usable snapshot when one exists.
package repository

import (
	"errors"

	"github.com/google/uuid"

	"github.com/Unholster/eventsourcing/pkg/domain"
	"github.com/Unholster/eventsourcing/pkg/eventstore"
	"github.com/Unholster/eventsourcing/pkg/mapper"
	"github.com/Unholster/eventsourcing/pkg/store"
)

// ErrVersionNotFound is returned in strict mode when the requested version
// exceeds the highest stored version. The default contract clamps instead.
var ErrVersionNotFound = errors.New("aggregate version not found")

// Repository reconstructs aggregates from stored events. Replay is
// deterministic: repeated calls over the same committed records yield
// equal state.
type Repository struct {
	events    *eventstore.Store
	mapper    *mapper.Mapper
	registry  *domain.Registry
	snapshots store.SnapshotRecorder
	strict    bool
}

// Option configures a Repository.
type Option func(*Repository)

// WithSnapshots enables the snapshot fast-path.
func WithSnapshots(rec store.SnapshotRecorder) Option {
	return func(r *Repository) {
		r.snapshots = rec
	}
}

// WithStrictVersion makes Get fail with ErrVersionNotFound when the
// requested version exceeds the highest available one, instead of
// clamping.
func WithStrictVersion() Option {
	return func(r *Repository) {
		r.strict = true
	}
}

// New creates a Repository over an event store.
func New(events *eventstore.Store, m *mapper.Mapper, registry *domain.Registry, opts ...Option) *Repository {
	r := &Repository{events: events, mapper: m, registry: registry}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetOption bounds a single Get call.
type GetOption func(*getQuery)

type getQuery struct {
	version int64
}

// AtVersion reconstructs the aggregate as of the given version. If it
// exceeds the highest available version the aggregate is returned at that
// highest version; this clamping is deliberate, not an error.
func AtVersion(version int64) GetOption {
	return func(q *getQuery) {
		q.version = version
	}
}

// Get reconstructs an aggregate from its snapshot and events. It returns
// domain.ErrAggregateNotFound when neither exists.
func (r *Repository) Get(aggregateID uuid.UUID, opts ...GetOption) (domain.Aggregate, error) {
	var q getQuery
	for _, opt := range opts {
		opt(&q)
	}

	var agg domain.Aggregate
	var start int64

	if r.snapshots != nil {
		snaps, err := r.snapshots.SelectSnapshots(aggregateID, store.EventQuery{
			Lte:   q.version,
			Desc:  true,
			Limit: 1,
		})
		if err != nil {
			return nil, err
		}
		if len(snaps) > 0 {
			agg, err = r.mapper.FromSnapshot(snaps[0])
			if err != nil {
				return nil, err
			}
			start = snaps[0].OriginatorVersion
		}
	}

	it := r.events.Get(aggregateID, store.EventQuery{Gt: start, Lte: q.version})
	for it.Next() {
		next, err := r.registry.Reduce(agg, it.Event())
		if err != nil {
			return nil, err
		}
		agg = next
	}
	if err := it.Err(); err != nil {
		return nil, err
	}

	if agg == nil {
		return nil, domain.ErrAggregateNotFound
	}
	if r.strict && q.version != 0 && agg.Version() < q.version {
		return nil, ErrVersionNotFound
	}
	return agg, nil
}

// Package memory provides in-process recorders backed by plain maps.
// They serve the plain-memory infrastructure factory and tests.
package memory

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Unholster/eventsourcing/pkg/domain"
	"github.com/Unholster/eventsourcing/pkg/store"
)

// Recorder is an in-memory store.Recorder. A single mutex serializes
// writers, so notification ids are assigned in commit order.
type Recorder struct {
	mu      sync.RWMutex
	streams map[uuid.UUID]map[int64]*store.StoredEvent
	global  []*store.Notification
	nextID  uint64
}

// NewRecorder creates an empty in-memory recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		streams: make(map[uuid.UUID]map[int64]*store.StoredEvent),
		nextID:  1,
	}
}

// InsertEvents atomically inserts all records and returns their
// notification ids. On any version collision nothing is inserted and a
// record conflict is returned.
func (r *Recorder) InsertEvents(records []*store.StoredEvent) ([]uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Validate the whole batch before touching state.
	batch := make(map[uuid.UUID]map[int64]bool)
	for _, rec := range records {
		stream := r.streams[rec.OriginatorID]
		if _, exists := stream[rec.OriginatorVersion]; exists {
			return nil, &domain.RecordConflictError{
				OriginatorID:      rec.OriginatorID,
				OriginatorVersion: rec.OriginatorVersion,
			}
		}
		seen := batch[rec.OriginatorID]
		if seen == nil {
			seen = make(map[int64]bool)
			batch[rec.OriginatorID] = seen
		}
		if seen[rec.OriginatorVersion] {
			return nil, &domain.RecordConflictError{
				OriginatorID:      rec.OriginatorID,
				OriginatorVersion: rec.OriginatorVersion,
			}
		}
		seen[rec.OriginatorVersion] = true
	}

	ids := make([]uint64, len(records))
	for i, rec := range records {
		stored := *rec
		stream := r.streams[rec.OriginatorID]
		if stream == nil {
			stream = make(map[int64]*store.StoredEvent)
			r.streams[rec.OriginatorID] = stream
		}
		stream[rec.OriginatorVersion] = &stored

		ids[i] = r.nextID
		r.global = append(r.global, &store.Notification{
			ID:                r.nextID,
			OriginatorID:      stored.OriginatorID,
			OriginatorVersion: stored.OriginatorVersion,
			Topic:             stored.Topic,
			State:             stored.State,
		})
		r.nextID++
	}
	return ids, nil
}

// SelectEvents performs a versioned range read for one originator.
func (r *Recorder) SelectEvents(originatorID uuid.UUID, q store.EventQuery) ([]*store.StoredEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stream := r.streams[originatorID]
	var versions []int64
	for v := range stream {
		versions = append(versions, v)
	}
	sortVersions(versions, q.Desc)

	var out []*store.StoredEvent
	for _, v := range versions {
		rec := stream[v]
		if !matches(rec, q) {
			continue
		}
		out = append(out, copyOf(rec))
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// SelectNotifications scans the global stream ascending from id >= start.
func (r *Recorder) SelectNotifications(start uint64, limit int) ([]*store.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*store.Notification, 0, limit)
	for _, n := range r.global {
		if n.ID < start {
			continue
		}
		nn := *n
		out = append(out, &nn)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// MaxNotificationID returns the highest assigned notification id.
func (r *Recorder) MaxNotificationID() (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nextID - 1, nil
}

// ConsumeNotificationIDs burns n ids without storing rows, reproducing the
// permanent gaps an aborted transaction leaves in a database-backed store.
// Intended for tests of gap-tolerant readers.
func (r *Recorder) ConsumeNotificationIDs(n uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID += n
}

func matches(rec *store.StoredEvent, q store.EventQuery) bool {
	if q.Gt != 0 && rec.OriginatorVersion <= q.Gt {
		return false
	}
	if q.Lte != 0 && rec.OriginatorVersion > q.Lte {
		return false
	}
	return true
}

func copyOf(rec *store.StoredEvent) *store.StoredEvent {
	c := *rec
	return &c
}

// SnapshotRecorder is an in-memory store.SnapshotRecorder.
type SnapshotRecorder struct {
	mu        sync.RWMutex
	snapshots map[uuid.UUID]map[int64]*store.Snapshot
}

// NewSnapshotRecorder creates an empty in-memory snapshot recorder.
func NewSnapshotRecorder() *SnapshotRecorder {
	return &SnapshotRecorder{snapshots: make(map[uuid.UUID]map[int64]*store.Snapshot)}
}

// InsertSnapshot stores one snapshot; a duplicate key is a record conflict.
func (r *SnapshotRecorder) InsertSnapshot(snapshot *store.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stream := r.snapshots[snapshot.OriginatorID]
	if stream == nil {
		stream = make(map[int64]*store.Snapshot)
		r.snapshots[snapshot.OriginatorID] = stream
	}
	if _, exists := stream[snapshot.OriginatorVersion]; exists {
		return &domain.RecordConflictError{
			OriginatorID:      snapshot.OriginatorID,
			OriginatorVersion: snapshot.OriginatorVersion,
		}
	}
	c := *snapshot
	stream[snapshot.OriginatorVersion] = &c
	return nil
}

// SelectSnapshots performs a versioned range read over snapshots.
func (r *SnapshotRecorder) SelectSnapshots(originatorID uuid.UUID, q store.EventQuery) ([]*store.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stream := r.snapshots[originatorID]
	var versions []int64
	for v := range stream {
		versions = append(versions, v)
	}
	sortVersions(versions, q.Desc)

	var out []*store.Snapshot
	for _, v := range versions {
		snap := stream[v]
		if q.Gt != 0 && snap.OriginatorVersion <= q.Gt {
			continue
		}
		if q.Lte != 0 && snap.OriginatorVersion > q.Lte {
			continue
		}
		c := *snap
		out = append(out, &c)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func sortVersions(versions []int64, desc bool) {
	sort.Slice(versions, func(i, j int) bool {
		if desc {
			return versions[i] > versions[j]
		}
		return versions[i] < versions[j]
	})
}

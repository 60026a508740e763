package store

import "github.com/google/uuid"

// Recorder appends and reads event records and notification rows
// atomically against a backing store.
//
// Implementations are safe for concurrent use. Recorder methods are the
// library's only suspension points; they inherit whatever cancellation
// semantics the backing store provides.
type Recorder interface {
	// InsertEvents atomically inserts all records in one transaction and
	// returns their assigned notification ids in input order. Ids are
	// contiguous within a single call but not necessarily adjacent to
	// previously returned ids.
	//
	// If any row would violate the per-originator version constraint the
	// whole transaction aborts with a domain.RecordConflictError; any other
	// failure surfaces as a domain.PersistenceError.
	InsertEvents(records []*StoredEvent) ([]uint64, error)

	// SelectEvents performs a versioned range read for one originator.
	SelectEvents(originatorID uuid.UUID, q EventQuery) ([]*StoredEvent, error)

	// SelectNotifications scans the global stream ascending from
	// id >= start, returning at most limit rows. If the reader sees
	// notification id N, every committed notification with id < N is
	// either visible or permanently absent; gaps are never transient.
	SelectNotifications(start uint64, limit int) ([]*Notification, error)

	// MaxNotificationID returns the highest assigned notification id,
	// zero when the store is empty.
	MaxNotificationID() (uint64, error)
}

// SnapshotRecorder appends and reads snapshot records. Snapshots carry no
// notification id and no contiguity constraint.
type SnapshotRecorder interface {
	// InsertSnapshot stores one snapshot. A duplicate
	// (originator id, version) key raises a domain.RecordConflictError,
	// which callers may treat as benign.
	InsertSnapshot(snapshot *Snapshot) error

	// SelectSnapshots performs a versioned range read over an originator's
	// snapshots.
	SelectSnapshots(originatorID uuid.UUID, q EventQuery) ([]*Snapshot, error)
}

// Closer is implemented by recorders holding external resources.
type Closer interface {
	Close() error
}

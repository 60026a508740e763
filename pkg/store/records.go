// Package store defines the wire records and the recorder contracts the
// persistence backends implement.
package store

import (
	"github.com/google/uuid"
)

// StoredEvent is the wire form of a domain event: the state payload has
// been transcoded and optionally compressed and encrypted. Records are
// immutable once committed; no in-place update or delete is part of the
// contract.
type StoredEvent struct {
	OriginatorID      uuid.UUID
	OriginatorVersion int64
	Topic             string
	State             []byte
}

// Notification is a stored event enriched with the globally unique,
// strictly increasing id assigned at insert. Ids are monotonic but need
// not be contiguous: aborted transactions leave permanent gaps.
type Notification struct {
	ID                uint64
	OriginatorID      uuid.UUID
	OriginatorVersion int64
	Topic             string
	State             []byte
}

// Snapshot is structurally a stored event but lives in a separate store
// and never participates in notification ordering.
type Snapshot struct {
	OriginatorID      uuid.UUID
	OriginatorVersion int64
	Topic             string
	State             []byte
}

// EventQuery bounds a versioned range read. Zero values leave a dimension
// unbounded.
type EventQuery struct {
	// Gt selects records with version strictly greater than this.
	Gt int64

	// Lte selects records with version less than or equal to this.
	// Zero means no upper bound.
	Lte int64

	// Desc reverses the version ordering.
	Desc bool

	// Limit caps the number of returned records. Zero means no cap.
	Limit int
}

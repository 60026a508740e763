// Package idgen generates the identifiers used across the library:
// random UUIDs for originators, name-derived UUIDs for index aggregates
// and sortable ULIDs for correlation.
package idgen

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewID returns a fresh random originator identifier.
func NewID() uuid.UUID {
	return uuid.New()
}

// DeriveID returns the UUIDv5 of name within namespace. Aggregates whose
// identity is a function of a name (e.g. an index keyed by page title) use
// this so that concurrent creators collide on the version constraint
// instead of silently diverging.
func DeriveID(namespace uuid.UUID, name string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(name))
}

// MustGenerateSortableID returns a lexicographically sortable ULID string.
// Used for correlation ids where creation order matters in logs.
func MustGenerateSortableID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	ms := ulid.Timestamp(time.Now())
	id, err := ulid.New(ms, entropy)
	if err != nil {
		panic(err)
	}
	return id.String()
}

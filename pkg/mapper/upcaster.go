package mapper

import (
	"github.com/Unholster/eventsourcing/pkg/domain"
)

// Upcaster migrates one schema step of one topic. Records carry their
// schema version in the reserved state key; version k records are handed
// to the upcaster declaring FromVersion k.
type Upcaster struct {
	Topic       string
	FromVersion int

	// Upcast transforms the decoded state document and may rename the
	// topic. It must be pure and total for the records it claims; an
	// error fails the read with an integrity error.
	Upcast func(state map[string]any, topic string) (map[string]any, string, error)
}

// UpcasterChain applies upcasters in registration order until no
// registered upcaster matches the record's (topic, version).
type UpcasterChain struct {
	upcasters []Upcaster
}

// NewUpcasterChain creates a chain from the given upcasters.
func NewUpcasterChain(upcasters ...Upcaster) *UpcasterChain {
	return &UpcasterChain{upcasters: upcasters}
}

// Apply migrates a decoded state document to the current schema. Each
// applied step bumps the reserved version key by one; the scan restarts so
// a renamed topic picks up its own upcasters.
func (c *UpcasterChain) Apply(topic string, state map[string]any) (string, map[string]any, error) {
	if c == nil || len(c.upcasters) == 0 {
		return topic, state, nil
	}
	version := schemaVersionOf(state)
	for {
		applied := false
		for _, up := range c.upcasters {
			if up.Topic != topic || up.FromVersion != version {
				continue
			}
			next, nextTopic, err := up.Upcast(state, topic)
			if err != nil {
				return "", nil, &domain.IntegrityError{Op: "upcast " + topic, Err: err}
			}
			version++
			next[VersionKey] = int64(version)
			state, topic = next, nextTopic
			applied = true
			break
		}
		if !applied {
			return topic, state, nil
		}
	}
}

// schemaVersionOf reads the reserved version key, defaulting to 1 for
// records written before versioning.
func schemaVersionOf(state map[string]any) int {
	switch v := state[VersionKey].(type) {
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 1
	}
}

// Package notificationlog slices the global event stream into bounded,
// linked sections for pull-based consumers. Sections are computed from the
// recorder on every call; nothing is cached.
package notificationlog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Unholster/eventsourcing/pkg/store"
)

// DefaultSectionSize bounds a section when no option overrides it.
const DefaultSectionSize = 10

// Section is one bounded window of the notification stream.
type Section struct {
	// ID is "first,last" over the ids actually returned, empty when the
	// section has no items.
	ID string

	// Items are the notifications in ascending id order.
	Items []*store.Notification

	// NextID addresses the following section. It is empty when this
	// section is not full, i.e. the end of the stream was reached.
	NextID string
}

// Log reads sections from a recorder's global stream. Ids are strictly
// increasing but not contiguous: each section fetches ids at or after its
// start, and the next section begins after the last observed id, so gaps
// from aborted transactions neither hide later content nor cause it to be
// delivered twice.
type Log struct {
	recorder    store.Recorder
	sectionSize int
}

// Option configures a Log.
type Option func(*Log)

// WithSectionSize caps section length. Requests for more are clamped.
func WithSectionSize(size int) Option {
	return func(l *Log) {
		l.sectionSize = size
	}
}

// New creates a notification log over a recorder.
func New(recorder store.Recorder, opts ...Option) *Log {
	l := &Log{recorder: recorder, sectionSize: DefaultSectionSize}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Section reads the window addressed by sectionID ("start,stop", both
// inclusive, start <= stop). Windows wider than the section size are
// clamped.
func (l *Log) Section(sectionID string) (*Section, error) {
	start, stop, err := parseSectionID(sectionID)
	if err != nil {
		return nil, err
	}

	limit := int(stop - start + 1)
	if limit > l.sectionSize {
		limit = l.sectionSize
	}

	items, err := l.recorder.SelectNotifications(start, limit)
	if err != nil {
		return nil, err
	}

	section := &Section{Items: items}
	if len(items) > 0 {
		section.ID = formatSectionID(items[0].ID, items[len(items)-1].ID)
	}
	if len(items) == limit {
		// Advance over the last observed id. Gaps at the window start do
		// not stall iteration (the fetch is id >= start, not a bounded
		// window), content past the boundary is not delivered twice, and a
		// clamped request does not skip the clamped-off remainder.
		last := items[len(items)-1].ID
		section.NextID = formatSectionID(last+1, last+uint64(limit))
	}
	return section, nil
}

func parseSectionID(sectionID string) (start, stop uint64, err error) {
	first, second, found := strings.Cut(sectionID, ",")
	if !found {
		return 0, 0, fmt.Errorf("invalid section id %q: expected \"start,stop\"", sectionID)
	}
	start, err = strconv.ParseUint(first, 10, 64)
	if err != nil || start == 0 {
		return 0, 0, fmt.Errorf("invalid section id %q: bad start", sectionID)
	}
	stop, err = strconv.ParseUint(second, 10, 64)
	if err != nil || stop < start {
		return 0, 0, fmt.Errorf("invalid section id %q: bad stop", sectionID)
	}
	return start, stop, nil
}

func formatSectionID(first, last uint64) string {
	return fmt.Sprintf("%d,%d", first, last)
}

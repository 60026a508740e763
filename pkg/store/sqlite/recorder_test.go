package sqlite_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/Unholster/eventsourcing/pkg/domain"
	"github.com/Unholster/eventsourcing/pkg/store"
	"github.com/Unholster/eventsourcing/pkg/store/sqlite"
)

func newRecorder(t *testing.T) *sqlite.Recorder {
	t.Helper()
	rec, err := sqlite.NewRecorder(sqlite.WithMemoryDatabase())
	if err != nil {
		t.Fatalf("failed to create recorder: %v", err)
	}
	t.Cleanup(func() { rec.Close() })
	return rec
}

func stored(id uuid.UUID, version int64, topic string, state []byte) *store.StoredEvent {
	return &store.StoredEvent{
		OriginatorID:      id,
		OriginatorVersion: version,
		Topic:             topic,
		State:             state,
	}
}

func TestRecorder(t *testing.T) {
	rec := newRecorder(t)

	t.Run("InsertAndSelect", func(t *testing.T) {
		id := uuid.New()
		ids, err := rec.InsertEvents([]*store.StoredEvent{
			stored(id, 1, "test.Created", []byte("one")),
			stored(id, 2, "test.Updated", []byte("two")),
		})
		if err != nil {
			t.Fatalf("failed to insert events: %v", err)
		}
		if len(ids) != 2 || ids[1] != ids[0]+1 {
			t.Fatalf("expected contiguous ids, got %v", ids)
		}

		events, err := rec.SelectEvents(id, store.EventQuery{})
		if err != nil {
			t.Fatalf("failed to select events: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(events))
		}
		if events[0].Topic != "test.Created" || string(events[0].State) != "one" {
			t.Errorf("unexpected first event: %+v", events[0])
		}
		if events[0].OriginatorID != id {
			t.Errorf("expected originator %s, got %s", id, events[0].OriginatorID)
		}
	})

	t.Run("VersionedRangeRead", func(t *testing.T) {
		id := uuid.New()
		_, err := rec.InsertEvents([]*store.StoredEvent{
			stored(id, 1, "t", []byte("1")),
			stored(id, 2, "t", []byte("2")),
			stored(id, 3, "t", []byte("3")),
			stored(id, 4, "t", []byte("4")),
		})
		if err != nil {
			t.Fatalf("failed to insert events: %v", err)
		}

		events, err := rec.SelectEvents(id, store.EventQuery{Gt: 1, Lte: 3})
		if err != nil {
			t.Fatalf("failed to select range: %v", err)
		}
		if len(events) != 2 || events[0].OriginatorVersion != 2 || events[1].OriginatorVersion != 3 {
			t.Fatalf("unexpected range result: %+v", events)
		}

		events, err = rec.SelectEvents(id, store.EventQuery{Desc: true, Limit: 2})
		if err != nil {
			t.Fatalf("failed to select desc: %v", err)
		}
		if len(events) != 2 || events[0].OriginatorVersion != 4 || events[1].OriginatorVersion != 3 {
			t.Fatalf("unexpected desc result: %+v", events)
		}
	})

	t.Run("ConflictAbortsTransaction", func(t *testing.T) {
		id := uuid.New()
		if _, err := rec.InsertEvents([]*store.StoredEvent{stored(id, 1, "t", nil)}); err != nil {
			t.Fatalf("failed to insert first event: %v", err)
		}

		before, err := rec.MaxNotificationID()
		if err != nil {
			t.Fatalf("failed to read max id: %v", err)
		}

		other := uuid.New()
		_, err = rec.InsertEvents([]*store.StoredEvent{
			stored(other, 1, "t", nil),
			stored(id, 1, "t", nil),
		})
		if !errors.Is(err, domain.ErrRecordConflict) {
			t.Fatalf("expected record conflict, got %v", err)
		}
		var conflict *domain.RecordConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected RecordConflictError, got %T", err)
		}
		if conflict.OriginatorID != id || conflict.OriginatorVersion != 1 {
			t.Errorf("conflict names wrong record: %+v", conflict)
		}

		// The valid first row of the batch must have been rolled back.
		events, err := rec.SelectEvents(other, store.EventQuery{})
		if err != nil {
			t.Fatalf("failed to select events: %v", err)
		}
		if len(events) != 0 {
			t.Errorf("expected rollback, found %d events", len(events))
		}

		after, err := rec.MaxNotificationID()
		if err != nil {
			t.Fatalf("failed to read max id: %v", err)
		}
		if after != before {
			t.Errorf("expected max id unchanged at %d, got %d", before, after)
		}
	})

	t.Run("NotificationScan", func(t *testing.T) {
		empty := newRecorder(t)
		a, b := uuid.New(), uuid.New()

		first, err := empty.InsertEvents([]*store.StoredEvent{
			stored(a, 1, "t", []byte("a1")),
			stored(a, 2, "t", []byte("a2")),
		})
		if err != nil {
			t.Fatalf("failed to insert: %v", err)
		}
		second, err := empty.InsertEvents([]*store.StoredEvent{stored(b, 1, "t", []byte("b1"))})
		if err != nil {
			t.Fatalf("failed to insert: %v", err)
		}
		if second[0] <= first[1] {
			t.Fatalf("notification ids must be strictly increasing: %v then %v", first, second)
		}

		ns, err := empty.SelectNotifications(1, 10)
		if err != nil {
			t.Fatalf("failed to scan notifications: %v", err)
		}
		if len(ns) != 3 {
			t.Fatalf("expected 3 notifications, got %d", len(ns))
		}
		for i := 1; i < len(ns); i++ {
			if ns[i].ID <= ns[i-1].ID {
				t.Errorf("notifications out of order: %d then %d", ns[i-1].ID, ns[i].ID)
			}
		}

		max, err := empty.MaxNotificationID()
		if err != nil {
			t.Fatalf("failed to read max id: %v", err)
		}
		if max != ns[2].ID {
			t.Errorf("expected max %d, got %d", ns[2].ID, max)
		}
	})
}

func TestSnapshotRecorder(t *testing.T) {
	rec := newRecorder(t)
	snaps := sqlite.NewSnapshotRecorder(rec.DB())
	id := uuid.New()

	if err := snaps.InsertSnapshot(&store.Snapshot{
		OriginatorID: id, OriginatorVersion: 3, Topic: "agg", State: []byte("v3"),
	}); err != nil {
		t.Fatalf("failed to insert snapshot: %v", err)
	}

	err := snaps.InsertSnapshot(&store.Snapshot{
		OriginatorID: id, OriginatorVersion: 3, Topic: "agg", State: []byte("again"),
	})
	if !errors.Is(err, domain.ErrRecordConflict) {
		t.Fatalf("expected record conflict on duplicate key, got %v", err)
	}

	if err := snaps.InsertSnapshot(&store.Snapshot{
		OriginatorID: id, OriginatorVersion: 7, Topic: "agg", State: []byte("v7"),
	}); err != nil {
		t.Fatalf("failed to insert snapshot: %v", err)
	}

	got, err := snaps.SelectSnapshots(id, store.EventQuery{Lte: 6, Desc: true, Limit: 1})
	if err != nil {
		t.Fatalf("failed to select snapshots: %v", err)
	}
	if len(got) != 1 || got[0].OriginatorVersion != 3 {
		t.Fatalf("expected snapshot v3, got %+v", got)
	}
}

func TestCheckpointStore(t *testing.T) {
	rec := newRecorder(t)
	cs := sqlite.NewCheckpointStore(rec.DB())

	cp, err := cs.Load("reader")
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if cp != nil {
		t.Fatalf("expected nil checkpoint, got %+v", cp)
	}

	if err := cs.Save(&store.FollowerCheckpoint{FollowerName: "reader", Position: 12}); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	if err := cs.Save(&store.FollowerCheckpoint{FollowerName: "reader", Position: 20}); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}

	cp, err = cs.Load("reader")
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if cp == nil || cp.Position != 20 {
		t.Fatalf("expected position 20, got %+v", cp)
	}

	if err := cs.Delete("reader"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	cp, err = cs.Load("reader")
	if err != nil {
		t.Fatalf("failed to load after delete: %v", err)
	}
	if cp != nil {
		t.Fatalf("expected nil after delete, got %+v", cp)
	}
}

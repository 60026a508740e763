package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Unholster/eventsourcing/pkg/domain"
)

type counter struct {
	domain.Base
	Total int64
}

func (c *counter) Topic() string { return "test.Counter" }

func TestBaseTriggerAndCollect(t *testing.T) {
	id := uuid.New()
	c := &counter{Base: domain.NewBase(id)}

	ev1 := c.Trigger("test.Counter.Created", map[string]any{})
	ev2 := c.Trigger("test.Counter.Incremented", map[string]any{"by": int64(2)})

	assert.Equal(t, id, c.ID())
	assert.Equal(t, int64(2), c.Version())
	assert.Equal(t, int64(1), ev1.OriginatorVersion)
	assert.Equal(t, int64(2), ev2.OriginatorVersion)
	assert.False(t, ev1.Timestamp.IsZero())

	pending := c.CollectPendingEvents()
	require.Len(t, pending, 2)
	assert.Same(t, ev1, pending[0])
	assert.Same(t, ev2, pending[1])

	// The buffer drains on collect.
	assert.Empty(t, c.CollectPendingEvents())
}

func TestRestoreBase(t *testing.T) {
	id := uuid.New()
	c := &counter{Base: domain.RestoreBase(id, 7)}
	assert.Equal(t, id, c.ID())
	assert.Equal(t, int64(7), c.Version())

	ev := c.Trigger("test.Counter.Incremented", map[string]any{"by": int64(1)})
	assert.Equal(t, int64(8), ev.OriginatorVersion)
}

func TestRegistry(t *testing.T) {
	reg := domain.NewRegistry()
	reg.RegisterEvent("test.Counter.Incremented", domain.EventType{
		SchemaVersion: 2,
		Reduce: func(agg domain.Aggregate, ev *domain.Event) (domain.Aggregate, error) {
			c := agg.(*counter)
			c.Advance(ev)
			c.Total += ev.State["by"].(int64)
			return c, nil
		},
	})

	t.Run("schema versions", func(t *testing.T) {
		assert.Equal(t, 2, reg.SchemaVersion("test.Counter.Incremented"))
		assert.Equal(t, 1, reg.SchemaVersion("never.registered"))
	})

	t.Run("reduce dispatches", func(t *testing.T) {
		c := &counter{Base: domain.NewBase(uuid.New())}
		agg, err := reg.Reduce(c, &domain.Event{
			OriginatorID:      c.ID(),
			OriginatorVersion: 1,
			Topic:             "test.Counter.Incremented",
			State:             map[string]any{"by": int64(5)},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(5), agg.(*counter).Total)
		assert.Equal(t, int64(1), agg.Version())
	})

	t.Run("unknown topic", func(t *testing.T) {
		_, err := reg.Reduce(nil, &domain.Event{Topic: "never.registered"})
		assert.ErrorIs(t, err, domain.ErrTranscoding)
	})

	t.Run("unknown aggregate", func(t *testing.T) {
		_, err := reg.FromSnapshot("never.registered", uuid.New(), 1, nil)
		assert.ErrorIs(t, err, domain.ErrTranscoding)
	})
}

func TestErrorKinds(t *testing.T) {
	conflict := &domain.RecordConflictError{OriginatorID: uuid.New(), OriginatorVersion: 3}
	assert.ErrorIs(t, conflict, domain.ErrRecordConflict)
	assert.Contains(t, conflict.Error(), "version 3")

	assert.ErrorIs(t, &domain.TranscodingError{Tag: "x"}, domain.ErrTranscoding)
	assert.ErrorIs(t, &domain.IntegrityError{Op: "x"}, domain.ErrIntegrity)
	assert.ErrorIs(t, &domain.PersistenceError{Op: "x"}, domain.ErrPersistence)
}

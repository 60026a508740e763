package propagation_test

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Unholster/eventsourcing/pkg/notificationlog"
	"github.com/Unholster/eventsourcing/pkg/propagation"
	"github.com/Unholster/eventsourcing/pkg/store"
	"github.com/Unholster/eventsourcing/pkg/store/memory"
)

type capturePublisher struct {
	ids []uint64
}

func (p *capturePublisher) Publish(n *store.Notification) error {
	p.ids = append(p.ids, n.ID)
	return nil
}

type failingPublisher struct {
	capturePublisher
	failAfter int
}

func (p *failingPublisher) Publish(n *store.Notification) error {
	if len(p.ids) >= p.failAfter {
		return fmt.Errorf("broker unavailable")
	}
	return p.capturePublisher.Publish(n)
}

func insert(t *testing.T, rec *memory.Recorder, id uuid.UUID, version int64) {
	t.Helper()
	_, err := rec.InsertEvents([]*store.StoredEvent{{
		OriginatorID:      id,
		OriginatorVersion: version,
		Topic:             "t",
		State:             []byte("x"),
	}})
	require.NoError(t, err)
}

func TestFollowerDrainsLogInOrder(t *testing.T) {
	rec := memory.NewRecorder()
	id := uuid.New()
	for v := int64(1); v <= 7; v++ {
		insert(t, rec, id, v)
	}

	pub := &capturePublisher{}
	follower := propagation.NewFollower(
		"test",
		notificationlog.New(rec, notificationlog.WithSectionSize(3)),
		memory.NewCheckpointStore(),
		pub,
		propagation.WithSectionSize(3),
	)

	n, err := follower.Poll()
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6, 7}, pub.ids)

	// Nothing new: a second poll publishes nothing.
	n, err = follower.Poll()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, pub.ids, 7)
}

func TestFollowerTraversesGapsAndResumes(t *testing.T) {
	rec := memory.NewRecorder()
	checkpoints := memory.NewCheckpointStore()
	log := notificationlog.New(rec, notificationlog.WithSectionSize(2))

	a := uuid.New()
	insert(t, rec, a, 1)
	rec.ConsumeNotificationIDs(4)
	insert(t, rec, a, 2)
	insert(t, rec, a, 3)

	pub := &capturePublisher{}
	follower := propagation.NewFollower("test", log, checkpoints, pub,
		propagation.WithSectionSize(2))

	n, err := follower.Poll()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []uint64{1, 6, 7}, pub.ids)

	// New notifications after a gap are picked up from the checkpoint.
	rec.ConsumeNotificationIDs(2)
	insert(t, rec, a, 4)

	n, err = follower.Poll()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []uint64{1, 6, 7, 10}, pub.ids)
}

func TestFollowerCheckpointsProgressOnFailure(t *testing.T) {
	rec := memory.NewRecorder()
	checkpoints := memory.NewCheckpointStore()
	log := notificationlog.New(rec, notificationlog.WithSectionSize(2))

	id := uuid.New()
	for v := int64(1); v <= 5; v++ {
		insert(t, rec, id, v)
	}

	pub := &failingPublisher{failAfter: 2}
	follower := propagation.NewFollower("test", log, checkpoints, pub,
		propagation.WithSectionSize(2))

	_, err := follower.Poll()
	require.Error(t, err)
	assert.Equal(t, []uint64{1, 2}, pub.ids)

	// The first full section was checkpointed before the failure, so the
	// retry resumes without re-publishing it.
	pub.failAfter = 100
	n, err := follower.Poll()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, pub.ids)
}

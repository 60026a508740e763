package propagation_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Unholster/eventsourcing/pkg/notificationlog"
	"github.com/Unholster/eventsourcing/pkg/propagation"
	"github.com/Unholster/eventsourcing/pkg/store"
	"github.com/Unholster/eventsourcing/pkg/store/memory"
)

func TestJetStreamPublisher(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded NATS test in short mode")
	}

	srv, err := propagation.StartEmbeddedServer()
	require.NoError(t, err)
	defer srv.Shutdown()

	cfg := propagation.DefaultJetStreamConfig()
	cfg.URL = srv.URL()
	pub, err := propagation.NewJetStreamPublisher(cfg)
	require.NoError(t, err)
	defer pub.Close()

	rec := memory.NewRecorder()
	id := uuid.New()
	for v := int64(1); v <= 3; v++ {
		_, err := rec.InsertEvents([]*store.StoredEvent{{
			OriginatorID:      id,
			OriginatorVersion: v,
			Topic:             "worlds.World.SomethingHappened",
			State:             []byte("payload"),
		}})
		require.NoError(t, err)
	}

	follower := propagation.NewFollower(
		"nats-test",
		notificationlog.New(rec),
		memory.NewCheckpointStore(),
		pub,
	)
	n, err := follower.Poll()
	require.NoError(t, err)
	require.Equal(t, 3, n)

	nc, err := nats.Connect(srv.URL())
	require.NoError(t, err)
	defer nc.Close()
	js, err := nc.JetStream()
	require.NoError(t, err)

	sub, err := js.SubscribeSync(cfg.SubjectPrefix+".>", nats.DeliverAll())
	require.NoError(t, err)

	for want := uint64(1); want <= 3; want++ {
		msg, err := sub.NextMsg(5 * time.Second)
		require.NoError(t, err)
		assert.Equal(t, cfg.SubjectPrefix+".worlds.World.SomethingHappened", msg.Subject)

		var envelope struct {
			ID                uint64 `json:"id"`
			OriginatorID      string `json:"originator_id"`
			OriginatorVersion int64  `json:"originator_version"`
			Topic             string `json:"topic"`
			State             []byte `json:"state"`
		}
		require.NoError(t, json.Unmarshal(msg.Data, &envelope))
		assert.Equal(t, want, envelope.ID)
		assert.Equal(t, id.String(), envelope.OriginatorID)
		assert.Equal(t, []byte("payload"), envelope.State)
	}
}

package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Unholster/eventsourcing/examples/worlds"
	"github.com/Unholster/eventsourcing/pkg/domain"
	"github.com/Unholster/eventsourcing/pkg/eventstore"
	"github.com/Unholster/eventsourcing/pkg/mapper"
	"github.com/Unholster/eventsourcing/pkg/observability"
	"github.com/Unholster/eventsourcing/pkg/store"
	"github.com/Unholster/eventsourcing/pkg/store/memory"
	"github.com/Unholster/eventsourcing/pkg/transcoder"
)

func TestInstrumentedStoreCounts(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	telemetry, err := observability.Init(context.Background(), observability.Config{
		ServiceName:  "eventsourcing-test",
		MetricReader: reader,
	})
	require.NoError(t, err)
	defer telemetry.Shutdown(context.Background())

	reg := domain.NewRegistry()
	worlds.Register(reg)
	inner := eventstore.New(mapper.New(transcoder.New(), reg), memory.NewRecorder())

	instrumented, err := observability.Instrument(inner, nil, telemetry.MeterProvider)
	require.NoError(t, err)

	w := worlds.Create()
	w.MakeItSo("dinosaurs")
	ids, err := instrumented.Put(w.CollectPendingEvents())
	require.NoError(t, err)
	require.Len(t, ids, 2)

	// A conflicting put increments the conflict counter.
	stale := worlds.Create()
	staleEvents := stale.CollectPendingEvents()
	staleEvents[0].OriginatorID = w.ID()
	staleEvents[0].OriginatorVersion = 1
	_, err = instrumented.Put(staleEvents)
	require.Error(t, err)

	events, err := instrumented.Get(w.ID(), store.EventQuery{}).Collect()
	require.NoError(t, err)
	assert.Len(t, events, 2)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				var total int64
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
				sums[m.Name] = total
			}
		}
	}

	assert.Equal(t, int64(2), sums["eventstore.puts"])
	assert.Equal(t, int64(2), sums["eventstore.events_stored"])
	assert.Equal(t, int64(1), sums["eventstore.conflicts"])
}

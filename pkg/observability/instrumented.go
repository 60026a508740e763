package observability

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Unholster/eventsourcing/pkg/domain"
	"github.com/Unholster/eventsourcing/pkg/eventstore"
	"github.com/Unholster/eventsourcing/pkg/store"
)

const instrumentationName = "github.com/Unholster/eventsourcing"

// InstrumentedStore wraps an event store with OpenTelemetry spans and
// counters. With no global providers configured every call degrades to a
// no-op.
type InstrumentedStore struct {
	inner *eventstore.Store

	tracer    trace.Tracer
	puts      metric.Int64Counter
	stored    metric.Int64Counter
	conflicts metric.Int64Counter
}

// Instrument wraps a store using the given providers; nil providers fall
// back to the otel globals.
func Instrument(inner *eventstore.Store, tp trace.TracerProvider, mp metric.MeterProvider) (*InstrumentedStore, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	puts, err := meter.Int64Counter("eventstore.puts",
		metric.WithDescription("Number of put calls"))
	if err != nil {
		return nil, err
	}
	stored, err := meter.Int64Counter("eventstore.events_stored",
		metric.WithDescription("Number of events stored"))
	if err != nil {
		return nil, err
	}
	conflicts, err := meter.Int64Counter("eventstore.conflicts",
		metric.WithDescription("Number of record conflicts"))
	if err != nil {
		return nil, err
	}

	return &InstrumentedStore{
		inner:     inner,
		tracer:    tp.Tracer(instrumentationName),
		puts:      puts,
		stored:    stored,
		conflicts: conflicts,
	}, nil
}

// Put delegates to the wrapped store, recording a span and counters.
func (s *InstrumentedStore) Put(events []*domain.Event) ([]uint64, error) {
	ctx, span := s.tracer.Start(context.Background(), "eventstore.put",
		trace.WithAttributes(attribute.Int("events.count", len(events))))
	defer span.End()

	ids, err := s.inner.Put(events)
	s.puts.Add(ctx, 1)
	if err != nil {
		if errors.Is(err, domain.ErrRecordConflict) {
			s.conflicts.Add(ctx, 1)
		}
		span.RecordError(err)
		return nil, err
	}
	s.stored.Add(ctx, int64(len(ids)))
	return ids, nil
}

// Get delegates to the wrapped store.
func (s *InstrumentedStore) Get(originatorID uuid.UUID, q store.EventQuery) *eventstore.Iterator {
	_, span := s.tracer.Start(context.Background(), "eventstore.get",
		trace.WithAttributes(attribute.String("originator.id", originatorID.String())))
	defer span.End()
	return s.inner.Get(originatorID, q)
}

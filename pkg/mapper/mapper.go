// Package mapper translates between domain events and stored-event
// records. The byte pipeline is fixed: transcode, then compress, then
// encrypt; reads run the inverse, decrypting before decompressing so a
// bounded ciphertext cannot smuggle an unbounded decompression.
package mapper

import (
	"time"

	"github.com/Unholster/eventsourcing/pkg/domain"
	"github.com/Unholster/eventsourcing/pkg/store"
	"github.com/Unholster/eventsourcing/pkg/transcoder"
)

// Reserved state-document keys.
const (
	// VersionKey carries the record's schema version; absent means 1.
	VersionKey = "_version_"

	// timestampKey carries the event's creation time inside the payload;
	// the stored-event record itself has no timestamp column.
	timestampKey = "_timestamp_"
)

// ByteCodec is one optional byte-to-byte step of the pipeline (a
// compressor or a cipher). Absent steps are skipped, so the pipeline has
// one shape regardless of configuration.
type ByteCodec interface {
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

// Mapper composes the transcoder with the optional compressor and cipher,
// and applies the upcaster chain to records before they are addressed by
// topic. Construct once and share; a Mapper is read-only after New.
type Mapper struct {
	transcoder *transcoder.Transcoder
	registry   *domain.Registry
	compressor ByteCodec
	cipher     ByteCodec
	upcasters  *UpcasterChain
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithCompressor enables the compression step.
func WithCompressor(c ByteCodec) Option {
	return func(m *Mapper) {
		m.compressor = c
	}
}

// WithCipher enables the encryption step.
func WithCipher(c ByteCodec) Option {
	return func(m *Mapper) {
		m.cipher = c
	}
}

// WithUpcasterChain installs the schema-migration chain applied on read.
func WithUpcasterChain(chain *UpcasterChain) Option {
	return func(m *Mapper) {
		m.upcasters = chain
	}
}

// New creates a Mapper over a transcoder and the topic registry.
func New(t *transcoder.Transcoder, registry *domain.Registry, opts ...Option) *Mapper {
	m := &Mapper{transcoder: t, registry: registry}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ToStoredEvent encodes a domain event into its wire record. New records
// always carry the registry's current schema version for their topic.
func (m *Mapper) ToStoredEvent(ev *domain.Event) (*store.StoredEvent, error) {
	doc := make(map[string]any, len(ev.State)+2)
	for k, v := range ev.State {
		doc[k] = v
	}
	doc[VersionKey] = int64(m.registry.SchemaVersion(ev.Topic))
	doc[timestampKey] = ev.Timestamp

	state, err := m.encodeDoc(doc)
	if err != nil {
		return nil, err
	}
	return &store.StoredEvent{
		OriginatorID:      ev.OriginatorID,
		OriginatorVersion: ev.OriginatorVersion,
		Topic:             ev.Topic,
		State:             state,
	}, nil
}

// ToDomainEvent decodes a wire record, migrating it through the upcaster
// chain first. A post-upcast topic with no registered event fails the
// read.
func (m *Mapper) ToDomainEvent(rec *store.StoredEvent) (*domain.Event, error) {
	doc, err := m.decodeDoc(rec.State)
	if err != nil {
		return nil, err
	}
	topic, doc, err := m.upcasters.Apply(rec.Topic, doc)
	if err != nil {
		return nil, err
	}
	if !m.registry.HasEvent(topic) {
		return nil, &domain.TranscodingError{Tag: topic, Reason: "no event registered for topic"}
	}

	var ts time.Time
	if v, ok := doc[timestampKey].(time.Time); ok {
		ts = v
	}
	delete(doc, timestampKey)
	delete(doc, VersionKey)

	return &domain.Event{
		OriginatorID:      rec.OriginatorID,
		OriginatorVersion: rec.OriginatorVersion,
		Timestamp:         ts,
		Topic:             topic,
		State:             doc,
	}, nil
}

// ToSnapshot encodes an aggregate's state as a snapshot record.
func (m *Mapper) ToSnapshot(agg domain.Aggregate) (*store.Snapshot, error) {
	snapshotter, ok := agg.(domain.Snapshotter)
	if !ok {
		return nil, &domain.TranscodingError{Tag: agg.Topic(), Reason: "aggregate does not support snapshots"}
	}
	src := snapshotter.SnapshotState()
	doc := make(map[string]any, len(src)+1)
	for k, v := range src {
		doc[k] = v
	}
	doc[VersionKey] = int64(1)

	state, err := m.encodeDoc(doc)
	if err != nil {
		return nil, err
	}
	return &store.Snapshot{
		OriginatorID:      agg.ID(),
		OriginatorVersion: agg.Version(),
		Topic:             agg.Topic(),
		State:             state,
	}, nil
}

// FromSnapshot decodes a snapshot and reconstructs the aggregate via the
// registry.
func (m *Mapper) FromSnapshot(snap *store.Snapshot) (domain.Aggregate, error) {
	doc, err := m.decodeDoc(snap.State)
	if err != nil {
		return nil, err
	}
	topic, doc, err := m.upcasters.Apply(snap.Topic, doc)
	if err != nil {
		return nil, err
	}
	delete(doc, VersionKey)
	return m.registry.FromSnapshot(topic, snap.OriginatorID, snap.OriginatorVersion, doc)
}

func (m *Mapper) encodeDoc(doc map[string]any) ([]byte, error) {
	data, err := m.transcoder.Encode(doc)
	if err != nil {
		return nil, err
	}
	if m.compressor != nil {
		if data, err = m.compressor.Encode(data); err != nil {
			return nil, err
		}
	}
	if m.cipher != nil {
		if data, err = m.cipher.Encode(data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func (m *Mapper) decodeDoc(data []byte) (map[string]any, error) {
	var err error
	if m.cipher != nil {
		if data, err = m.cipher.Decode(data); err != nil {
			return nil, err
		}
	}
	if m.compressor != nil {
		if data, err = m.compressor.Decode(data); err != nil {
			return nil, err
		}
	}
	value, err := m.transcoder.Decode(data)
	if err != nil {
		return nil, err
	}
	doc, ok := value.(map[string]any)
	if !ok {
		return nil, &domain.TranscodingError{Tag: "state", Reason: "decoded payload is not a mapping"}
	}
	return doc, nil
}

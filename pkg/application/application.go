// Package application wires the persistence engine together from the
// environment contract: infrastructure factory, optional snapshotting,
// optional cipher and compressor.
package application

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Unholster/eventsourcing/pkg/cipher"
	"github.com/Unholster/eventsourcing/pkg/compressor"
	"github.com/Unholster/eventsourcing/pkg/domain"
	"github.com/Unholster/eventsourcing/pkg/eventstore"
	"github.com/Unholster/eventsourcing/pkg/mapper"
	"github.com/Unholster/eventsourcing/pkg/notificationlog"
	"github.com/Unholster/eventsourcing/pkg/repository"
	"github.com/Unholster/eventsourcing/pkg/store"
	"github.com/Unholster/eventsourcing/pkg/transcoder"
)

// Application owns the constructed engine: mapper, event store,
// repository, notification log and the optional snapshot store. All
// members are read-only after New and safe to share across goroutines.
type Application struct {
	Events     *eventstore.Store
	Repository *repository.Repository
	Log        *notificationlog.Log

	registry     *domain.Registry
	mapper       *mapper.Mapper
	infra        *Infrastructure
	snapshots    store.SnapshotRecorder
	snapshotting bool
	strategy     SnapshotStrategy
	logger       *slog.Logger
}

type config struct {
	logger       *slog.Logger
	transcodings []transcoder.Transcoding
	upcasters    []mapper.Upcaster
	strategy     SnapshotStrategy
	sectionSize  int
	strict       bool
}

// Option configures an Application.
type Option func(*config)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithTranscodings registers additional custom-type transcodings.
func WithTranscodings(tcs ...transcoder.Transcoding) Option {
	return func(c *config) {
		c.transcodings = append(c.transcodings, tcs...)
	}
}

// WithUpcasters installs schema-migration upcasters, applied on read in
// the given order.
func WithUpcasters(ups ...mapper.Upcaster) Option {
	return func(c *config) {
		c.upcasters = append(c.upcasters, ups...)
	}
}

// WithSnapshotStrategy enables automatic snapshotting after Save.
// Snapshotting must also be enabled via IS_SNAPSHOTTING_ENABLED.
func WithSnapshotStrategy(s SnapshotStrategy) Option {
	return func(c *config) {
		c.strategy = s
	}
}

// WithSectionSize overrides the notification log's section cap.
func WithSectionSize(size int) Option {
	return func(c *config) {
		c.sectionSize = size
	}
}

// WithStrictVersion makes repository reads fail instead of clamping when
// asked for a version beyond the highest stored one.
func WithStrictVersion() Option {
	return func(c *config) {
		c.strict = true
	}
}

// New constructs an application from the environment contract.
func New(registry *domain.Registry, env Environment, opts ...Option) (*Application, error) {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	factory, err := FactoryFromEnv(env)
	if err != nil {
		return nil, err
	}
	infra, err := factory.Build()
	if err != nil {
		return nil, err
	}

	t := transcoder.New()
	for _, tc := range cfg.transcodings {
		if err := t.Register(tc); err != nil {
			infra.Close()
			return nil, err
		}
	}

	mapperOpts, err := pipelineFromEnv(env)
	if err != nil {
		infra.Close()
		return nil, err
	}
	if len(cfg.upcasters) > 0 {
		mapperOpts = append(mapperOpts, mapper.WithUpcasterChain(mapper.NewUpcasterChain(cfg.upcasters...)))
	}
	m := mapper.New(t, registry, mapperOpts...)

	snapshotting, err := ParseTruthy(env.Get(EnvIsSnapshottingEnabled, "no"))
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("%s: %w", EnvIsSnapshottingEnabled, err)
	}

	events := eventstore.New(m, infra.Recorder, eventstore.WithLogger(cfg.logger))

	repoOpts := []repository.Option{}
	if snapshotting {
		repoOpts = append(repoOpts, repository.WithSnapshots(infra.Snapshots))
	}
	if cfg.strict {
		repoOpts = append(repoOpts, repository.WithStrictVersion())
	}

	logOpts := []notificationlog.Option{}
	if cfg.sectionSize > 0 {
		logOpts = append(logOpts, notificationlog.WithSectionSize(cfg.sectionSize))
	}

	app := &Application{
		Events:       events,
		Repository:   repository.New(events, m, registry, repoOpts...),
		Log:          notificationlog.New(infra.Recorder, logOpts...),
		registry:     registry,
		mapper:       m,
		infra:        infra,
		snapshotting: snapshotting,
		strategy:     cfg.strategy,
		logger:       cfg.logger,
	}
	if snapshotting {
		app.snapshots = infra.Snapshots
	}
	return app, nil
}

// pipelineFromEnv builds the optional compressor and cipher steps.
func pipelineFromEnv(env Environment) ([]mapper.Option, error) {
	var opts []mapper.Option

	if topic := env.Get(EnvCompressorTopic, ""); topic != "" {
		switch topic {
		case compressor.TopicZstd:
			z, err := compressor.NewZstd()
			if err != nil {
				return nil, fmt.Errorf("failed to build zstd compressor: %w", err)
			}
			opts = append(opts, mapper.WithCompressor(z))
		case compressor.TopicGzip:
			opts = append(opts, mapper.WithCompressor(compressor.NewGzip()))
		default:
			return nil, fmt.Errorf("unknown compressor topic %q", topic)
		}
	}

	if topic := env.Get(EnvCipherTopic, ""); topic != "" {
		key, err := base64.StdEncoding.DecodeString(env.Get(EnvCipherKey, ""))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvCipherKey, err)
		}
		var aead *cipher.AEAD
		switch topic {
		case cipher.TopicAESGCM:
			aead, err = cipher.NewAESGCM(key)
		case cipher.TopicChaCha20:
			aead, err = cipher.NewChaCha20Poly1305(key)
		default:
			return nil, fmt.Errorf("unknown cipher topic %q", topic)
		}
		if err != nil {
			return nil, err
		}
		opts = append(opts, mapper.WithCipher(aead))
	}

	return opts, nil
}

// Save collects the pending events of all given aggregates, in argument
// order, and stores them in one atomic put. A multi-aggregate save either
// commits entirely or fails entirely.
func (a *Application) Save(aggregates ...domain.Aggregate) ([]uint64, error) {
	var events []*domain.Event
	for _, agg := range aggregates {
		events = append(events, agg.CollectPendingEvents()...)
	}
	ids, err := a.Events.Put(events)
	if err != nil {
		return nil, err
	}

	if a.snapshotting && a.strategy != nil {
		for _, agg := range aggregates {
			if err := a.maybeSnapshot(agg); err != nil {
				a.logger.Error("automatic snapshot failed",
					"originator_id", agg.ID(), "error", err)
			}
		}
	}
	return ids, nil
}

func (a *Application) maybeSnapshot(agg domain.Aggregate) error {
	since := agg.Version()
	snaps, err := a.snapshots.SelectSnapshots(agg.ID(), store.EventQuery{Desc: true, Limit: 1})
	if err != nil {
		return err
	}
	if len(snaps) > 0 {
		since = agg.Version() - snaps[0].OriginatorVersion
	}
	if !a.strategy.ShouldTakeSnapshot(agg.Version(), since) {
		return nil
	}
	return a.snapshotAggregate(agg)
}

// TakeSnapshot captures the aggregate's current state (or the state at the
// requested version) in the snapshot store.
func (a *Application) TakeSnapshot(aggregateID uuid.UUID, opts ...repository.GetOption) error {
	if !a.snapshotting {
		return fmt.Errorf("snapshotting is not enabled; set %s", EnvIsSnapshottingEnabled)
	}
	agg, err := a.Repository.Get(aggregateID, opts...)
	if err != nil {
		return err
	}
	return a.snapshotAggregate(agg)
}

func (a *Application) snapshotAggregate(agg domain.Aggregate) error {
	snap, err := a.mapper.ToSnapshot(agg)
	if err != nil {
		return err
	}
	err = a.snapshots.InsertSnapshot(snap)
	if errors.Is(err, domain.ErrRecordConflict) {
		// The state at a version is immutable, so an existing snapshot for
		// the same key is equivalent.
		return nil
	}
	return err
}

// Infrastructure exposes the built recorders, e.g. to hand the checkpoint
// store to a follower.
func (a *Application) Infrastructure() *Infrastructure {
	return a.infra
}

// Close releases the infrastructure's resources.
func (a *Application) Close() error {
	return a.infra.Close()
}

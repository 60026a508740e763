package application

import (
	"fmt"

	"github.com/Unholster/eventsourcing/pkg/store"
	"github.com/Unholster/eventsourcing/pkg/store/memory"
	"github.com/Unholster/eventsourcing/pkg/store/sqlite"
)

// Factory topic strings accepted by INFRASTRUCTURE_FACTORY. The short and
// fully-qualified forms are interchangeable.
const (
	FactoryMemory          = "memory"
	FactoryMemoryQualified = "eventsourcing.store.memory"
	FactorySQLite          = "sqlite"
	FactorySQLiteQualified = "eventsourcing.store.sqlite"
)

// Infrastructure bundles the recorders one factory variant constructs.
type Infrastructure struct {
	Recorder    store.Recorder
	Snapshots   store.SnapshotRecorder
	Checkpoints store.CheckpointStore

	closer func() error
}

// Close releases backing resources, if any.
func (i *Infrastructure) Close() error {
	if i.closer == nil {
		return nil
	}
	return i.closer()
}

// InfrastructureFactory is the tagged variant behind the
// INFRASTRUCTURE_FACTORY topic string.
type InfrastructureFactory struct {
	kind         string
	sqliteDSN    string
	sqliteCreate bool
}

// FactoryFromEnv resolves the factory variant from the environment.
// Store-specific inputs (SQLITE_DBNAME, CREATE_TABLE) are captured here
// and applied at Build time.
func FactoryFromEnv(env Environment) (*InfrastructureFactory, error) {
	topic := env.Get(EnvInfrastructureFactory, FactoryMemory)
	f := &InfrastructureFactory{}

	switch topic {
	case FactoryMemory, FactoryMemoryQualified:
		f.kind = FactoryMemory
	case FactorySQLite, FactorySQLiteQualified:
		f.kind = FactorySQLite
		f.sqliteDSN = env.Get(EnvSQLiteDBName, ":memory:")
		f.sqliteCreate = true
		if raw, ok := env[EnvCreateTable]; ok {
			create, err := ParseTruthy(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", EnvCreateTable, err)
			}
			f.sqliteCreate = create
		}
	default:
		return nil, fmt.Errorf("unknown infrastructure factory topic %q", topic)
	}
	return f, nil
}

// Build constructs the factory's recorders.
func (f *InfrastructureFactory) Build() (*Infrastructure, error) {
	switch f.kind {
	case FactoryMemory:
		return &Infrastructure{
			Recorder:    memory.NewRecorder(),
			Snapshots:   memory.NewSnapshotRecorder(),
			Checkpoints: memory.NewCheckpointStore(),
		}, nil
	case FactorySQLite:
		rec, err := sqlite.NewRecorder(
			sqlite.WithDSN(f.sqliteDSN),
			sqlite.WithCreateTables(f.sqliteCreate),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to build sqlite recorder: %w", err)
		}
		return &Infrastructure{
			Recorder:    rec,
			Snapshots:   sqlite.NewSnapshotRecorder(rec.DB()),
			Checkpoints: sqlite.NewCheckpointStore(rec.DB()),
			closer:      rec.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown infrastructure factory kind %q", f.kind)
	}
}

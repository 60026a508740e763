// Package sqlite implements the recorder contracts on SQLite via the pure
// Go modernc.org driver. It provides ACID multi-row appends with the
// per-originator version constraint and globally ordered notification ids.
package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Unholster/eventsourcing/pkg/domain"
	"github.com/Unholster/eventsourcing/pkg/store"
	"github.com/Unholster/eventsourcing/pkg/store/sqlite/migrate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Recorder is a SQLite-backed store.Recorder.
//
// A single writer mutex plus WAL journaling serializes inserts, so
// notification ids are assigned in commit order and a concurrent scan can
// never observe id N while an earlier id is uncommitted. Rolled-back
// transactions burn AUTOINCREMENT values, leaving permanent gaps readers
// must traverse.
type Recorder struct {
	db *sql.DB
	mu sync.RWMutex
}

type recorderConfig struct {
	dsn          string
	maxOpenConns int
	maxIdleConns int
	walMode      bool
	createTables bool
}

func defaultRecorderConfig() recorderConfig {
	return recorderConfig{
		dsn:          "eventstore.db",
		maxOpenConns: 25,
		maxIdleConns: 5,
		walMode:      true,
		createTables: true,
	}
}

// Option configures a Recorder.
type Option func(*recorderConfig)

// WithDSN sets the data source name (file path or ":memory:").
func WithDSN(dsn string) Option {
	return func(c *recorderConfig) {
		c.dsn = dsn
	}
}

// WithMemoryDatabase selects an in-memory database.
func WithMemoryDatabase() Option {
	return func(c *recorderConfig) {
		c.dsn = ":memory:"
	}
}

// WithWALMode enables write-ahead logging. Recommended for file-backed
// databases; it has no effect on :memory: ones.
func WithWALMode(enabled bool) Option {
	return func(c *recorderConfig) {
		c.walMode = enabled
	}
}

// WithCreateTables controls whether pending migrations run on startup.
func WithCreateTables(enabled bool) Option {
	return func(c *recorderConfig) {
		c.createTables = enabled
	}
}

// WithMaxOpenConns sets the connection pool's upper bound.
func WithMaxOpenConns(n int) Option {
	return func(c *recorderConfig) {
		c.maxOpenConns = n
	}
}

// WithMaxIdleConns sets the number of idle pooled connections.
func WithMaxIdleConns(n int) Option {
	return func(c *recorderConfig) {
		c.maxIdleConns = n
	}
}

// NewRecorder opens (and optionally migrates) a SQLite event store.
//
// Example:
//
//	rec, err := sqlite.NewRecorder(sqlite.WithDSN(":memory:"))
func NewRecorder(opts ...Option) (*Recorder, error) {
	config := defaultRecorderConfig()
	for _, opt := range opts {
		opt(&config)
	}

	db, err := sql.Open("sqlite", config.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each connection to :memory: gets its own isolated database, so the
	// pool must be pinned to one connection.
	if config.dsn == ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(config.maxOpenConns)
		db.SetMaxIdleConns(config.maxIdleConns)
	}
	db.SetConnMaxLifetime(time.Hour)

	r := &Recorder{db: db}

	if config.walMode && config.dsn != ":memory:" {
		if _, err := db.Exec(`
			PRAGMA journal_mode = WAL;
			PRAGMA synchronous = NORMAL;
		`); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set WAL mode: %w", err)
		}
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if config.createTables {
		if err := runMigrations(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return r, nil
}

func runMigrations(db *sql.DB) error {
	m := migrate.New(db, "schema_migrations")
	if err := m.LoadFromFS(migrationsFS, "migrations"); err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	return m.Up()
}

// InsertEvents atomically inserts all records in one transaction and
// returns their notification ids in input order.
func (r *Recorder) InsertEvents(records []*store.StoredEvent) ([]uint64, error) {
	if len(records) == 0 {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return nil, &domain.PersistenceError{Op: "begin insert", Err: err}
	}
	defer tx.Rollback()

	ids := make([]uint64, len(records))
	for i, rec := range records {
		res, err := tx.Exec(`
			INSERT INTO stored_events (originator_id, originator_version, topic, state)
			VALUES (?, ?, ?, ?)`,
			rec.OriginatorID.String(), rec.OriginatorVersion, rec.Topic, rec.State,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, &domain.RecordConflictError{
					OriginatorID:      rec.OriginatorID,
					OriginatorVersion: rec.OriginatorVersion,
				}
			}
			return nil, &domain.PersistenceError{Op: "insert event", Err: err}
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, &domain.PersistenceError{Op: "read notification id", Err: err}
		}
		ids[i] = uint64(id)
	}

	if err := tx.Commit(); err != nil {
		return nil, &domain.PersistenceError{Op: "commit insert", Err: err}
	}
	return ids, nil
}

// SelectEvents performs a versioned range read for one originator.
func (r *Recorder) SelectEvents(originatorID uuid.UUID, q store.EventQuery) ([]*store.StoredEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := strings.Builder{}
	query.WriteString(`
		SELECT originator_version, topic, state
		FROM stored_events
		WHERE originator_id = ?`)
	args := []any{originatorID.String()}
	if q.Gt != 0 {
		query.WriteString(" AND originator_version > ?")
		args = append(args, q.Gt)
	}
	if q.Lte != 0 {
		query.WriteString(" AND originator_version <= ?")
		args = append(args, q.Lte)
	}
	if q.Desc {
		query.WriteString(" ORDER BY originator_version DESC")
	} else {
		query.WriteString(" ORDER BY originator_version ASC")
	}
	if q.Limit > 0 {
		query.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	rows, err := r.db.Query(query.String(), args...)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "select events", Err: err}
	}
	defer rows.Close()

	var out []*store.StoredEvent
	for rows.Next() {
		rec := store.StoredEvent{OriginatorID: originatorID}
		if err := rows.Scan(&rec.OriginatorVersion, &rec.Topic, &rec.State); err != nil {
			return nil, &domain.PersistenceError{Op: "scan event", Err: err}
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "select events", Err: err}
	}
	return out, nil
}

// SelectNotifications scans the global stream ascending from id >= start.
func (r *Recorder) SelectNotifications(start uint64, limit int) ([]*store.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.Query(`
		SELECT notification_id, originator_id, originator_version, topic, state
		FROM stored_events
		WHERE notification_id >= ?
		ORDER BY notification_id ASC
		LIMIT ?`,
		int64(start), limit,
	)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "select notifications", Err: err}
	}
	defer rows.Close()

	var out []*store.Notification
	for rows.Next() {
		var n store.Notification
		var rawID string
		if err := rows.Scan(&n.ID, &rawID, &n.OriginatorVersion, &n.Topic, &n.State); err != nil {
			return nil, &domain.PersistenceError{Op: "scan notification", Err: err}
		}
		n.OriginatorID, err = uuid.Parse(rawID)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "parse originator id", Err: err}
		}
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "select notifications", Err: err}
	}
	return out, nil
}

// MaxNotificationID returns the highest assigned notification id.
func (r *Recorder) MaxNotificationID() (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var max uint64
	err := r.db.QueryRow(`SELECT COALESCE(MAX(notification_id), 0) FROM stored_events`).Scan(&max)
	if err != nil {
		return 0, &domain.PersistenceError{Op: "max notification id", Err: err}
	}
	return max, nil
}

// DB exposes the underlying pool so the snapshot and checkpoint stores can
// share one database.
func (r *Recorder) DB() *sql.DB {
	return r.db
}

// Close closes the underlying database.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.db.Close()
}

// isUniqueViolation distinguishes the retriable version-constraint
// collision from arbitrary integrity failures.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

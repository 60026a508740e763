package sqlite

import (
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/Unholster/eventsourcing/pkg/domain"
	"github.com/Unholster/eventsourcing/pkg/store"
)

// SnapshotRecorder is a SQLite-backed store.SnapshotRecorder. Snapshots
// share the recorder's database but live in their own table with no
// notification column.
type SnapshotRecorder struct {
	db *sql.DB
}

// NewSnapshotRecorder creates a snapshot recorder over an existing
// database, typically the recorder's own (pass recorder.DB()).
func NewSnapshotRecorder(db *sql.DB) *SnapshotRecorder {
	return &SnapshotRecorder{db: db}
}

// InsertSnapshot stores one snapshot. A duplicate key raises a record
// conflict the caller may treat as benign.
func (s *SnapshotRecorder) InsertSnapshot(snapshot *store.Snapshot) error {
	_, err := s.db.Exec(`
		INSERT INTO snapshots (originator_id, originator_version, topic, state)
		VALUES (?, ?, ?, ?)`,
		snapshot.OriginatorID.String(), snapshot.OriginatorVersion, snapshot.Topic, snapshot.State,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.RecordConflictError{
				OriginatorID:      snapshot.OriginatorID,
				OriginatorVersion: snapshot.OriginatorVersion,
			}
		}
		return &domain.PersistenceError{Op: "insert snapshot", Err: err}
	}
	return nil
}

// SelectSnapshots performs a versioned range read over an originator's
// snapshots.
func (s *SnapshotRecorder) SelectSnapshots(originatorID uuid.UUID, q store.EventQuery) ([]*store.Snapshot, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT originator_version, topic, state
		FROM snapshots
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

	rows, err := s.db.Query(query.String(), args...)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "select snapshots", Err: err}
	}
	defer rows.Close()

	var out []*store.Snapshot
	for rows.Next() {
		snap := store.Snapshot{OriginatorID: originatorID}
		if err := rows.Scan(&snap.OriginatorVersion, &snap.Topic, &snap.State); err != nil {
			return nil, &domain.PersistenceError{Op: "scan snapshot", Err: err}
		}
		out = append(out, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "select snapshots", Err: err}
	}
	return out, nil
}

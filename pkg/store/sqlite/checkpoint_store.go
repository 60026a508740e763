package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"github.com/Unholster/eventsourcing/pkg/domain"
	"github.com/Unholster/eventsourcing/pkg/store"
)

// CheckpointStore is a SQLite-backed store.CheckpointStore. It can share
// the recorder's database or use a separate one for independently scaled
// followers.
type CheckpointStore struct {
	db *sql.DB
}

// NewCheckpointStore creates a checkpoint store over an existing database.
func NewCheckpointStore(db *sql.DB) *CheckpointStore {
	return &CheckpointStore{db: db}
}

// Save upserts a checkpoint.
func (s *CheckpointStore) Save(checkpoint *store.FollowerCheckpoint) error {
	_, err := s.db.Exec(`
		INSERT INTO follower_checkpoints (follower_name, position, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (follower_name) DO UPDATE SET
			position = excluded.position,
			updated_at = excluded.updated_at`,
		checkpoint.FollowerName, int64(checkpoint.Position), checkpoint.UpdatedAt.Unix(),
	)
	if err != nil {
		return &domain.PersistenceError{Op: "save checkpoint", Err: err}
	}
	return nil
}

// Load returns a follower's checkpoint, nil when it has never saved one.
func (s *CheckpointStore) Load(followerName string) (*store.FollowerCheckpoint, error) {
	var position int64
	var updatedAt int64
	err := s.db.QueryRow(`
		SELECT position, updated_at
		FROM follower_checkpoints
		WHERE follower_name = ?`,
		followerName,
	).Scan(&position, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load checkpoint", Err: err}
	}
	return &store.FollowerCheckpoint{
		FollowerName: followerName,
		Position:     uint64(position),
		UpdatedAt:    time.Unix(updatedAt, 0).UTC(),
	}, nil
}

// Delete removes a follower's checkpoint.
func (s *CheckpointStore) Delete(followerName string) error {
	_, err := s.db.Exec(`DELETE FROM follower_checkpoints WHERE follower_name = ?`, followerName)
	if err != nil {
		return &domain.PersistenceError{Op: "delete checkpoint", Err: err}
	}
	return nil
}

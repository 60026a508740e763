package store

import "time"

// FollowerCheckpoint tracks how far a notification-log follower has read
// the global stream.
type FollowerCheckpoint struct {
	FollowerName string
	Position     uint64
	UpdatedAt    time.Time
}

// CheckpointStore persists follower checkpoints so a follower resumes
// where it left off across restarts.
type CheckpointStore interface {
	// Save upserts a checkpoint.
	Save(checkpoint *FollowerCheckpoint) error

	// Load returns the checkpoint for a follower, or nil when the
	// follower has never saved one.
	Load(followerName string) (*FollowerCheckpoint, error)

	// Delete removes a checkpoint (for re-reading from the start).
	Delete(followerName string) error
}

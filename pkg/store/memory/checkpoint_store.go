package memory

import (
	"sync"

	"github.com/Unholster/eventsourcing/pkg/store"
)

// CheckpointStore is an in-memory store.CheckpointStore.
type CheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[string]store.FollowerCheckpoint
}

// NewCheckpointStore creates an empty in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{checkpoints: make(map[string]store.FollowerCheckpoint)}
}

// Save upserts a checkpoint.
func (s *CheckpointStore) Save(checkpoint *store.FollowerCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[checkpoint.FollowerName] = *checkpoint
	return nil
}

// Load returns a follower's checkpoint, nil when it has never saved one.
func (s *CheckpointStore) Load(followerName string) (*store.FollowerCheckpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[followerName]
	if !ok {
		return nil, nil
	}
	return &cp, nil
}

// Delete removes a follower's checkpoint.
func (s *CheckpointStore) Delete(followerName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, followerName)
	return nil
}

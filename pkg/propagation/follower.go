// Package propagation follows the notification log and re-publishes
// committed notifications to downstream transports. The follower is pull
// based: it walks sections in id order, traversing gaps, and checkpoints
// its position so it resumes across restarts.
package propagation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Unholster/eventsourcing/pkg/notificationlog"
	"github.com/Unholster/eventsourcing/pkg/store"
)

// Publisher delivers one notification to a downstream transport.
type Publisher interface {
	Publish(n *store.Notification) error
}

// Follower drains the notification log through a Publisher. Delivery is
// at-least-once: the checkpoint is saved after each section, so a crash
// between publish and save replays that section's tail.
type Follower struct {
	name        string
	log         *notificationlog.Log
	checkpoints store.CheckpointStore
	publisher   Publisher
	sectionSize int
	logger      *slog.Logger
}

// FollowerOption configures a Follower.
type FollowerOption func(*Follower)

// WithSectionSize sets how many notifications one poll step requests.
func WithSectionSize(size int) FollowerOption {
	return func(f *Follower) {
		f.sectionSize = size
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) FollowerOption {
	return func(f *Follower) {
		f.logger = logger
	}
}

// NewFollower creates a named follower. The name keys its checkpoint.
func NewFollower(
	name string,
	log *notificationlog.Log,
	checkpoints store.CheckpointStore,
	publisher Publisher,
	opts ...FollowerOption,
) *Follower {
	f := &Follower{
		name:        name,
		log:         log,
		checkpoints: checkpoints,
		publisher:   publisher,
		sectionSize: notificationlog.DefaultSectionSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Poll publishes everything committed since the checkpoint and returns the
// number of notifications delivered.
func (f *Follower) Poll() (int, error) {
	var position uint64
	cp, err := f.checkpoints.Load(f.name)
	if err != nil {
		return 0, err
	}
	if cp != nil {
		position = cp.Position
	}

	published := 0
	sectionID := fmt.Sprintf("%d,%d", position+1, position+uint64(f.sectionSize))
	for {
		section, err := f.log.Section(sectionID)
		if err != nil {
			return published, err
		}
		for _, n := range section.Items {
			if err := f.publisher.Publish(n); err != nil {
				return published, fmt.Errorf("failed to publish notification %d: %w", n.ID, err)
			}
			position = n.ID
			published++
		}
		if len(section.Items) > 0 {
			if err := f.checkpoints.Save(&store.FollowerCheckpoint{
				FollowerName: f.name,
				Position:     position,
				UpdatedAt:    time.Now().UTC(),
			}); err != nil {
				return published, err
			}
		}
		if section.NextID == "" {
			return published, nil
		}
		sectionID = section.NextID
	}
}

// Run polls on the given interval until the context is cancelled. Poll
// errors are logged and the loop continues; the store owns durability, the
// follower only forwards.
func (f *Follower) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := f.Poll()
			if err != nil {
				f.logger.Error("poll failed", "follower", f.name, "error", err)
				continue
			}
			if n > 0 {
				f.logger.Debug("notifications forwarded", "follower", f.name, "count", n)
			}
		}
	}
}

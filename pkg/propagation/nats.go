package propagation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Unholster/eventsourcing/pkg/store"
)

// JetStreamConfig holds configuration for the NATS publisher.
type JetStreamConfig struct {
	// URL is the NATS server URL.
	URL string

	// StreamName is the JetStream stream name notifications land in.
	StreamName string

	// SubjectPrefix prefixes the per-topic subjects
	// ("<prefix>.<event topic>").
	SubjectPrefix string

	// MaxAge is how long the stream retains notifications.
	MaxAge time.Duration

	// MaxBytes caps the stream size.
	MaxBytes int64
}

// DefaultJetStreamConfig returns sensible defaults.
func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:           nats.DefaultURL,
		StreamName:    "NOTIFICATIONS",
		SubjectPrefix: "notifications",
		MaxAge:        7 * 24 * time.Hour,
		MaxBytes:      1024 * 1024 * 1024, // 1 GB
	}
}

// JetStreamPublisher publishes notifications to NATS JetStream for
// durable at-least-once delivery to downstream consumers.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	prefix string
}

// NewJetStreamPublisher connects to NATS and ensures the stream exists.
func NewJetStreamPublisher(config JetStreamConfig) (*JetStreamPublisher, error) {
	nc, err := nats.Connect(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	p := &JetStreamPublisher{nc: nc, js: js, prefix: config.SubjectPrefix}
	if err := p.ensureStream(config); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}
	return p, nil
}

func (p *JetStreamPublisher) ensureStream(config JetStreamConfig) error {
	_, err := p.js.StreamInfo(config.StreamName)
	if err == nil {
		return nil
	}
	if err != nats.ErrStreamNotFound {
		return err
	}
	_, err = p.js.AddStream(&nats.StreamConfig{
		Name:     config.StreamName,
		Subjects: []string{config.SubjectPrefix + ".>"},
		MaxAge:   config.MaxAge,
		MaxBytes: config.MaxBytes,
	})
	return err
}

// wireNotification is the JSON envelope consumers receive. State stays in
// its stored form; consumers run their own mapper to decode it.
type wireNotification struct {
	ID                uint64 `json:"id"`
	OriginatorID      string `json:"originator_id"`
	OriginatorVersion int64  `json:"originator_version"`
	Topic             string `json:"topic"`
	State             []byte `json:"state"`
}

// Publish sends one notification to "<prefix>.<topic>".
func (p *JetStreamPublisher) Publish(n *store.Notification) error {
	payload, err := json.Marshal(wireNotification{
		ID:                n.ID,
		OriginatorID:      n.OriginatorID.String(),
		OriginatorVersion: n.OriginatorVersion,
		Topic:             n.Topic,
		State:             n.State,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification %d: %w", n.ID, err)
	}
	subject := fmt.Sprintf("%s.%s", p.prefix, n.Topic)
	if _, err := p.js.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Close closes the NATS connection without draining it.
func (p *JetStreamPublisher) Close() {
	p.nc.Close()
}

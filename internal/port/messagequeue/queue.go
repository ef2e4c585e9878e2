// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subject constants for PolicyForge events.
const (
	SubjectExperienceCollected = "experiences.collected"
	SubjectTrainingCompleted   = "training.completed"
	SubjectCheckpointSaved     = "checkpoints.saved"
)

// Noop is a Queue that discards everything. Used when no broker is
// configured; the pipeline is fully functional without one.
type Noop struct{}

func (Noop) Publish(context.Context, string, []byte) error { return nil }

func (Noop) Subscribe(context.Context, string, Handler) (func(), error) {
	return func() {}, nil
}

func (Noop) Drain() error      { return nil }
func (Noop) Close() error      { return nil }
func (Noop) IsConnected() bool { return false }

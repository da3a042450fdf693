// Package pubsub defines the assessment broadcast boundary.
package pubsub

import "context"

// Broadcaster publishes detector output to downstream subscribers.
// Publish failures are non-fatal for the caller: subscribers catch up on
// the next assessment.
type Broadcaster interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Health(ctx context.Context) error
	Close() error
}

// Noop is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(ctx context.Context, subject string, data interface{}) error { return nil }
func (Noop) Health(ctx context.Context) error                                    { return nil }
func (Noop) Close() error                                                        { return nil }

var _ Broadcaster = Noop{}

package ingestion

import (
	"context"

	"cascade-lab/internal/domain"
)

// EventSource provides normalized liquidation events from an external feed.
// Venue-specific parsing and deduplication happen upstream of this boundary.
type EventSource interface {
	// Subscribe returns a channel of liquidation events. The channel is
	// closed when the context is cancelled or the source shuts down.
	Subscribe(ctx context.Context) (<-chan *domain.LiquidationEvent, error)

	// Close releases the source's connections.
	Close() error
}

package storage

import (
	"context"

	"cascade-lab/internal/domain"
)

// LiquidationStore provides access to recorded liquidation events. Records
// are keyed by (exchange, symbol, timestamp, usd_value); ingestion is
// at-least-once, so duplicate delivery of the same event must be rejected
// rather than double-counted.
type LiquidationStore interface {
	// Insert adds a single liquidation. Returns ErrDuplicateKey if the
	// event was already recorded.
	Insert(ctx context.Context, e *domain.LiquidationEvent) error

	// InsertBulk adds multiple liquidations atomically. Fails the entire
	// batch on any duplicate, including intra-batch duplicates.
	InsertBulk(ctx context.Context, events []*domain.LiquidationEvent) error

	// GetBySymbol retrieves all liquidations for a symbol, ordered by
	// timestamp ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.LiquidationEvent, error)

	// GetByTimeRange retrieves liquidations for a symbol within
	// [start, end] epoch seconds (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, symbol string, start, end float64) ([]*domain.LiquidationEvent, error)

	// Symbols lists all symbols with at least one recorded liquidation.
	Symbols(ctx context.Context) ([]string, error)
}

// CascadeEventStore provides access to the curated catalog of historical
// cascades used as backtest ground truth.
type CascadeEventStore interface {
	// Insert adds a cascade. Returns ErrDuplicateKey if a cascade with the
	// same name exists.
	Insert(ctx context.Context, c *domain.CascadeEvent) error

	// GetByName retrieves a cascade by its unique name. Returns ErrNotFound
	// if it does not exist.
	GetByName(ctx context.Context, name string) (*domain.CascadeEvent, error)

	// GetAll retrieves every cascade, ordered by start timestamp ASC.
	GetAll(ctx context.Context) ([]*domain.CascadeEvent, error)

	// GetOverlapping retrieves cascades whose [start, start+duration] span
	// intersects [start, end] epoch seconds, ordered by start ASC.
	GetOverlapping(ctx context.Context, start, end float64) ([]*domain.CascadeEvent, error)
}

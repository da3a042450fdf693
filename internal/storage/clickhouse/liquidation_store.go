package clickhouse

import (
	"context"
	"fmt"

	"cascade-lab/internal/domain"
	"cascade-lab/internal/storage"
)

// LiquidationStore implements storage.LiquidationStore using ClickHouse.
type LiquidationStore struct {
	conn *Conn
}

// NewLiquidationStore creates a new LiquidationStore.
func NewLiquidationStore(conn *Conn) *LiquidationStore {
	return &LiquidationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.LiquidationStore = (*LiquidationStore)(nil)

// Insert adds a single liquidation. Returns ErrDuplicateKey if the event was
// already recorded.
func (s *LiquidationStore) Insert(ctx context.Context, e *domain.LiquidationEvent) error {
	if e == nil || e.Symbol == "" {
		return storage.ErrInvalidInput
	}
	return s.InsertBulk(ctx, []*domain.LiquidationEvent{e})
}

// InsertBulk adds multiple liquidations. Fails the entire batch on any
// duplicate, including intra-batch duplicates. MergeTree does not enforce
// uniqueness at insert time, so duplicates are checked explicitly first.
func (s *LiquidationStore) InsertBulk(ctx context.Context, events []*domain.LiquidationEvent) error {
	if len(events) == 0 {
		return nil
	}

	type key struct {
		exchange  domain.Exchange
		symbol    string
		timestamp float64
		usdValue  float64
	}
	seen := make(map[key]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.Symbol == "" {
			return storage.ErrInvalidInput
		}
		k := key{e.Exchange, e.Symbol, e.Timestamp, e.USDValue}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, e := range events {
		exists, err := s.exists(ctx, e)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO liquidations (
			exchange, symbol, usd_value, event_time, side, quantity, price
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		err = batch.Append(
			string(e.Exchange), e.Symbol, e.USDValue, e.Timestamp,
			e.Side, e.Quantity, e.Price,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySymbol retrieves all liquidations for a symbol, ordered by timestamp ASC.
func (s *LiquidationStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.LiquidationEvent, error) {
	query := `
		SELECT exchange, symbol, usd_value, event_time, side, quantity, price
		FROM liquidations
		WHERE symbol = ?
		ORDER BY event_time ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query by symbol: %w", err)
	}
	defer rows.Close()

	return scanLiquidations(rows)
}

// GetByTimeRange retrieves liquidations for a symbol within [start, end]
// epoch seconds (inclusive), ordered by timestamp ASC.
func (s *LiquidationStore) GetByTimeRange(ctx context.Context, symbol string, start, end float64) ([]*domain.LiquidationEvent, error) {
	query := `
		SELECT exchange, symbol, usd_value, event_time, side, quantity, price
		FROM liquidations
		WHERE symbol = ? AND event_time >= ? AND event_time <= ?
		ORDER BY event_time ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanLiquidations(rows)
}

// Symbols lists all symbols with at least one recorded liquidation.
func (s *LiquidationStore) Symbols(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT symbol FROM liquidations ORDER BY symbol ASC`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol row: %w", err)
		}
		symbols = append(symbols, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symbol rows: %w", err)
	}
	return symbols, nil
}

// exists checks whether an identical event is already recorded.
func (s *LiquidationStore) exists(ctx context.Context, e *domain.LiquidationEvent) (bool, error) {
	query := `
		SELECT count(*) FROM liquidations
		WHERE exchange = ? AND symbol = ? AND event_time = ? AND usd_value = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, string(e.Exchange), e.Symbol, e.Timestamp, e.USDValue).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// chRows is the subset of driver.Rows the scanners need.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanLiquidations scans multiple rows.
func scanLiquidations(rows chRows) ([]*domain.LiquidationEvent, error) {
	var events []*domain.LiquidationEvent

	for rows.Next() {
		var e domain.LiquidationEvent
		var exchange string

		err := rows.Scan(&exchange, &e.Symbol, &e.USDValue, &e.Timestamp, &e.Side, &e.Quantity, &e.Price)
		if err != nil {
			return nil, fmt.Errorf("scan liquidation row: %w", err)
		}

		e.Exchange = domain.Exchange(exchange)
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate liquidation rows: %w", err)
	}

	return events, nil
}

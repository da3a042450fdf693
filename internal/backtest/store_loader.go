package backtest

import (
	"context"
	"fmt"

	"cascade-lab/internal/domain"
	"cascade-lab/internal/storage"
)

// StoreLoader reads canonical rows from a liquidation store (the timeseries
// database in production, the in-memory store in tests).
type StoreLoader struct {
	store  storage.LiquidationStore
	symbol string
}

// NewStoreLoader creates a loader for one symbol backed by a store.
func NewStoreLoader(store storage.LiquidationStore, symbol string) *StoreLoader {
	return &StoreLoader{store: store, symbol: symbol}
}

var _ Loader = (*StoreLoader)(nil)

// Name identifies the loader in logs and reports.
func (l *StoreLoader) Name() string {
	return "store:" + l.symbol
}

// Load queries the store for the range and converts events to canonical
// rows sorted by timestamp ASC.
func (l *StoreLoader) Load(ctx context.Context, r Range) ([]domain.LiquidationRow, error) {
	start, end := r.Start, r.End
	if start == 0 && end == 0 {
		end = maxEpochSeconds
	}

	events, err := l.store.GetByTimeRange(ctx, l.symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", ErrSourceUnreachable, l.symbol, err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: symbol %s", ErrNoData, l.symbol)
	}

	rows := make([]domain.LiquidationRow, 0, len(events))
	for _, e := range events {
		rows = append(rows, domain.LiquidationRow{
			Timestamp: e.Timestamp,
			Exchange:  e.Exchange,
			Symbol:    e.Symbol,
			Side:      e.Side,
			Quantity:  e.Quantity,
			USDValue:  e.USDValue,
			Price:     e.Price,
		})
	}
	sortRows(rows)
	return rows, nil
}

// maxEpochSeconds is an effectively unbounded range end.
const maxEpochSeconds = 1e13

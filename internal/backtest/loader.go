// Package backtest replays recorded or synthetic liquidation data through
// the velocity engine and risk calculator to measure detection quality and
// simulate a trading strategy driven by the risk signal.
package backtest

import (
	"context"
	"errors"
	"sort"

	"cascade-lab/internal/domain"
)

// Loader errors. Loaders fail fast and loudly; falling back to synthetic
// data is the harness's decision, never the loader's.
var (
	// ErrSourceUnreachable is returned when the backing source cannot be
	// opened or queried.
	ErrSourceUnreachable = errors.New("data source unreachable")

	// ErrMissingColumn is returned when a tabular source lacks a required
	// canonical column.
	ErrMissingColumn = errors.New("missing required column")

	// ErrBadTimestamp is returned when a row's timestamp cannot be parsed
	// or normalized to epoch seconds.
	ErrBadTimestamp = errors.New("unparseable timestamp")

	// ErrNoData is returned when the source is reachable but yields zero
	// rows for the requested range.
	ErrNoData = errors.New("no rows in requested range")
)

// Range is the closed time interval a loader should cover, in epoch seconds.
type Range struct {
	Start float64
	End   float64
}

// Contains reports whether ts falls within the range. A zero Range is
// unbounded.
func (r Range) Contains(ts float64) bool {
	if r.Start == 0 && r.End == 0 {
		return true
	}
	return ts >= r.Start && ts <= r.End
}

// Loader yields canonical liquidation rows for a time range, sorted
// ascending by timestamp. Implementations cover the timeseries store, flat
// files and the synthetic generator; the harness selects one by
// configuration.
type Loader interface {
	// Load returns rows within r, sorted by timestamp ASC. Returns ErrNoData
	// when the source is reachable but empty for the range.
	Load(ctx context.Context, r Range) ([]domain.LiquidationRow, error)

	// Name identifies the loader in logs and reports.
	Name() string
}

// sortRows orders rows ascending by timestamp, breaking ties by exchange so
// replay is deterministic.
func sortRows(rows []domain.LiquidationRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Timestamp != rows[j].Timestamp {
			return rows[i].Timestamp < rows[j].Timestamp
		}
		return rows[i].Exchange < rows[j].Exchange
	})
}

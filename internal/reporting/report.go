// Package reporting renders backtest results into structured reports with a
// qualitative verdict and targeted tuning recommendations.
package reporting

import (
	"time"

	"cascade-lab/internal/backtest"
)

// Verdict classifies a backtest run.
type Verdict string

// Verdicts, best to worst.
const (
	VerdictProductionReady Verdict = "production-ready"
	VerdictNeedsTuning     Verdict = "needs-tuning"
	VerdictPoor            Verdict = "poor"
)

// Report is the rendered summary of one backtest run.
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`

	Symbol       string  `json:"symbol"`
	Source       string  `json:"source"`
	UsedFallback bool    `json:"used_fallback"`
	RangeStart   float64 `json:"range_start"`
	RangeEnd     float64 `json:"range_end"`
	RowCount     int     `json:"row_count"`

	Detection  backtest.DetectionAnalysis `json:"detection"`
	Simulation backtest.TradingSimulation `json:"simulation"`

	EngineEventsProcessed uint64  `json:"engine_events_processed"`
	AvgCalculationTimeMs  float64 `json:"avg_calculation_time_ms"`

	Verdict         Verdict  `json:"verdict"`
	Recommendations []string `json:"recommendations"`
}

package reporting

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"cascade-lab/internal/backtest"
)

// Verdict thresholds. A run is production-ready when both detection quality
// and risk-adjusted returns clear their bars; it is poor when detection
// quality is near-useless regardless of returns.
const (
	productionF1     = 0.60
	productionSharpe = 1.0
	poorF1           = 0.20
)

// Recommendation triggers.
const (
	lowPrecision    = 0.50
	lowRecall       = 0.50
	highAvgLagSec   = 60.0
	highDrawdownPct = 20.0
	lowWinRate      = 0.50
)

// Generator produces reports from backtest results.
type Generator struct {
	now func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator() *Generator {
	return &Generator{
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the full report for one backtest result.
func (g *Generator) Generate(result *backtest.Result) *Report {
	return &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: g.now(),

		Symbol:       result.Symbol,
		Source:       result.Source,
		UsedFallback: result.UsedFallback,
		RangeStart:   result.RangeStart,
		RangeEnd:     result.RangeEnd,
		RowCount:     result.RowCount,

		Detection:  result.Detection,
		Simulation: result.Simulation,

		EngineEventsProcessed: result.EngineStats.EventsProcessed,
		AvgCalculationTimeMs:  result.EngineStats.AvgCalculationTimeMs,

		Verdict:         verdict(result),
		Recommendations: recommendations(result),
	}
}

func verdict(result *backtest.Result) Verdict {
	f1 := result.Detection.F1
	sharpe := result.Simulation.SharpeRatio

	switch {
	case f1 >= productionF1 && sharpe >= productionSharpe:
		return VerdictProductionReady
	case f1 >= poorF1:
		return VerdictNeedsTuning
	default:
		return VerdictPoor
	}
}

// recommendations derives targeted tuning advice from the weak spots of a
// run. An empty slice means nothing stood out.
func recommendations(result *backtest.Result) []string {
	var recs []string
	det := result.Detection
	sim := result.Simulation

	if det.Precision < lowPrecision {
		recs = append(recs, fmt.Sprintf(
			"precision %.2f below %.2f: tighten risk thresholds to cut false positives", det.Precision, lowPrecision))
	}
	if det.Recall < lowRecall {
		recs = append(recs, fmt.Sprintf(
			"recall %.2f below %.2f: loosen risk thresholds to catch more cascade windows", det.Recall, lowRecall))
	}
	if det.Matrix.TruePositives > 0 && det.AvgLagSeconds > highAvgLagSec {
		recs = append(recs, fmt.Sprintf(
			"average detection lag %.1fs above %.0fs: optimize the velocity engine or shorten windows", det.AvgLagSeconds, highAvgLagSec))
	}
	if sim.MaxDrawdownPct > highDrawdownPct {
		recs = append(recs, fmt.Sprintf(
			"max drawdown %.1f%% above %.0f%%: add risk controls such as stop-losses or smaller sizing", sim.MaxDrawdownPct, highDrawdownPct))
	}
	if sim.TradeCount > 0 && sim.WinRate < lowWinRate {
		recs = append(recs, fmt.Sprintf(
			"win rate %.2f below %.2f: improve entry timing, e.g. require higher confidence", sim.WinRate, lowWinRate))
	}
	return recs
}

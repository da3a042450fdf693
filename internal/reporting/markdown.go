package reporting

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// RenderMarkdown renders the report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Cascade Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Run: %s | Generated: %s\n\n", r.RunID, r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Symbol: %s | Source: %s", r.Symbol, r.Source))
	if r.UsedFallback {
		sb.WriteString(" (fallback)")
	}
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("**Verdict: %s**\n\n", r.Verdict))

	// Run summary
	sb.WriteString("## Run Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Rows Replayed | %d |\n", r.RowCount))
	sb.WriteString(fmt.Sprintf("| Range Start | %.3f |\n", r.RangeStart))
	sb.WriteString(fmt.Sprintf("| Range End | %.3f |\n", r.RangeEnd))
	sb.WriteString(fmt.Sprintf("| Engine Events Processed | %d |\n", r.EngineEventsProcessed))
	sb.WriteString(fmt.Sprintf("| Avg Calculation Time (ms) | %.4f |\n", r.AvgCalculationTimeMs))
	sb.WriteString("\n")

	// Detection quality
	det := r.Detection
	sb.WriteString("## Detection Quality\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| True Positives | %d |\n", det.Matrix.TruePositives))
	sb.WriteString(fmt.Sprintf("| False Positives | %d |\n", det.Matrix.FalsePositives))
	sb.WriteString(fmt.Sprintf("| False Negatives | %d |\n", det.Matrix.FalseNegatives))
	sb.WriteString(fmt.Sprintf("| True Negatives | %d |\n", det.Matrix.TrueNegatives))
	sb.WriteString(fmt.Sprintf("| Precision | %.4f |\n", det.Precision))
	sb.WriteString(fmt.Sprintf("| Recall | %.4f |\n", det.Recall))
	sb.WriteString(fmt.Sprintf("| F1 | %.4f |\n", det.F1))
	if det.Matrix.TruePositives > 0 {
		sb.WriteString(fmt.Sprintf("| Detection Lag avg/min/max (s) | %.1f / %.1f / %.1f |\n",
			det.AvgLagSeconds, det.MinLagSeconds, det.MaxLagSeconds))
	}
	sb.WriteString("\n")

	// Trading simulation
	sim := r.Simulation
	sb.WriteString("## Trading Simulation\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Initial Capital | %.2f |\n", sim.InitialCapital))
	sb.WriteString(fmt.Sprintf("| Final Capital | %.2f |\n", sim.FinalCapital))
	sb.WriteString(fmt.Sprintf("| Total Return | %.2f%% |\n", sim.TotalReturnPct))
	sb.WriteString(fmt.Sprintf("| Trades | %d |\n", sim.TradeCount))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.4f |\n", sim.WinRate))
	sb.WriteString(fmt.Sprintf("| Profit Factor | %s |\n", formatProfitFactor(sim.ProfitFactor)))
	sb.WriteString(fmt.Sprintf("| Sharpe Ratio | %.4f |\n", sim.SharpeRatio))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %.2f%% |\n", sim.MaxDrawdownPct))
	sb.WriteString("\n")

	// Recommendations
	sb.WriteString("## Recommendations\n\n")
	if len(r.Recommendations) > 0 {
		for _, rec := range r.Recommendations {
			sb.WriteString(fmt.Sprintf("- %s\n", rec))
		}
	} else {
		sb.WriteString("No tuning recommendations.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func formatProfitFactor(pf float64) string {
	if math.IsInf(pf, 1) {
		return "inf (no losses)"
	}
	return fmt.Sprintf("%.4f", pf)
}

package backtest

import (
	"math"

	"cascade-lab/internal/domain"
	"cascade-lab/internal/risk"
	"cascade-lab/internal/velocity"
)

// detectionCorrelationWindow is the trailing window used for the
// cross-exchange correlation fed into each assessment during replay.
const detectionCorrelationWindow = 30.0

// ConfusionMatrix accumulates per-event detection outcomes against the
// curated cascade labels.
type ConfusionMatrix struct {
	TruePositives  int `json:"true_positives"`
	FalsePositives int `json:"false_positives"`
	FalseNegatives int `json:"false_negatives"`
	TrueNegatives  int `json:"true_negatives"`
}

// DetectionAnalysis is the detection-quality half of a backtest result.
type DetectionAnalysis struct {
	Matrix    ConfusionMatrix `json:"confusion_matrix"`
	Precision float64         `json:"precision"`
	Recall    float64         `json:"recall"`
	F1        float64         `json:"f1"`

	// Detection lag statistics over true positives, seconds since the
	// enclosing cascade's start. Zero-valued when there were none.
	AvgLagSeconds float64 `json:"avg_lag_seconds"`
	MinLagSeconds float64 `json:"min_lag_seconds"`
	MaxLagSeconds float64 `json:"max_lag_seconds"`

	EventsReplayed int `json:"events_replayed"`
}

// detector replays rows through the engine and calculator, comparing the
// alert signal (risk level at or above HIGH) against the cascade labels.
type detector struct {
	engine   *velocity.Engine
	calc     *risk.Calculator
	cascades []domain.CascadeEvent

	matrix   ConfusionMatrix
	lagSum   float64
	lagMin   float64
	lagMax   float64
	lagCount int
}

func newDetector(engine *velocity.Engine, calc *risk.Calculator, cascades []domain.CascadeEvent) *detector {
	return &detector{
		engine:   engine,
		calc:     calc,
		cascades: cascades,
		lagMin:   math.Inf(1),
		lagMax:   math.Inf(-1),
	}
}

// step feeds one row through the pipeline and returns the assessment so the
// trading simulator can share the same replay pass.
func (d *detector) step(row domain.LiquidationRow) *domain.RiskAssessment {
	now := row.Timestamp
	ev := row.Event()
	d.engine.AddEvent(ev.Symbol, ev.USDValue, ev.Exchange, now)

	snap := d.engine.Snapshot(ev.Symbol, now)
	corr := d.engine.Correlation(ev.Symbol, detectionCorrelationWindow, now)
	assessment := d.calc.Assess(snap, corr)

	signaled := assessment != nil && assessment.RiskLevel >= domain.RiskHigh
	cascade := d.enclosingCascade(now)

	switch {
	case signaled && cascade != nil:
		d.matrix.TruePositives++
		d.recordLag(now - cascade.Timestamp)
	case signaled && cascade == nil:
		d.matrix.FalsePositives++
	case !signaled && cascade != nil:
		d.matrix.FalseNegatives++
	default:
		d.matrix.TrueNegatives++
	}

	return assessment
}

func (d *detector) enclosingCascade(ts float64) *domain.CascadeEvent {
	for i := range d.cascades {
		if d.cascades[i].Contains(ts) {
			return &d.cascades[i]
		}
	}
	return nil
}

func (d *detector) recordLag(lag float64) {
	d.lagSum += lag
	d.lagCount++
	if lag < d.lagMin {
		d.lagMin = lag
	}
	if lag > d.lagMax {
		d.lagMax = lag
	}
}

// analysis finalizes the accumulated counts into the result shape. All
// ratios are zero-guarded.
func (d *detector) analysis(eventsReplayed int) DetectionAnalysis {
	m := d.matrix
	out := DetectionAnalysis{
		Matrix:         m,
		EventsReplayed: eventsReplayed,
	}

	if m.TruePositives+m.FalsePositives > 0 {
		out.Precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}
	if m.TruePositives+m.FalseNegatives > 0 {
		out.Recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}
	if out.Precision+out.Recall > 0 {
		out.F1 = 2 * out.Precision * out.Recall / (out.Precision + out.Recall)
	}

	if d.lagCount > 0 {
		out.AvgLagSeconds = d.lagSum / float64(d.lagCount)
		out.MinLagSeconds = d.lagMin
		out.MaxLagSeconds = d.lagMax
	}
	return out
}

package backtest

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"cascade-lab/internal/domain"
	"cascade-lab/internal/risk"
	"cascade-lab/internal/velocity"
)

// Harness defaults.
const (
	DefaultInitialCapital   = 100_000.0
	DefaultPositionFraction = 0.10
)

// Config describes one backtest run.
type Config struct {
	Symbol string
	Range  Range

	// Loader is the primary data source. Fallback, when set, is used only
	// after the primary fails, and the degradation is logged.
	Loader   Loader
	Fallback Loader

	// Cascades is the ground-truth label set. Defaults to the curated
	// historical catalog when empty.
	Cascades []domain.CascadeEvent

	InitialCapital   float64
	PositionFraction float64

	Logger logrus.FieldLogger
}

// Result is the structured output of one run, serializable for storage by a
// reporting collaborator.
type Result struct {
	Symbol       string  `json:"symbol"`
	Source       string  `json:"source"`
	UsedFallback bool    `json:"used_fallback"`
	RangeStart   float64 `json:"range_start"`
	RangeEnd     float64 `json:"range_end"`
	RowCount     int     `json:"row_count"`

	Detection  DetectionAnalysis `json:"detection"`
	Simulation TradingSimulation `json:"simulation"`

	EngineStats          velocity.Stats `json:"engine_stats"`
	AssessmentsPerformed uint64         `json:"assessments_performed"`
}

// Harness drives LOAD, DETECT and SIMULATE for one symbol. Replay is
// single-threaded; detection and simulation share one pass over the rows.
type Harness struct {
	cfg    Config
	engine *velocity.Engine
	calc   *risk.Calculator
	log    logrus.FieldLogger
}

// New creates a harness, applying defaults for unset config fields.
func New(cfg Config) *Harness {
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = DefaultInitialCapital
	}
	if cfg.PositionFraction <= 0 {
		cfg.PositionFraction = DefaultPositionFraction
	}
	if len(cfg.Cascades) == 0 {
		cfg.Cascades = domain.KnownCascades()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Harness{
		cfg:    cfg,
		engine: velocity.NewEngine(),
		calc:   risk.NewCalculator(),
		log:    cfg.Logger.WithField("component", "backtest"),
	}
}

// Run executes the full backtest. The primary loader's failure triggers the
// fallback when configured; with no fallback the error is surfaced with the
// source name attached.
func (h *Harness) Run(ctx context.Context) (*Result, error) {
	rows, source, usedFallback, err := h.load(ctx)
	if err != nil {
		return nil, err
	}

	h.log.WithFields(logrus.Fields{
		"source": source,
		"rows":   len(rows),
		"symbol": h.cfg.Symbol,
	}).Info("replaying liquidation rows")

	det := newDetector(h.engine, h.calc, h.cfg.Cascades)
	sim := newSimulator(h.cfg.InitialCapital, h.cfg.PositionFraction)

	var lastTS, lastPrice float64
	for _, row := range rows {
		assessment := det.step(row)
		sim.step(assessment, row)
		lastTS = row.Timestamp
		if row.Price > 0 {
			lastPrice = row.Price
		}
	}

	result := &Result{
		Symbol:               h.cfg.Symbol,
		Source:               source,
		UsedFallback:         usedFallback,
		RangeStart:           h.cfg.Range.Start,
		RangeEnd:             h.cfg.Range.End,
		RowCount:             len(rows),
		Detection:            det.analysis(len(rows)),
		Simulation:           sim.finish(h.cfg.InitialCapital, lastTS, lastPrice),
		EngineStats:          h.engine.Stats(),
		AssessmentsPerformed: h.calc.AssessmentsPerformed(),
	}
	return result, nil
}

// load tries the primary loader, then the configured fallback. The fallback
// decision lives here, one layer above the loaders, which always fail
// loudly themselves.
func (h *Harness) load(ctx context.Context) ([]domain.LiquidationRow, string, bool, error) {
	if h.cfg.Loader == nil {
		return nil, "", false, fmt.Errorf("%w: no loader configured", ErrSourceUnreachable)
	}

	rows, err := h.cfg.Loader.Load(ctx, h.cfg.Range)
	if err == nil {
		return rows, h.cfg.Loader.Name(), false, nil
	}

	if h.cfg.Fallback == nil {
		return nil, "", false, fmt.Errorf("load from %s: %w", h.cfg.Loader.Name(), err)
	}

	h.log.WithFields(logrus.Fields{
		"source":   h.cfg.Loader.Name(),
		"fallback": h.cfg.Fallback.Name(),
	}).WithError(err).Warn("primary source failed, degrading to fallback")

	rows, ferr := h.cfg.Fallback.Load(ctx, h.cfg.Range)
	if ferr != nil {
		return nil, "", false, fmt.Errorf("fallback %s after %s failed: %w", h.cfg.Fallback.Name(), h.cfg.Loader.Name(), ferr)
	}
	return rows, h.cfg.Fallback.Name(), true, nil
}

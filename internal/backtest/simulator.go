package backtest

import (
	"math"

	"cascade-lab/internal/domain"
)

// Annualization factor for the simplified Sharpe ratio, treating each trade
// as one day's return.
const sharpeAnnualization = 252.0

// Trade is one completed short round trip.
type Trade struct {
	EntryTime  float64 `json:"entry_time"`
	ExitTime   float64 `json:"exit_time"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	Notional   float64 `json:"notional"`
	PnL        float64 `json:"pnl"`
	ReturnPct  float64 `json:"return_pct"`
}

// TradingSimulation is the strategy-simulation half of a backtest result.
// ProfitFactor is +Inf when there are winning trades and no losing ones.
type TradingSimulation struct {
	InitialCapital float64 `json:"initial_capital"`
	FinalCapital   float64 `json:"final_capital"`
	TotalReturnPct float64 `json:"total_return_pct"`

	Trades     []Trade `json:"trades"`
	TradeCount int     `json:"trade_count"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`

	WinRate        float64 `json:"win_rate"`
	ProfitFactor   float64 `json:"profit_factor"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
}

// simulator runs a short-the-cascade strategy off the risk signal: open a
// short sized as a fixed fraction of capital when the signal escalates to
// CRITICAL while flat, cover when it de-escalates to WATCH-or-below.
type simulator struct {
	capital  float64
	fraction float64

	inPosition bool
	entryTime  float64
	entryPrice float64
	notional   float64

	peak        float64
	maxDrawdown float64
	trades      []Trade
}

func newSimulator(initialCapital, positionFraction float64) *simulator {
	return &simulator{
		capital:  initialCapital,
		fraction: positionFraction,
		peak:     initialCapital,
	}
}

// step applies one assessment to the position state. Rows without a price
// cannot open a position; an open position is held until a priced exit.
func (s *simulator) step(assessment *domain.RiskAssessment, row domain.LiquidationRow) {
	if assessment == nil {
		return
	}

	switch {
	case !s.inPosition && assessment.RiskLevel == domain.RiskCritical && row.Price > 0:
		s.inPosition = true
		s.entryTime = row.Timestamp
		s.entryPrice = row.Price
		s.notional = s.capital * s.fraction

	case s.inPosition && assessment.Action == domain.ActionWatch && row.Price > 0:
		s.close(row.Timestamp, row.Price)
	}
}

// close books the open short at the given price.
func (s *simulator) close(ts, price float64) {
	pnl := s.notional * (s.entryPrice - price) / s.entryPrice
	s.capital += pnl

	s.trades = append(s.trades, Trade{
		EntryTime:  s.entryTime,
		ExitTime:   ts,
		EntryPrice: s.entryPrice,
		ExitPrice:  price,
		Notional:   s.notional,
		PnL:        pnl,
		ReturnPct:  pnl / s.notional * 100,
	})
	s.inPosition = false

	if s.capital > s.peak {
		s.peak = s.capital
	}
	if dd := (s.peak - s.capital) / s.peak * 100; dd > s.maxDrawdown {
		s.maxDrawdown = dd
	}
}

// finish force-covers any open position at the last seen price and
// finalizes the metrics.
func (s *simulator) finish(initialCapital float64, lastTS, lastPrice float64) TradingSimulation {
	if s.inPosition && lastPrice > 0 {
		s.close(lastTS, lastPrice)
	}

	out := TradingSimulation{
		InitialCapital: initialCapital,
		FinalCapital:   s.capital,
		Trades:         s.trades,
		TradeCount:     len(s.trades),
		MaxDrawdownPct: s.maxDrawdown,
	}
	if initialCapital > 0 {
		out.TotalReturnPct = (s.capital - initialCapital) / initialCapital * 100
	}

	var grossProfit, grossLoss float64
	returns := make([]float64, 0, len(s.trades))
	for _, t := range s.trades {
		returns = append(returns, t.ReturnPct)
		if t.PnL > 0 {
			out.Wins++
			grossProfit += t.PnL
		} else if t.PnL < 0 {
			out.Losses++
			grossLoss += -t.PnL
		}
	}

	if out.TradeCount > 0 {
		out.WinRate = float64(out.Wins) / float64(out.TradeCount)
	}
	switch {
	case grossLoss > 0:
		out.ProfitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		out.ProfitFactor = math.Inf(1)
	}
	out.SharpeRatio = annualizedSharpe(returns)

	return out
}

// annualizedSharpe computes a simplified Sharpe ratio over the trade-level
// return series: mean over sample stddev, scaled by the annualization root.
// Returns 0 for fewer than two trades or a flat series.
func annualizedSharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	if variance == 0 {
		return 0
	}

	return mean / math.Sqrt(variance) * math.Sqrt(sharpeAnnualization)
}

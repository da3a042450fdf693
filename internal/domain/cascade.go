package domain

// CascadeEvent is a curated, ground-truth record of a historical liquidation
// cascade, used by the backtest harness to label in-cascade instants.
// Read-only during a run. Timestamp is the cascade start in epoch seconds.
type CascadeEvent struct {
	Timestamp            float64  `json:"timestamp"`
	Name                 string   `json:"name"`
	Severity             string   `json:"severity"` // "moderate" | "severe" | "extreme"
	DurationSeconds      float64  `json:"duration_seconds"`
	TotalLiquidationsUSD float64  `json:"total_liquidations_usd"`
	PriceDropPct         float64  `json:"price_drop_pct"`
	ExchangesAffected    []string `json:"exchanges_affected"`
	Notes                string   `json:"notes"`
}

// End returns the cascade end in epoch seconds.
func (c *CascadeEvent) End() float64 {
	return c.Timestamp + c.DurationSeconds
}

// Contains reports whether ts falls within [start, start+duration].
func (c *CascadeEvent) Contains(ts float64) bool {
	return ts >= c.Timestamp && ts <= c.End()
}

// KnownCascades is the curated reference list of major historical cascades.
// Timestamps are UTC epoch seconds of the acceleration phase onset, not the
// first headline print.
func KnownCascades() []CascadeEvent {
	return []CascadeEvent{
		{
			Timestamp:            1584032400, // 2020-03-12 17:00:00 UTC
			Name:                 "COVID Black Thursday",
			Severity:             "extreme",
			DurationSeconds:      7200,
			TotalLiquidationsUSD: 1_200_000_000,
			PriceDropPct:         39.5,
			ExchangesAffected:    []string{"binance", "okx", "bybit"},
			Notes:                "BitMEX liquidation spiral; trading halted mid-cascade",
		},
		{
			Timestamp:            1621404000, // 2021-05-19 06:00:00 UTC
			Name:                 "May 2021 deleveraging",
			Severity:             "extreme",
			DurationSeconds:      10800,
			TotalLiquidationsUSD: 8_600_000_000,
			PriceDropPct:         30.0,
			ExchangesAffected:    []string{"binance", "bybit", "okx", "kucoin"},
			Notes:                "largest single-day futures liquidation on record at the time",
		},
		{
			Timestamp:            1638583200, // 2021-12-04 02:00:00 UTC
			Name:                 "December 2021 flash deleveraging",
			Severity:             "severe",
			DurationSeconds:      3600,
			TotalLiquidationsUSD: 2_500_000_000,
			PriceDropPct:         21.0,
			ExchangesAffected:    []string{"binance", "bybit", "okx"},
			Notes:                "weekend low-liquidity long squeeze",
		},
		{
			Timestamp:            1667937600, // 2022-11-08 20:00:00 UTC
			Name:                 "FTX collapse",
			Severity:             "severe",
			DurationSeconds:      14400,
			TotalLiquidationsUSD: 1_600_000_000,
			PriceDropPct:         16.0,
			ExchangesAffected:    []string{"binance", "okx", "bybit"},
			Notes:                "exchange insolvency contagion",
		},
		{
			Timestamp:            1722816000, // 2024-08-05 00:00:00 UTC
			Name:                 "Yen carry unwind",
			Severity:             "severe",
			DurationSeconds:      10800,
			TotalLiquidationsUSD: 1_000_000_000,
			PriceDropPct:         18.0,
			ExchangesAffected:    []string{"binance", "bybit", "okx", "hyperliquid"},
			Notes:                "macro-driven cross-asset deleveraging",
		},
	}
}

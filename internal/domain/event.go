package domain

import "time"

// Exchange identifies a derivatives venue producing liquidation events.
type Exchange string

// Known venues. The engine treats the exchange as an opaque label, so new
// venues require no code change here; these constants exist for fixtures,
// config validation and tests.
const (
	ExchangeBinance     Exchange = "binance"
	ExchangeBybit       Exchange = "bybit"
	ExchangeOKX         Exchange = "okx"
	ExchangeKucoin      Exchange = "kucoin"
	ExchangeHyperliquid Exchange = "hyperliquid"
)

// Position side constants for canonical liquidation rows.
const (
	SideLong  = "long"
	SideShort = "short"
)

// LiquidationEvent is one forced position closure, already normalized by the
// ingestion layer (venue-specific parsing and deduplication happen upstream).
// Timestamp is Unix epoch seconds with fractional precision. Side, Quantity
// and Price are zero when the venue does not report them; USDValue is always
// present.
type LiquidationEvent struct {
	Symbol    string   `json:"symbol"`
	USDValue  float64  `json:"usd_value"`
	Exchange  Exchange `json:"exchange"`
	Timestamp float64  `json:"timestamp"`
	Side      string   `json:"side,omitempty"` // long | short
	Quantity  float64  `json:"quantity,omitempty"`
	Price     float64  `json:"price,omitempty"`
}

// UnixSeconds converts a time.Time to the epoch-seconds representation used
// throughout the engine.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// TimeFromUnixSeconds converts epoch seconds back to time.Time (UTC).
func TimeFromUnixSeconds(ts float64) time.Time {
	return time.Unix(0, int64(ts*float64(time.Second))).UTC()
}

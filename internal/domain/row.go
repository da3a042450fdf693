package domain

// LiquidationRow is the canonical tabular record every backtest data source
// must produce: one row per liquidation, timestamps normalized to epoch
// seconds, sorted ascending by Timestamp.
type LiquidationRow struct {
	Timestamp float64  `json:"timestamp"`
	Exchange  Exchange `json:"exchange"`
	Symbol    string   `json:"symbol"`
	Side      string   `json:"side"` // long | short
	Quantity  float64  `json:"quantity"`
	USDValue  float64  `json:"usd_value"`
	Price     float64  `json:"price"`
}

// RequiredColumns lists the canonical column names a tabular source must
// provide. Loaders fail fast with a typed error when one is missing.
var RequiredColumns = []string{
	"timestamp", "exchange", "symbol", "side", "quantity", "usd_value", "price",
}

// Event converts the row to the engine's input shape.
func (r *LiquidationRow) Event() LiquidationEvent {
	return LiquidationEvent{
		Symbol:    r.Symbol,
		USDValue:  r.USDValue,
		Exchange:  r.Exchange,
		Timestamp: r.Timestamp,
		Side:      r.Side,
		Quantity:  r.Quantity,
		Price:     r.Price,
	}
}

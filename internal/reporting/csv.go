package reporting

import (
	"fmt"
	"strings"

	"cascade-lab/internal/backtest"
)

// RenderTradesCSV renders the simulation's trade list as a CSV string.
func RenderTradesCSV(trades []backtest.Trade) string {
	var sb strings.Builder

	sb.WriteString("entry_time,exit_time,entry_price,exit_price,notional,pnl,return_pct\n")

	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%.3f,%.3f,%.6f,%.6f,%.2f,%.2f,%.6f\n",
			t.EntryTime,
			t.ExitTime,
			t.EntryPrice,
			t.ExitPrice,
			t.Notional,
			t.PnL,
			t.ReturnPct,
		))
	}

	return sb.String()
}

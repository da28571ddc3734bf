package journal

import (
	"math"

	"github.com/username/tradejournal/backend/src/models"
)

// Summary holds range-level analytics over a (pre-filtered) record set.
// WinRate is nil when no record carries a usable profit value; rendering a
// placeholder instead of "0%" is the caller's job.
type Summary struct {
	TotalTrades       int      `json:"total_trades"`
	TotalProfit       float64  `json:"total_profit"`
	WinRate           *float64 `json:"win_rate"`
	ProfitSampleCount int      `json:"profit_sample_count"`
}

// Summarize computes trade count, total realized profit, and win rate.
// Records whose profit is absent or non-finite are counted in TotalTrades but
// excluded from every profit aggregate. Unlike the calendar view, the win
// rate here is per record, not per netted day: the summary answers "how many
// of my trades won", the calendar answers "how did each day end".
func Summarize(records []models.TradeRecord) Summary {
	s := Summary{TotalTrades: len(records)}

	wins := 0
	for _, rec := range records {
		if rec.RealizedProfit == nil {
			continue
		}
		p := *rec.RealizedProfit
		if math.IsNaN(p) || math.IsInf(p, 0) {
			continue
		}
		s.TotalProfit += p
		s.ProfitSampleCount++
		if p > 0 {
			wins++
		}
	}

	if s.ProfitSampleCount > 0 {
		rate := float64(wins) / float64(s.ProfitSampleCount)
		s.WinRate = &rate
	}
	return s
}

package journal

import (
	"fmt"
	"math"
	"time"

	"github.com/username/tradejournal/backend/src/models"
)

// DayCell is one cell of the month grid. Placeholder cells carry no date and
// exist only to align day 1 with its weekday column and to pad the final row.
type DayCell struct {
	Key         string   `json:"key"`
	Day         int      `json:"day"` // 0 for placeholders
	Placeholder bool     `json:"placeholder"`
	Net         *float64 `json:"net"` // nil means no profit data for the day
	IsToday     bool     `json:"is_today"`
}

// MonthSummary aggregates the per-day nets of a month. Losses stays negative,
// so Gains + Losses == Net always holds.
type MonthSummary struct {
	Gains  float64 `json:"gains"`
	Losses float64 `json:"losses"`
	Net    float64 `json:"net"`
}

// BuildMonthView turns the full record set into a display-ready grid for the
// month containing targetMonth. Records are grouped by calendar day and their
// recorded profits netted per day; a day whose records all lack a profit value
// gets a nil net, which is distinct from a recorded net of zero. The summary
// classifies whole days as gain or loss after netting, so two records of +500
// and -200 on one day count as a single gain day of 300.
func BuildMonthView(records []models.TradeRecord, targetMonth time.Time, today time.Time) ([]DayCell, MonthSummary, string) {
	year, month := targetMonth.Year(), targetMonth.Month()
	loc := targetMonth.Location()
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	daysInMonth := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()

	// Per-day nets. hasNet tracks days that had at least one recorded,
	// finite profit value.
	nets := make(map[int]float64)
	hasNet := make(map[int]bool)
	for _, rec := range records {
		d := rec.TradeDate
		if d.Year() != year || d.Month() != month {
			continue
		}
		if rec.RealizedProfit == nil || math.IsNaN(*rec.RealizedProfit) || math.IsInf(*rec.RealizedProfit, 0) {
			continue
		}
		nets[d.Day()] += *rec.RealizedProfit
		hasNet[d.Day()] = true
	}

	todayDay := normalizeDay(today)
	leading := int(first.Weekday()) // Sunday = 0

	cells := make([]DayCell, 0, leading+daysInMonth+6)
	for i := 0; i < leading; i++ {
		cells = append(cells, DayCell{Key: fmt.Sprintf("pad-%d", i), Placeholder: true})
	}
	for day := 1; day <= daysInMonth; day++ {
		date := time.Date(year, month, day, 0, 0, 0, 0, loc)
		cell := DayCell{
			Key:     date.Format("2006-01-02"),
			Day:     day,
			IsToday: date.Equal(todayDay),
		}
		if hasNet[day] {
			net := nets[day]
			cell.Net = &net
		}
		cells = append(cells, cell)
	}
	for i := leading; len(cells)%7 != 0; i++ {
		cells = append(cells, DayCell{Key: fmt.Sprintf("pad-%d", i), Placeholder: true})
	}

	var summary MonthSummary
	for day := 1; day <= daysInMonth; day++ {
		if !hasNet[day] {
			continue
		}
		net := nets[day]
		switch {
		case net > 0:
			summary.Gains += net
		case net < 0:
			summary.Losses += net
		}
		// A zero net day contributes to neither bucket.
	}
	summary.Net = summary.Gains + summary.Losses

	return cells, summary, first.Format("January 2006")
}

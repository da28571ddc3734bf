// Package journal holds the pure aggregation core of the trade journal:
// range filtering, calendar month views, and profit summaries. Every function
// here is deterministic, side-effect free, and total over its inputs; the
// HTTP layer owns the record list and calls in with a snapshot.
package journal

import (
	"fmt"
	"time"

	"github.com/username/tradejournal/backend/src/models"
)

// RangeWindow names a relative time span resolved against "today" at query time.
type RangeWindow string

const (
	RangeDaily   RangeWindow = "daily"
	RangeWeekly  RangeWindow = "weekly"
	RangeMonthly RangeWindow = "monthly"
	RangeYearly  RangeWindow = "yearly"
	RangeAll     RangeWindow = "all"
)

// ParseRangeWindow validates a client-supplied range name.
func ParseRangeWindow(s string) (RangeWindow, error) {
	switch RangeWindow(s) {
	case RangeDaily, RangeWeekly, RangeMonthly, RangeYearly, RangeAll:
		return RangeWindow(s), nil
	}
	return "", fmt.Errorf("unknown range window %q", s)
}

// normalizeDay strips the time-of-day component, keeping the calendar day
// in the value's own location.
func normalizeDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// WindowBounds resolves the inclusive [start, end] calendar-day boundary for
// a range relative to today. bounded is false for RangeAll, which imposes no
// boundary. The week runs Sunday through Saturday.
func WindowBounds(rng RangeWindow, today time.Time) (start, end time.Time, bounded bool) {
	day := normalizeDay(today)
	switch rng {
	case RangeDaily:
		return day, day, true
	case RangeWeekly:
		start = day.AddDate(0, 0, -int(day.Weekday()))
		return start, start.AddDate(0, 0, 6), true
	case RangeMonthly:
		start = time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
		// Day zero of the next month is the last day of this one.
		end = time.Date(day.Year(), day.Month()+1, 0, 0, 0, 0, 0, day.Location())
		return start, end, true
	case RangeYearly:
		start = time.Date(day.Year(), time.January, 1, 0, 0, 0, 0, day.Location())
		end = time.Date(day.Year(), time.December, 31, 0, 0, 0, 0, day.Location())
		return start, end, true
	default:
		return time.Time{}, time.Time{}, false
	}
}

// FilterByRange returns the subset of records whose trade date falls inside
// the named window, in input order. RangeAll returns the input unchanged.
// Comparisons are by calendar day: a record's date may carry a different
// location than today (stored dates parse as UTC, today is the server clock),
// so its year/month/day is re-anchored into the window's location before
// comparing.
func FilterByRange(records []models.TradeRecord, rng RangeWindow, today time.Time) []models.TradeRecord {
	start, end, bounded := WindowBounds(rng, today)
	if !bounded {
		return records
	}

	var out []models.TradeRecord
	for _, rec := range records {
		y, m, dd := rec.TradeDate.Date()
		d := time.Date(y, m, dd, 0, 0, 0, 0, start.Location())
		if d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

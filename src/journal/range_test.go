package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/tradejournal/backend/src/models"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func fp(v float64) *float64 { return &v }

func trade(date string, profit *float64) models.TradeRecord {
	return models.TradeRecord{
		TradeDate:      day(date),
		Ticker:         "AAPL",
		TickerName:     "Apple Inc",
		RealizedProfit: profit,
	}
}

func TestParseRangeWindow(t *testing.T) {
	for _, valid := range []string{"daily", "weekly", "monthly", "yearly", "all"} {
		rng, err := ParseRangeWindow(valid)
		require.NoError(t, err)
		assert.Equal(t, RangeWindow(valid), rng)
	}

	_, err := ParseRangeWindow("quarterly")
	assert.Error(t, err)
	_, err = ParseRangeWindow("")
	assert.Error(t, err)
}

func TestWindowBounds_Weekly(t *testing.T) {
	// The weekly window always runs Sunday through Saturday, whichever
	// weekday today falls on.
	todays := []string{
		"2025-06-08", // Sunday
		"2025-06-09", // Monday
		"2025-06-11", // Wednesday
		"2025-06-14", // Saturday
	}
	for _, today := range todays {
		start, end, bounded := WindowBounds(RangeWeekly, day(today))
		require.True(t, bounded, "today=%s", today)
		assert.Equal(t, time.Sunday, start.Weekday(), "today=%s", today)
		assert.Equal(t, start.AddDate(0, 0, 6), end, "today=%s", today)
	}

	start, end, _ := WindowBounds(RangeWeekly, day("2025-06-11"))
	assert.Equal(t, day("2025-06-08"), start)
	assert.Equal(t, day("2025-06-14"), end)
}

func TestWindowBounds_MonthlyAndYearly(t *testing.T) {
	// Leap February resolves to the 29th.
	start, end, bounded := WindowBounds(RangeMonthly, day("2024-02-15"))
	require.True(t, bounded)
	assert.Equal(t, day("2024-02-01"), start)
	assert.Equal(t, day("2024-02-29"), end)

	start, end, bounded = WindowBounds(RangeYearly, day("2024-07-04"))
	require.True(t, bounded)
	assert.Equal(t, day("2024-01-01"), start)
	assert.Equal(t, day("2024-12-31"), end)
}

func TestWindowBounds_StripsTimeOfDay(t *testing.T) {
	noon := time.Date(2025, time.June, 11, 12, 34, 56, 0, time.UTC)
	start, end, bounded := WindowBounds(RangeDaily, noon)
	require.True(t, bounded)
	assert.Equal(t, day("2025-06-11"), start)
	assert.Equal(t, day("2025-06-11"), end)
}

func TestFilterByRange_AllReturnsInputUnchanged(t *testing.T) {
	records := []models.TradeRecord{
		trade("2023-01-15", fp(100)),
		trade("2025-06-11", nil),
		trade("1999-12-31", fp(-20)),
	}

	got := FilterByRange(records, RangeAll, day("2025-06-11"))
	assert.Equal(t, records, got)

	assert.Empty(t, FilterByRange(nil, RangeAll, day("2025-06-11")))
}

func TestFilterByRange_Daily(t *testing.T) {
	records := []models.TradeRecord{
		trade("2025-06-10", fp(1)),
		trade("2025-06-11", fp(2)),
		trade("2025-06-12", fp(3)),
	}

	got := FilterByRange(records, RangeDaily, day("2025-06-11"))
	require.Len(t, got, 1)
	assert.Equal(t, day("2025-06-11"), got[0].TradeDate)
}

func TestFilterByRange_WeeklyInclusiveBounds(t *testing.T) {
	records := []models.TradeRecord{
		trade("2025-06-07", fp(1)), // Saturday of previous week
		trade("2025-06-08", fp(2)), // Sunday, window start
		trade("2025-06-14", fp(3)), // Saturday, window end
		trade("2025-06-15", fp(4)), // next Sunday
	}

	got := FilterByRange(records, RangeWeekly, day("2025-06-11"))
	require.Len(t, got, 2)
	assert.Equal(t, day("2025-06-08"), got[0].TradeDate)
	assert.Equal(t, day("2025-06-14"), got[1].TradeDate)
}

func TestFilterByRange_TodayInOtherLocation(t *testing.T) {
	// Stored dates parse as UTC midnights while today comes from the server
	// clock, which may sit in any zone. Filtering must still match by
	// calendar day, not by instant.
	tokyo := time.FixedZone("UTC+9", 9*60*60)
	pacific := time.FixedZone("UTC-8", -8*60*60)

	records := []models.TradeRecord{trade("2025-06-11", fp(100))}
	got := FilterByRange(records, RangeDaily, time.Date(2025, time.June, 11, 10, 0, 0, 0, tokyo))
	require.Len(t, got, 1)
	got = FilterByRange(records, RangeDaily, time.Date(2025, time.June, 11, 23, 30, 0, 0, pacific))
	require.Len(t, got, 1)

	// Window-edge days must stay inside the week in both directions.
	boundary := []models.TradeRecord{
		trade("2025-06-08", fp(1)), // Sunday, window start
		trade("2025-06-14", fp(2)), // Saturday, window end
	}
	got = FilterByRange(boundary, RangeWeekly, time.Date(2025, time.June, 8, 1, 0, 0, 0, pacific))
	assert.Len(t, got, 2)
	got = FilterByRange(boundary, RangeWeekly, time.Date(2025, time.June, 14, 22, 0, 0, 0, tokyo))
	assert.Len(t, got, 2)
}

func TestFilterByRange_PreservesInputOrder(t *testing.T) {
	// List arrives date-descending from the store; filtering must not reorder.
	records := []models.TradeRecord{
		trade("2025-06-20", fp(3)),
		trade("2025-06-05", fp(2)),
		trade("2025-06-01", fp(1)),
	}

	got := FilterByRange(records, RangeMonthly, day("2025-06-11"))
	require.Len(t, got, 3)
	assert.Equal(t, day("2025-06-20"), got[0].TradeDate)
	assert.Equal(t, day("2025-06-05"), got[1].TradeDate)
	assert.Equal(t, day("2025-06-01"), got[2].TradeDate)
}

func TestFilterByRange_EmptyInput(t *testing.T) {
	for _, rng := range []RangeWindow{RangeDaily, RangeWeekly, RangeMonthly, RangeYearly, RangeAll} {
		assert.Empty(t, FilterByRange(nil, rng, day("2025-06-11")), "range=%s", rng)
	}
}

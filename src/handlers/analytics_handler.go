package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/username/tradejournal/backend/src/journal"
	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/services"
	"github.com/username/tradejournal/backend/src/utils"
)

// AnalyticsHandler feeds the user's record list through the pure aggregation
// core. It never mutates records; each request aggregates over a fresh
// snapshot from the trade service.
type AnalyticsHandler struct {
	tradeService services.TradeService
	now          func() time.Time
}

func NewAnalyticsHandler(tradeService services.TradeService) *AnalyticsHandler {
	return &AnalyticsHandler{
		tradeService: tradeService,
		now:          time.Now,
	}
}

// HandleGetSummary answers GET /api/analytics/summary?range=daily|weekly|monthly|yearly|all.
func (h *AnalyticsHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	rangeParam := r.URL.Query().Get("range")
	if rangeParam == "" {
		rangeParam = string(journal.RangeAll)
	}
	rng, err := journal.ParseRangeWindow(rangeParam)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := h.tradeService.GetAllTrades(userID)
	if err != nil {
		logger.L.Error("Failed to load trades for summary", "userID", userID, "error", err)
		utils.SendJSONError(w, "Error loading trades", http.StatusInternalServerError)
		return
	}

	filtered := journal.FilterByRange(records, rng, h.now())
	summary := journal.Summarize(filtered)

	utils.SendJSON(w, map[string]interface{}{
		"range":   rng,
		"summary": summary,
	}, http.StatusOK)
}

// HandleGetCalendar answers GET /api/analytics/calendar?year=&month= with the
// month grid and its gain/loss summary. Missing parameters default to the
// current month.
func (h *AnalyticsHandler) HandleGetCalendar(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	today := h.now()
	year := today.Year()
	month := int(today.Month())

	query := r.URL.Query()
	if raw := query.Get("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil || y < 1970 || y > 9999 {
			utils.SendJSONError(w, "year must be a four-digit year", http.StatusBadRequest)
			return
		}
		year = y
	}
	if raw := query.Get("month"); raw != "" {
		m, err := strconv.Atoi(raw)
		if err != nil || m < 1 || m > 12 {
			utils.SendJSONError(w, "month must be between 1 and 12", http.StatusBadRequest)
			return
		}
		month = m
	}

	records, err := h.tradeService.GetAllTrades(userID)
	if err != nil {
		logger.L.Error("Failed to load trades for calendar", "userID", userID, "error", err)
		utils.SendJSONError(w, "Error loading trades", http.StatusInternalServerError)
		return
	}

	targetMonth := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, today.Location())
	cells, summary, label := journal.BuildMonthView(records, targetMonth, today)

	utils.SendJSON(w, map[string]interface{}{
		"label":   label,
		"year":    year,
		"month":   month,
		"cells":   cells,
		"summary": summary,
	}, http.StatusOK)
}

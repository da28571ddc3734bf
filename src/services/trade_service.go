package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/tradejournal/backend/src/database"
	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/security/validation"
	"github.com/username/tradejournal/backend/src/utils"
)

const (
	ckUserTrades = "trades_user_%d"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute

	DefaultPageSize = 20
	MaxPageSize     = 100
)

type tradeServiceImpl struct {
	imageStore ImageStore
	tradeCache *cache.Cache
}

func NewTradeService(imageStore ImageStore, tradeCache *cache.Cache) TradeService {
	return &tradeServiceImpl{
		imageStore: imageStore,
		tradeCache: tradeCache,
	}
}

// GetAllTrades returns the user's full record list ordered trade_date DESC,
// from cache when warm. The analytics endpoints aggregate over this snapshot.
func (s *tradeServiceImpl) GetAllTrades(userID int64) ([]models.TradeRecord, error) {
	cacheKey := fmt.Sprintf(ckUserTrades, userID)
	if cached, found := s.tradeCache.Get(cacheKey); found {
		logger.L.Debug("Cache hit for user trades", "userID", userID)
		return cached.([]models.TradeRecord), nil
	}

	logger.L.Debug("Cache miss for user trades, fetching from DB", "userID", userID)
	trades, err := fetchUserTrades(userID)
	if err != nil {
		return nil, err
	}
	s.tradeCache.Set(cacheKey, trades, DefaultCacheExpiration)
	return trades, nil
}

// InvalidateUserCache drops the cached record list, forcing a DB reload on
// the next read. Called after every create/update/delete.
func (s *tradeServiceImpl) InvalidateUserCache(userID int64) {
	s.tradeCache.Delete(fmt.Sprintf(ckUserTrades, userID))
	logger.L.Debug("Invalidated trade cache for user", "userID", userID)
}

// ListTrades applies search and pagination over the user's record list and
// resolves image keys to signed view URLs. Search is a case-insensitive
// substring match over ticker and ticker name.
func (s *tradeServiceImpl) ListTrades(ctx context.Context, userID int64, search string, page, pageSize int) (*models.TradePage, error) {
	all, err := s.GetAllTrades(userID)
	if err != nil {
		return nil, err
	}

	filtered := all
	if search != "" {
		needle := strings.ToLower(search)
		filtered = nil
		for _, tr := range all {
			if strings.Contains(strings.ToLower(tr.Ticker), needle) ||
				strings.Contains(strings.ToLower(tr.TickerName), needle) {
				filtered = append(filtered, tr)
			}
		}
	}

	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if page <= 0 {
		page = 1
	}

	totalCount := len(filtered)
	totalPages := (totalCount + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	start := (page - 1) * pageSize
	if start > totalCount {
		start = totalCount
	}
	end := start + pageSize
	if end > totalCount {
		end = totalCount
	}

	pageTrades := make([]models.TradeRecord, end-start)
	copy(pageTrades, filtered[start:end])

	// A presign failure only costs the thumbnail, never the list.
	for i := range pageTrades {
		if pageTrades[i].ImageKey == nil {
			continue
		}
		url, err := s.imageStore.PresignGet(ctx, *pageTrades[i].ImageKey)
		if err != nil {
			logger.L.Warn("Failed to presign image URL", "userID", userID, "imageKey", *pageTrades[i].ImageKey, "error", err)
			continue
		}
		pageTrades[i].ImageURL = &url
	}

	return &models.TradePage{
		Trades:     pageTrades,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: totalCount,
		TotalPages: totalPages,
	}, nil
}

func (s *tradeServiceImpl) CreateTrade(userID int64, fields models.TradeFields) (*models.TradeRecord, error) {
	if fields.TradeDate == nil || *fields.TradeDate == "" {
		return nil, fmt.Errorf("%w: trade_date is required", ErrValidation)
	}
	tradeDate := utils.ParseDate(*fields.TradeDate)
	if tradeDate.IsZero() {
		return nil, fmt.Errorf("%w: trade_date must be formatted as %s", ErrValidation, utils.DefaultDateFormat)
	}
	if fields.Ticker == nil || strings.TrimSpace(*fields.Ticker) == "" {
		return nil, fmt.Errorf("%w: ticker is required", ErrValidation)
	}

	ticker := validation.NormalizeTicker(*fields.Ticker)
	tickerName := ""
	if fields.TickerName != nil {
		tickerName = strings.TrimSpace(*fields.TickerName)
	}
	sanitizeOptionalText(&fields.Reason)
	sanitizeOptionalText(&fields.Reflection)

	res, err := database.DB.Exec(`
		INSERT INTO trades (user_id, trade_date, ticker, ticker_name, realized_profit, reason, reflection, image_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, utils.FormatDate(tradeDate), ticker, tickerName,
		fields.RealizedProfit, fields.Reason, fields.Reflection, fields.ImageKey)
	if err != nil {
		return nil, fmt.Errorf("error inserting trade for userID %d: %w", userID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("error reading new trade id: %w", err)
	}

	s.InvalidateUserCache(userID)
	logger.L.Info("Trade created", "userID", userID, "tradeID", id, "ticker", ticker)
	return getTradeByID(userID, id)
}

func (s *tradeServiceImpl) UpdateTrade(userID, tradeID int64, fields models.TradeFields) (*models.TradeRecord, error) {
	setClauses := []string{}
	args := []interface{}{}

	if fields.TradeDate != nil {
		tradeDate := utils.ParseDate(*fields.TradeDate)
		if tradeDate.IsZero() {
			return nil, fmt.Errorf("%w: trade_date must be formatted as %s", ErrValidation, utils.DefaultDateFormat)
		}
		setClauses = append(setClauses, "trade_date = ?")
		args = append(args, utils.FormatDate(tradeDate))
	}
	if fields.Ticker != nil {
		ticker := validation.NormalizeTicker(*fields.Ticker)
		if ticker == "" {
			return nil, fmt.Errorf("%w: ticker must not be empty", ErrValidation)
		}
		setClauses = append(setClauses, "ticker = ?")
		args = append(args, ticker)
	}
	if fields.TickerName != nil {
		setClauses = append(setClauses, "ticker_name = ?")
		args = append(args, strings.TrimSpace(*fields.TickerName))
	}
	if fields.RealizedProfit != nil {
		setClauses = append(setClauses, "realized_profit = ?")
		args = append(args, *fields.RealizedProfit)
	}
	if fields.Reason != nil {
		sanitizeOptionalText(&fields.Reason)
		setClauses = append(setClauses, "reason = ?")
		args = append(args, *fields.Reason)
	}
	if fields.Reflection != nil {
		sanitizeOptionalText(&fields.Reflection)
		setClauses = append(setClauses, "reflection = ?")
		args = append(args, *fields.Reflection)
	}
	if fields.ImageKey != nil {
		setClauses = append(setClauses, "image_key = ?")
		args = append(args, *fields.ImageKey)
	}

	if len(setClauses) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", ErrValidation)
	}

	setClauses = append(setClauses, "updated_at = CURRENT_TIMESTAMP")
	query := "UPDATE trades SET " + strings.Join(setClauses, ", ") + " WHERE id = ? AND user_id = ?"
	args = append(args, tradeID, userID)

	res, err := database.DB.Exec(query, args...)
	if err != nil {
		return nil, fmt.Errorf("error updating trade %d for userID %d: %w", tradeID, userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("error checking update result: %w", err)
	}
	if affected == 0 {
		return nil, ErrTradeNotFound
	}

	s.InvalidateUserCache(userID)
	logger.L.Info("Trade updated", "userID", userID, "tradeID", tradeID)
	return getTradeByID(userID, tradeID)
}

// DeleteTrade removes the record row and then its image blob. A record delete
// that succeeds stays deleted even if the blob delete fails; the orphaned
// image is only logged.
func (s *tradeServiceImpl) DeleteTrade(ctx context.Context, userID, tradeID int64) error {
	existing, err := getTradeByID(userID, tradeID)
	if err != nil {
		return err
	}

	res, err := database.DB.Exec(`DELETE FROM trades WHERE id = ? AND user_id = ?`, tradeID, userID)
	if err != nil {
		return fmt.Errorf("error deleting trade %d for userID %d: %w", tradeID, userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrTradeNotFound
	}

	s.InvalidateUserCache(userID)
	logger.L.Info("Trade deleted", "userID", userID, "tradeID", tradeID)

	if existing.ImageKey != nil {
		if err := s.imageStore.Delete(ctx, *existing.ImageKey); err != nil {
			logger.L.Warn("Failed to delete orphaned trade image", "userID", userID, "tradeID", tradeID, "imageKey", *existing.ImageKey, "error", err)
		}
	}
	return nil
}

func sanitizeOptionalText(field **string) {
	if *field == nil {
		return
	}
	cleaned := validation.StripUnprintable(**field)
	*field = &cleaned
}

func scanTrade(scan func(dest ...interface{}) error) (*models.TradeRecord, error) {
	var tr models.TradeRecord
	var tradeDate string
	var tickerName sql.NullString
	var profit sql.NullFloat64
	var reason, reflection, imageKey sql.NullString

	err := scan(&tr.ID, &tr.UserID, &tradeDate, &tr.Ticker, &tickerName,
		&profit, &reason, &reflection, &imageKey, &tr.CreatedAt, &tr.UpdatedAt)
	if err != nil {
		return nil, err
	}

	tr.TradeDate = utils.ParseDate(tradeDate)
	if tickerName.Valid {
		tr.TickerName = tickerName.String
	}
	if profit.Valid {
		tr.RealizedProfit = &profit.Float64
	}
	if reason.Valid {
		tr.Reason = &reason.String
	}
	if reflection.Valid {
		tr.Reflection = &reflection.String
	}
	if imageKey.Valid {
		tr.ImageKey = &imageKey.String
	}
	return &tr, nil
}

func getTradeByID(userID, tradeID int64) (*models.TradeRecord, error) {
	row := database.DB.QueryRow(`
		SELECT id, user_id, trade_date, ticker, ticker_name, realized_profit, reason, reflection, image_key, created_at, updated_at
		FROM trades
		WHERE id = ? AND user_id = ?`, tradeID, userID)

	tr, err := scanTrade(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTradeNotFound
		}
		return nil, fmt.Errorf("error fetching trade %d for userID %d: %w", tradeID, userID, err)
	}
	return tr, nil
}

func fetchUserTrades(userID int64) ([]models.TradeRecord, error) {
	rows, err := database.DB.Query(`
		SELECT id, user_id, trade_date, ticker, ticker_name, realized_profit, reason, reflection, image_key, created_at, updated_at
		FROM trades
		WHERE user_id = ?
		ORDER BY trade_date DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying trades for userID %d: %w", userID, err)
	}
	defer rows.Close()

	trades := []models.TradeRecord{}
	for rows.Next() {
		tr, scanErr := scanTrade(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("error scanning trade row for userID %d: %w", userID, scanErr)
		}
		trades = append(trades, *tr)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over trade rows for userID %d: %w", userID, err)
	}
	logger.L.Debug("DB fetch complete", "userID", userID, "tradeCount", len(trades))
	return trades, nil
}

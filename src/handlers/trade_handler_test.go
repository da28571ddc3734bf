package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradejournal/backend/src/config"
	"github.com/username/tradejournal/backend/src/database"
	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/services"
)

// fakeImageStore records uploads and deletes in memory and serves
// deterministic signed URLs.
type fakeImageStore struct {
	mu          sync.Mutex
	uploads     map[string][]byte
	deleted     []string
	failUpload  bool
	failPresign bool
	failDelete  bool
}

func newFakeImageStore() *fakeImageStore {
	return &fakeImageStore{uploads: map[string][]byte{}}
}

func (f *fakeImageStore) Upload(_ context.Context, key, _ string, body io.Reader) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpload {
		return errors.New("upload rejected")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.uploads[key] = data
	return nil
}

func (f *fakeImageStore) PresignGet(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPresign {
		return "", errors.New("presign rejected")
	}
	return "https://signed.example/" + key, nil
}

func (f *fakeImageStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return errors.New("delete rejected")
	}
	f.deleted = append(f.deleted, key)
	return nil
}

func setupTradeTest(t *testing.T) (*TradeHandler, services.TradeService, *fakeImageStore) {
	t.Helper()

	logger.InitLogger("error")
	config.Cfg = &config.AppConfig{
		MaxUploadSizeBytes: 10 * 1024 * 1024,
		SignedURLTTL:       15 * time.Minute,
	}
	database.InitDB(filepath.Join(t.TempDir(), "test.db"))

	store := newFakeImageStore()
	svc := services.NewTradeService(store, cache.New(time.Minute, time.Minute))
	return NewTradeHandler(svc, store), svc, store
}

func authedRequest(method, target string, body io.Reader, userID int64) *http.Request {
	r := httptest.NewRequest(method, target, body)
	return r.WithContext(context.WithValue(r.Context(), userIDContextKey, userID))
}

func multipartBody(t *testing.T, fields map[string]string, image []byte, imageContentType string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for name, value := range fields {
		require.NoError(t, w.WriteField(name, value))
	}
	if image != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="image"; filename="chart.png"`)
		header.Set("Content-Type", imageContentType)
		part, err := w.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func pngBytes() []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
}

func seedTrade(t *testing.T, svc services.TradeService, userID int64, date, ticker, tickerName string, profit *float64) *models.TradeRecord {
	t.Helper()
	fields := models.TradeFields{
		TradeDate:      &date,
		Ticker:         &ticker,
		RealizedProfit: profit,
	}
	if tickerName != "" {
		fields.TickerName = &tickerName
	}
	trade, err := svc.CreateTrade(userID, fields)
	require.NoError(t, err)
	return trade
}

func fp(v float64) *float64 { return &v }

func TestHandleCreateTrade_MinimalFields(t *testing.T) {
	handler, _, _ := setupTradeTest(t)

	body, contentType := multipartBody(t, map[string]string{
		"trade_date": "2025-06-11",
		"ticker":     "  nvda ",
	}, nil, "")
	r := authedRequest(http.MethodPost, "/api/trades", body, 7)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	handler.HandleCreateTrade(w, r)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var trade models.TradeRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &trade))
	assert.Equal(t, "NVDA", trade.Ticker)
	assert.Equal(t, int64(7), trade.UserID)
	assert.Equal(t, "2025-06-11", trade.TradeDate.Format("2006-01-02"))
	assert.Nil(t, trade.RealizedProfit)
	assert.Nil(t, trade.ImageKey)
}

func TestHandleCreateTrade_WithImage(t *testing.T) {
	handler, _, store := setupTradeTest(t)

	body, contentType := multipartBody(t, map[string]string{
		"trade_date":      "2025-06-11",
		"ticker":          "AAPL",
		"realized_profit": "123.45",
	}, pngBytes(), "image/png")
	r := authedRequest(http.MethodPost, "/api/trades", body, 7)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	handler.HandleCreateTrade(w, r)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var trade models.TradeRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &trade))
	require.NotNil(t, trade.ImageKey)
	assert.True(t, strings.HasPrefix(*trade.ImageKey, "users/7/"))
	assert.True(t, strings.HasSuffix(*trade.ImageKey, ".png"))
	require.NotNil(t, trade.RealizedProfit)
	assert.Equal(t, 123.45, *trade.RealizedProfit)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.uploads, 1)
	assert.Equal(t, pngBytes(), store.uploads[*trade.ImageKey])
}

func TestHandleCreateTrade_UploadFailureAbortsInsert(t *testing.T) {
	handler, svc, store := setupTradeTest(t)
	store.failUpload = true

	body, contentType := multipartBody(t, map[string]string{
		"trade_date": "2025-06-11",
		"ticker":     "AAPL",
	}, pngBytes(), "image/png")
	r := authedRequest(http.MethodPost, "/api/trades", body, 7)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	handler.HandleCreateTrade(w, r)

	assert.Equal(t, http.StatusBadGateway, w.Code)

	trades, err := svc.GetAllTrades(7)
	require.NoError(t, err)
	assert.Empty(t, trades, "no record should exist after a failed upload")
}

func TestHandleCreateTrade_RejectsNonImageContent(t *testing.T) {
	handler, _, store := setupTradeTest(t)

	body, contentType := multipartBody(t, map[string]string{
		"trade_date": "2025-06-11",
		"ticker":     "AAPL",
	}, []byte("definitely not an image"), "text/plain")
	r := authedRequest(http.MethodPost, "/api/trades", body, 7)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	handler.HandleCreateTrade(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Empty(t, store.uploads)
}

func TestHandleCreateTrade_SpoofedContentTypeRejected(t *testing.T) {
	handler, _, store := setupTradeTest(t)

	// Declares image/png but the bytes say otherwise.
	body, contentType := multipartBody(t, map[string]string{
		"trade_date": "2025-06-11",
		"ticker":     "AAPL",
	}, []byte("<html><body>nope</body></html>"), "image/png")
	r := authedRequest(http.MethodPost, "/api/trades", body, 7)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	handler.HandleCreateTrade(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Empty(t, store.uploads)
}

func TestHandleCreateTrade_RejectsInvalidProfit(t *testing.T) {
	handler, _, _ := setupTradeTest(t)

	for _, bad := range []string{"abc", "NaN", "+Inf"} {
		body, contentType := multipartBody(t, map[string]string{
			"trade_date":      "2025-06-11",
			"ticker":          "AAPL",
			"realized_profit": bad,
		}, nil, "")
		r := authedRequest(http.MethodPost, "/api/trades", body, 7)
		r.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()

		handler.HandleCreateTrade(w, r)
		assert.Equal(t, http.StatusBadRequest, w.Code, "realized_profit=%q", bad)
	}
}

func TestHandleCreateTrade_RejectsMissingRequiredFields(t *testing.T) {
	handler, _, _ := setupTradeTest(t)

	cases := []map[string]string{
		{"ticker": "AAPL"},                             // no date
		{"trade_date": "2025-06-11"},                   // no ticker
		{"trade_date": "11/06/2025", "ticker": "AAPL"}, // wrong date format
		{"trade_date": "2025-06-11", "ticker": "   "},  // blank ticker
	}
	for _, fields := range cases {
		body, contentType := multipartBody(t, fields, nil, "")
		r := authedRequest(http.MethodPost, "/api/trades", body, 7)
		r.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()

		handler.HandleCreateTrade(w, r)
		assert.Equal(t, http.StatusBadRequest, w.Code, "fields=%v", fields)
	}
}

func TestHandleListTrades_SearchAndPagination(t *testing.T) {
	handler, svc, _ := setupTradeTest(t)

	seedTrade(t, svc, 7, "2025-06-09", "AAPL", "Apple Inc", fp(100))
	seedTrade(t, svc, 7, "2025-06-10", "MSFT", "Microsoft", fp(-40))
	seedTrade(t, svc, 7, "2025-06-11", "TSLA", "Tesla", nil)
	seedTrade(t, svc, 8, "2025-06-11", "AAPL", "Apple Inc", fp(999)) // another user

	// Full list, newest first.
	w := httptest.NewRecorder()
	handler.HandleListTrades(w, authedRequest(http.MethodGet, "/api/trades", nil, 7))
	require.Equal(t, http.StatusOK, w.Code)
	var page models.TradePage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Trades, 3)
	assert.Equal(t, "TSLA", page.Trades[0].Ticker)
	assert.Equal(t, "AAPL", page.Trades[2].Ticker)
	assert.Equal(t, 3, page.TotalCount)

	// Case-insensitive search over ticker name.
	w = httptest.NewRecorder()
	handler.HandleListTrades(w, authedRequest(http.MethodGet, "/api/trades?search=apple", nil, 7))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Trades, 1)
	assert.Equal(t, "AAPL", page.Trades[0].Ticker)

	// Pagination.
	w = httptest.NewRecorder()
	handler.HandleListTrades(w, authedRequest(http.MethodGet, "/api/trades?page=2&page_size=2", nil, 7))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Len(t, page.Trades, 1)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 3, page.TotalCount)
}

func TestHandleListTrades_ETagRevalidation(t *testing.T) {
	handler, svc, _ := setupTradeTest(t)
	seedTrade(t, svc, 7, "2025-06-11", "AAPL", "Apple Inc", fp(100))

	w := httptest.NewRecorder()
	handler.HandleListTrades(w, authedRequest(http.MethodGet, "/api/trades", nil, 7))
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	r := authedRequest(http.MethodGet, "/api/trades", nil, 7)
	r.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	handler.HandleListTrades(w, r)
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestHandleListTrades_SignedImageURLs(t *testing.T) {
	handler, svc, store := setupTradeTest(t)

	key := "users/7/chart.png"
	date, ticker := "2025-06-11", "AAPL"
	_, err := svc.CreateTrade(7, models.TradeFields{TradeDate: &date, Ticker: &ticker, ImageKey: &key})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	handler.HandleListTrades(w, authedRequest(http.MethodGet, "/api/trades", nil, 7))
	require.Equal(t, http.StatusOK, w.Code)
	var page models.TradePage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Trades, 1)
	require.NotNil(t, page.Trades[0].ImageURL)
	assert.Equal(t, "https://signed.example/"+key, *page.Trades[0].ImageURL)

	// A presign failure degrades to a list without view URLs, not an error.
	store.failPresign = true
	svc.InvalidateUserCache(7)
	w = httptest.NewRecorder()
	handler.HandleListTrades(w, authedRequest(http.MethodGet, "/api/trades", nil, 7))
	require.Equal(t, http.StatusOK, w.Code)
	page = models.TradePage{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Trades, 1)
	assert.Nil(t, page.Trades[0].ImageURL)
}

func TestHandleUpdateTrade(t *testing.T) {
	handler, svc, _ := setupTradeTest(t)
	trade := seedTrade(t, svc, 7, "2025-06-11", "AAPL", "Apple Inc", fp(100))

	payload := `{"realized_profit": -55.5, "reflection": "sold too early"}`
	r := authedRequest(http.MethodPut, fmt.Sprintf("/api/trades/%d", trade.ID), strings.NewReader(payload), 7)
	r.SetPathValue("id", fmt.Sprintf("%d", trade.ID))
	w := httptest.NewRecorder()

	handler.HandleUpdateTrade(w, r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated models.TradeRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	require.NotNil(t, updated.RealizedProfit)
	assert.Equal(t, -55.5, *updated.RealizedProfit)
	require.NotNil(t, updated.Reflection)
	assert.Equal(t, "sold too early", *updated.Reflection)
	assert.Equal(t, "AAPL", updated.Ticker, "untouched fields keep their values")
}

func TestHandleUpdateTrade_OtherUsersTradeIsNotFound(t *testing.T) {
	handler, svc, _ := setupTradeTest(t)
	trade := seedTrade(t, svc, 7, "2025-06-11", "AAPL", "Apple Inc", fp(100))

	r := authedRequest(http.MethodPut, fmt.Sprintf("/api/trades/%d", trade.ID), strings.NewReader(`{"ticker":"HACK"}`), 8)
	r.SetPathValue("id", fmt.Sprintf("%d", trade.ID))
	w := httptest.NewRecorder()

	handler.HandleUpdateTrade(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code)

	trades, err := svc.GetAllTrades(7)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "AAPL", trades[0].Ticker)
}

func TestHandleUpdateTrade_BadRequests(t *testing.T) {
	handler, svc, _ := setupTradeTest(t)
	trade := seedTrade(t, svc, 7, "2025-06-11", "AAPL", "Apple Inc", fp(100))

	// Non-numeric id.
	r := authedRequest(http.MethodPut, "/api/trades/abc", strings.NewReader(`{"ticker":"MSFT"}`), 7)
	r.SetPathValue("id", "abc")
	w := httptest.NewRecorder()
	handler.HandleUpdateTrade(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Empty update.
	r = authedRequest(http.MethodPut, fmt.Sprintf("/api/trades/%d", trade.ID), strings.NewReader(`{}`), 7)
	r.SetPathValue("id", fmt.Sprintf("%d", trade.ID))
	w = httptest.NewRecorder()
	handler.HandleUpdateTrade(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Malformed body.
	r = authedRequest(http.MethodPut, fmt.Sprintf("/api/trades/%d", trade.ID), strings.NewReader(`{`), 7)
	r.SetPathValue("id", fmt.Sprintf("%d", trade.ID))
	w = httptest.NewRecorder()
	handler.HandleUpdateTrade(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleDeleteTrade_RemovesImage(t *testing.T) {
	handler, svc, store := setupTradeTest(t)

	key := "users/7/chart.png"
	date, ticker := "2025-06-11", "AAPL"
	trade, err := svc.CreateTrade(7, models.TradeFields{TradeDate: &date, Ticker: &ticker, ImageKey: &key})
	require.NoError(t, err)

	r := authedRequest(http.MethodDelete, fmt.Sprintf("/api/trades/%d", trade.ID), nil, 7)
	r.SetPathValue("id", fmt.Sprintf("%d", trade.ID))
	w := httptest.NewRecorder()

	handler.HandleDeleteTrade(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	store.mu.Lock()
	assert.Equal(t, []string{key}, store.deleted)
	store.mu.Unlock()

	trades, err := svc.GetAllTrades(7)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestHandleDeleteTrade_BlobFailureDoesNotResurrectRecord(t *testing.T) {
	handler, svc, store := setupTradeTest(t)
	store.failDelete = true

	key := "users/7/chart.png"
	date, ticker := "2025-06-11", "AAPL"
	trade, err := svc.CreateTrade(7, models.TradeFields{TradeDate: &date, Ticker: &ticker, ImageKey: &key})
	require.NoError(t, err)

	r := authedRequest(http.MethodDelete, fmt.Sprintf("/api/trades/%d", trade.ID), nil, 7)
	r.SetPathValue("id", fmt.Sprintf("%d", trade.ID))
	w := httptest.NewRecorder()

	handler.HandleDeleteTrade(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	trades, err := svc.GetAllTrades(7)
	require.NoError(t, err)
	assert.Empty(t, trades, "record delete sticks even when the blob delete fails")
}

func TestHandleDeleteTrade_UnknownID(t *testing.T) {
	handler, _, _ := setupTradeTest(t)

	r := authedRequest(http.MethodDelete, "/api/trades/12345", nil, 7)
	r.SetPathValue("id", "12345")
	w := httptest.NewRecorder()

	handler.HandleDeleteTrade(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

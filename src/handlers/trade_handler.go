package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/username/tradejournal/backend/src/config"
	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/security/validation"
	"github.com/username/tradejournal/backend/src/services"
	"github.com/username/tradejournal/backend/src/utils"
)

type TradeHandler struct {
	tradeService services.TradeService
	imageStore   services.ImageStore
}

func NewTradeHandler(tradeService services.TradeService, imageStore services.ImageStore) *TradeHandler {
	return &TradeHandler{
		tradeService: tradeService,
		imageStore:   imageStore,
	}
}

// HandleListTrades returns the user's trades, searched, paginated, and with
// image keys resolved to signed view URLs. Supports ETag revalidation.
func (h *TradeHandler) HandleListTrades(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	query := r.URL.Query()
	search := strings.TrimSpace(query.Get("search"))
	page, _ := strconv.Atoi(query.Get("page"))
	pageSize, _ := strconv.Atoi(query.Get("page_size"))

	result, err := h.tradeService.ListTrades(r.Context(), userID, search, page, pageSize)
	if err != nil {
		logger.L.Error("Failed to list trades", "userID", userID, "error", err)
		utils.SendJSONError(w, "Error loading trades", http.StatusInternalServerError)
		return
	}

	if etag, err := utils.GenerateETag(result); err == nil {
		if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}

	utils.SendJSON(w, result, http.StatusOK)
}

// HandleCreateTrade accepts a multipart form with the trade fields and an
// optional image part. The image is uploaded to the blob store before the
// record insert; an upload failure aborts the whole operation so no record
// without its image ever appears.
func (h *TradeHandler) HandleCreateTrade(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.Cfg.MaxUploadSizeBytes)
	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		utils.SendJSONError(w, "Invalid multipart form or file too large", http.StatusBadRequest)
		return
	}

	fields, err := tradeFieldsFromForm(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var imageKey *string
	file, fileHeader, err := r.FormFile("image")
	if err == nil {
		defer file.Close()

		if err := validation.ValidateImageContentType(fileHeader.Header.Get("Content-Type")); err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		detectedType, err := validation.ValidateImageContentByMagicBytes(file)
		if err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}

		key := fmt.Sprintf("users/%d/%s%s", userID, uuid.New().String(), strings.ToLower(path.Ext(fileHeader.Filename)))
		if err := h.imageStore.Upload(r.Context(), key, detectedType, file); err != nil {
			logger.L.Error("Image upload failed, aborting trade creation", "userID", userID, "error", err)
			utils.SendJSONError(w, "Image upload failed; the trade was not saved", http.StatusBadGateway)
			return
		}
		imageKey = &key
	}

	fields.ImageKey = imageKey
	trade, err := h.tradeService.CreateTrade(userID, *fields)
	if err != nil {
		// The blob is already up; try not to leave it orphaned.
		if imageKey != nil {
			if delErr := h.imageStore.Delete(r.Context(), *imageKey); delErr != nil {
				logger.L.Warn("Failed to clean up image after insert failure", "imageKey", *imageKey, "error", delErr)
			}
		}
		if errors.Is(err, services.ErrValidation) {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.L.Error("Failed to create trade", "userID", userID, "error", err)
		utils.SendJSONError(w, "Error saving trade", http.StatusInternalServerError)
		return
	}

	utils.SendJSON(w, trade, http.StatusCreated)
}

// HandleUpdateTrade applies a partial field update to one trade.
func (h *TradeHandler) HandleUpdateTrade(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	tradeID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid trade id", http.StatusBadRequest)
		return
	}

	var fields models.TradeFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if fields.RealizedProfit != nil && (math.IsNaN(*fields.RealizedProfit) || math.IsInf(*fields.RealizedProfit, 0)) {
		utils.SendJSONError(w, "realized_profit must be a finite number", http.StatusBadRequest)
		return
	}

	trade, err := h.tradeService.UpdateTrade(userID, tradeID, fields)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTradeNotFound):
			utils.SendJSONError(w, "Trade not found", http.StatusNotFound)
		case errors.Is(err, services.ErrValidation):
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		default:
			logger.L.Error("Failed to update trade", "userID", userID, "tradeID", tradeID, "error", err)
			utils.SendJSONError(w, "Error updating trade", http.StatusInternalServerError)
		}
		return
	}

	utils.SendJSON(w, trade, http.StatusOK)
}

// HandleDeleteTrade removes a trade and its attached image.
func (h *TradeHandler) HandleDeleteTrade(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	tradeID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid trade id", http.StatusBadRequest)
		return
	}

	if err := h.tradeService.DeleteTrade(r.Context(), userID, tradeID); err != nil {
		if errors.Is(err, services.ErrTradeNotFound) {
			utils.SendJSONError(w, "Trade not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to delete trade", "userID", userID, "tradeID", tradeID, "error", err)
		utils.SendJSONError(w, "Error deleting trade", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func tradeFieldsFromForm(r *http.Request) (*models.TradeFields, error) {
	fields := &models.TradeFields{}

	formString := func(name string) *string {
		if values, ok := r.MultipartForm.Value[name]; ok && len(values) > 0 {
			v := values[0]
			return &v
		}
		return nil
	}

	fields.TradeDate = formString("trade_date")
	fields.Ticker = formString("ticker")
	fields.TickerName = formString("ticker_name")
	fields.Reason = formString("reason")
	fields.Reflection = formString("reflection")

	if raw := formString("realized_profit"); raw != nil && strings.TrimSpace(*raw) != "" {
		profit, err := strconv.ParseFloat(strings.TrimSpace(*raw), 64)
		if err != nil || math.IsNaN(profit) || math.IsInf(profit, 0) {
			return nil, fmt.Errorf("realized_profit must be a finite number")
		}
		fields.RealizedProfit = &profit
	}

	return fields, nil
}

package services

import (
	"context"
	"errors"
	"io"

	"github.com/username/tradejournal/backend/src/models"
)

var (
	ErrTradeNotFound = errors.New("trade not found")
	ErrValidation    = errors.New("validation failed")
)

// TradeService owns the journal's record list: CRUD against the database,
// search/pagination for the list view, and the per-user cache the analytics
// endpoints read their snapshots from.
type TradeService interface {
	ListTrades(ctx context.Context, userID int64, search string, page, pageSize int) (*models.TradePage, error)
	GetAllTrades(userID int64) ([]models.TradeRecord, error)
	CreateTrade(userID int64, fields models.TradeFields) (*models.TradeRecord, error)
	UpdateTrade(userID, tradeID int64, fields models.TradeFields) (*models.TradeRecord, error)
	DeleteTrade(ctx context.Context, userID, tradeID int64) error
	InvalidateUserCache(userID int64)
}

// ImageStore is the blob-store boundary: opaque keys in, bytes and short-lived
// signed view URLs out.
type ImageStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) error
	PresignGet(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

type EmailService interface {
	SendVerificationEmail(toEmail, username, token string) error
	SendPasswordResetEmail(toEmail, username, token string) error
}

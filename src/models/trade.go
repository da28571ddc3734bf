package models

import "time"

// TradeRecord is one journaled trade. RealizedProfit is a pointer because
// "not yet recorded" is distinct from a profit of exactly zero; the same
// applies to the optional free-text fields and the image reference.
type TradeRecord struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	TradeDate      time.Time `json:"trade_date"`
	Ticker         string    `json:"ticker"`
	TickerName     string    `json:"ticker_name"`
	RealizedProfit *float64  `json:"realized_profit"`
	Reason         *string   `json:"reason"`
	Reflection     *string   `json:"reflection"`
	ImageKey       *string   `json:"image_key"`

	// ImageURL is a short-lived signed view URL resolved at list time.
	// Never persisted.
	ImageURL *string `json:"image_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TradePage is the paginated trade-list response.
type TradePage struct {
	Trades     []TradeRecord `json:"trades"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalCount int           `json:"total_count"`
	TotalPages int           `json:"total_pages"`
}

// TradeFields carries the writable fields of a trade for inserts and
// partial updates. Nil pointers mean "leave unchanged" on update and
// "absent" on insert.
type TradeFields struct {
	TradeDate      *string  `json:"trade_date"`
	Ticker         *string  `json:"ticker"`
	TickerName     *string  `json:"ticker_name"`
	RealizedProfit *float64 `json:"realized_profit"`
	Reason         *string  `json:"reason"`
	Reflection     *string  `json:"reflection"`
	ImageKey       *string  `json:"image_key"`
}

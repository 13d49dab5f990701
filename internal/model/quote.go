package model

import "time"

// Quote is a single cached spot price for one commodity. Prices are quoted
// in USD per troy ounce, the convention for precious-metal futures.
type Quote struct {
	Commodity string    `json:"commodity"`
	Price     float64   `json:"price"`
	Currency  string    `json:"currency"`
	Unit      string    `json:"unit"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Quote currency and unit are fixed for the whole API.
const (
	QuoteCurrency = "USD"
	QuoteUnit     = "per troy ounce"
)

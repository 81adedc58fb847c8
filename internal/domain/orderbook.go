package domain

import "time"

// PriceLevel is a single price+size entry in an orderbook.
type PriceLevel struct {
	Price float64
	Size  float64
}

// OrderbookSnapshot is a full snapshot of bids and asks for an instrument.
type OrderbookSnapshot struct {
	TokenID   string
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp time.Time
}

// PriceChange is an incremental orderbook level update. Size 0 means the
// level was removed.
type PriceChange struct {
	TokenID   string
	Side      string // "BUY" or "SELL"
	Price     float64
	Size      float64
	Timestamp time.Time
}

package domain

import (
	"context"
	"io"
	"time"
)

// QuoteProvider resolves the current ask book for an instrument. Asks returns
// ErrNotFound when no data is available (never an empty book that could be
// mistaken for zero liquidity).
type QuoteProvider interface {
	Asks(ctx context.Context, tokenID string) ([]PriceLevel, error)
	// Staleness reports the time since the instrument's cached book was last
	// updated by the streaming feed. ok is false when the instrument is not
	// in the cache.
	Staleness(tokenID string) (time.Duration, bool)
}

// AskFetcher fetches the ask book directly from the venue, bypassing any
// cache. Levels are ordered ascending by price.
type AskFetcher interface {
	FetchAsks(ctx context.Context, tokenID string) ([]PriceLevel, error)
}

// OrderGateway is the order transport. Venue rejections come back as data in
// OrderResult/OrderFill; only transport failures surface as errors.
type OrderGateway interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	OrderStatus(ctx context.Context, orderID string) (OrderFill, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// SpendState is the durable per-basket bookkeeping that survives restarts.
type SpendState struct {
	// PositionCosts maps event id to cumulative dollars committed.
	PositionCosts map[string]float64 `json:"position_costs"`
	// LastTraded maps event id to the scan index of the last trade.
	LastTraded map[string]int `json:"event_last_traded"`
}

// SpendStore persists SpendState with atomic replace semantics.
type SpendStore interface {
	Load() (SpendState, error)
	Save(state SpendState) error
}

// ExecutionStore records execution attempts durably for later analysis.
type ExecutionStore interface {
	Create(ctx context.Context, result ExecutionResult) error
	ListRecent(ctx context.Context, limit int) ([]ExecutionResult, error)
	SumProfit(ctx context.Context, since time.Time) (float64, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Package quotes resolves current ask books, preferring the streaming cache
// and falling back to a rate-limited direct fetch.
package quotes

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Bo-Bear/Arbi-bot/internal/domain"
	"github.com/Bo-Bear/Arbi-bot/internal/feed"
)

// rateLimitKey buckets all REST book fetches under one venue-wide limit.
const rateLimitKey = "clob_book"

// Source is the quote resolver used by both detection and pre-trade refresh.
// Cache misses (instrument not ready yet, feed still resyncing) fall through
// to the REST fetcher, gated by the shared rate limiter.
type Source struct {
	cache   *feed.QuoteCache
	fetcher domain.AskFetcher
	limiter domain.RateLimiter
	logger  *slog.Logger

	fallbacks atomic.Uint64
}

// NewSource creates a Source. cache and limiter may be nil; a nil cache makes
// every read a direct fetch, a nil limiter disables fetch throttling.
func NewSource(cache *feed.QuoteCache, fetcher domain.AskFetcher, limiter domain.RateLimiter, logger *slog.Logger) *Source {
	return &Source{
		cache:   cache,
		fetcher: fetcher,
		limiter: limiter,
		logger:  logger.With(slog.String("component", "quote_source")),
	}
}

// Asks returns the instrument's current ask levels, ascending by price. An
// empty (non-nil) result means the venue reports no tradable asks; an error
// means no data could be obtained at all.
func (s *Source) Asks(ctx context.Context, tokenID string) ([]domain.PriceLevel, error) {
	if s.cache != nil {
		if levels, ok := s.cache.Asks(tokenID); ok {
			return levels, nil
		}
	}
	return s.fetch(ctx, tokenID)
}

// Staleness reports the age of the instrument's cached book. ok is false
// when the cache has no entry (or no cache is configured), which callers
// must treat as stale.
func (s *Source) Staleness(tokenID string) (time.Duration, bool) {
	if s.cache == nil {
		return 0, false
	}
	return s.cache.Staleness(tokenID)
}

// FetchAsks always goes to the venue directly, bypassing the cache. The
// execution engine uses this for its all-or-nothing pre-trade refresh.
func (s *Source) FetchAsks(ctx context.Context, tokenID string) ([]domain.PriceLevel, error) {
	return s.fetch(ctx, tokenID)
}

// Fallbacks returns how many reads were served by direct fetch.
func (s *Source) Fallbacks() uint64 {
	return s.fallbacks.Load()
}

func (s *Source) fetch(ctx context.Context, tokenID string) ([]domain.PriceLevel, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, rateLimitKey); err != nil {
			return nil, fmt.Errorf("quotes: rate limit: %w", err)
		}
	}

	levels, err := s.fetcher.FetchAsks(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("quotes: fetch asks: %w", err)
	}
	s.fallbacks.Add(1)

	if levels == nil {
		levels = []domain.PriceLevel{}
	}
	return levels, nil
}

// Compile-time interface checks.
var (
	_ domain.QuoteProvider = (*Source)(nil)
	_ domain.AskFetcher    = (*Source)(nil)
)
